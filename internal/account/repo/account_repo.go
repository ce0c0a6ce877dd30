package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-noc/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

// AccountRepo provides data access for the accounts table using sqlx.
// Every error it returns is already mapped to an errorz kind.
type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{db: db} }

// EnsureTable creates the accounts table if not exists (idempotent).
func (r *AccountRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS accounts (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  email CITEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  phone TEXT,
  reset_token TEXT,
  reset_token_kind TEXT CHECK (reset_token_kind IN ('reset', 'otp')),
  reset_token_expires TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_phone ON accounts(phone);
CREATE INDEX IF NOT EXISTS idx_accounts_reset_token ON accounts(reset_token) WHERE reset_token IS NOT NULL;
`
	_, err := r.db.ExecContext(ctx, ddl)
	return errorz.MapDBErr(err)
}

const accountColumns = `id, name, email, phone, password_hash, reset_token, reset_token_kind,
	reset_token_expires, created_at, updated_at`

const profileColumns = `id, name, email, phone, created_at, updated_at`

// Create inserts a new account and returns its id. A duplicate email
// surfaces as errorz.ErrConflict.
func (r *AccountRepo) Create(ctx context.Context, a *entity.Account) (int64, error) {
	const q = `INSERT INTO accounts (name, email, password_hash, phone)
		VALUES (:name, :email, :password_hash, :phone) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, q, a)
	if err != nil {
		return 0, errorz.MapDBErr(err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&a.ID); err != nil {
			return 0, errorz.MapDBErr(err)
		}
		return a.ID, nil
	}
	if err := rows.Err(); err != nil {
		return 0, errorz.MapDBErr(err)
	}
	return 0, errorz.MapDBErr(errors.New("no id returned"))
}

// GetByEmail returns the full row, hash included, for authentication.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	var a entity.Account
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE email=$1`
	if err := r.db.GetContext(ctx, &a, q, email); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &a, nil
}

// GetByPhone returns the oldest account registered with phone. Phones are
// not unique.
func (r *AccountRepo) GetByPhone(ctx context.Context, phone string) (*entity.Account, error) {
	var a entity.Account
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE phone=$1 ORDER BY id LIMIT 1`
	if err := r.db.GetContext(ctx, &a, q, phone); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &a, nil
}

// GetByID returns the full row, hash included.
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*entity.Account, error) {
	var a entity.Account
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	if err := r.db.GetContext(ctx, &a, q, id); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &a, nil
}

// GetProfile returns the display projection.
func (r *AccountRepo) GetProfile(ctx context.Context, id int64) (*entity.Profile, error) {
	var p entity.Profile
	q := `SELECT ` + profileColumns + ` FROM accounts WHERE id=$1`
	if err := r.db.GetContext(ctx, &p, q, id); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &p, nil
}

// List returns all profiles, newest first.
func (r *AccountRepo) List(ctx context.Context) ([]entity.Profile, error) {
	out := []entity.Profile{}
	q := `SELECT ` + profileColumns + ` FROM accounts ORDER BY created_at DESC, id DESC`
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return out, nil
}

// EmailExists reports whether another account (id != excludeID) uses email.
// Pass 0 to check against every account.
func (r *AccountRepo) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM accounts WHERE email=$1 AND id<>$2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, q, email, excludeID); err != nil {
		return false, errorz.MapDBErr(err)
	}
	return ok, nil
}

// Update overwrites name, email and phone and returns the new profile.
func (r *AccountRepo) Update(ctx context.Context, id int64, name, email string, phone *string) (*entity.Profile, error) {
	q := `UPDATE accounts SET name=$2, email=$3, phone=$4, updated_at=NOW()
		WHERE id=$1 RETURNING ` + profileColumns
	var p entity.Profile
	if err := r.db.GetContext(ctx, &p, q, id, name, email, phone); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &p, nil
}

// UpdatePassword overwrites the hash and drops any live aux token.
func (r *AccountRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	const q = `UPDATE accounts SET password_hash=$2, reset_token=NULL, reset_token_kind=NULL,
		reset_token_expires=NULL, updated_at=NOW() WHERE id=$1`
	return r.execOne(ctx, q, id, hash)
}

// SetPasswordHash overwrites only the hash; a live aux token survives.
func (r *AccountRepo) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	return r.execOne(ctx, `UPDATE accounts SET password_hash=$2, updated_at=NOW() WHERE id=$1`, id, hash)
}

func (r *AccountRepo) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM accounts WHERE id=$1`, id)
}

// SetAuxToken writes tok into the aux slot, replacing whatever was there.
func (r *AccountRepo) SetAuxToken(ctx context.Context, id int64, tok entity.AuxToken) error {
	const q = `UPDATE accounts SET reset_token=$2, reset_token_kind=$3, reset_token_expires=$4,
		updated_at=NOW() WHERE id=$1`
	return r.execOne(ctx, q, id, tok.Digest, string(tok.Kind), tok.ExpiresAt)
}

// ConsumeResetToken sets newHash on the account holding a live reset token
// with the given digest and clears the slot in the same statement. It
// reports false when no such account exists.
func (r *AccountRepo) ConsumeResetToken(ctx context.Context, digest string, now time.Time, newHash string) (bool, error) {
	const q = `UPDATE accounts SET password_hash=$3, reset_token=NULL, reset_token_kind=NULL,
		reset_token_expires=NULL, updated_at=NOW()
		WHERE reset_token=$1 AND reset_token_kind='reset' AND reset_token_expires > $2`
	return r.execMaybe(ctx, q, digest, now, newHash)
}

// FindByAuxToken returns the account with email whose slot holds a live
// token of kind with digest. It does not clear the slot.
func (r *AccountRepo) FindByAuxToken(ctx context.Context, email string, kind entity.TokenKind, digest string, now time.Time) (*entity.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM accounts
		WHERE email=$1 AND reset_token=$2 AND reset_token_kind=$3 AND reset_token_expires > $4`
	var p entity.Profile
	if err := r.db.GetContext(ctx, &p, q, email, digest, string(kind), now); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &p, nil
}

// ClearAuxToken empties the slot of the account with email if it holds a
// token of kind. Clearing an empty slot is not an error.
func (r *AccountRepo) ClearAuxToken(ctx context.Context, email string, kind entity.TokenKind) error {
	const q = `UPDATE accounts SET reset_token=NULL, reset_token_kind=NULL, reset_token_expires=NULL,
		updated_at=NOW() WHERE email=$1 AND reset_token_kind=$2`
	_, err := r.db.ExecContext(ctx, q, email, string(kind))
	return errorz.MapDBErr(err)
}

// ClaimAuxToken clears the slot of account id if it holds a live token of
// kind with digest, reporting whether it did.
func (r *AccountRepo) ClaimAuxToken(ctx context.Context, id int64, kind entity.TokenKind, digest string, now time.Time) (bool, error) {
	const q = `UPDATE accounts SET reset_token=NULL, reset_token_kind=NULL, reset_token_expires=NULL,
		updated_at=NOW()
		WHERE id=$1 AND reset_token=$2 AND reset_token_kind=$3 AND reset_token_expires > $4`
	return r.execMaybe(ctx, q, id, digest, string(kind), now)
}

// execOne runs q and maps zero affected rows to errorz.ErrNotFound.
func (r *AccountRepo) execOne(ctx context.Context, q string, args ...any) error {
	ok, err := r.execMaybe(ctx, q, args...)
	if err != nil {
		return err
	}
	if !ok {
		return errorz.ErrNotFound
	}
	return nil
}

func (r *AccountRepo) execMaybe(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, errorz.MapDBErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errorz.MapDBErr(err)
	}
	return n > 0, nil
}
