package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-noc/internal/captcha/entity"
	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

// ChallengeRepo stores CAPTCHA challenges.
type ChallengeRepo struct {
	db *sqlx.DB
}

func NewChallengeRepo(db *sqlx.DB) *ChallengeRepo { return &ChallengeRepo{db: db} }

// EnsureTable creates the captcha_challenges table if not exists (idempotent).
func (r *ChallengeRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS captcha_challenges (
  id BIGSERIAL PRIMARY KEY,
  token TEXT NOT NULL UNIQUE,
  code TEXT NOT NULL,
  fingerprint JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_captcha_challenges_created ON captcha_challenges(created_at DESC, id DESC);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return errorz.MapDBErr(err)
}

// Create inserts c and fills in its id and creation time.
func (r *ChallengeRepo) Create(ctx context.Context, c *entity.Challenge) error {
	const q = `INSERT INTO captcha_challenges (token, code, fingerprint)
		VALUES ($1, $2, $3) RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, q, c.Token, c.Code, string(c.Fingerprint))
	return errorz.MapDBErr(row.Scan(&c.ID, &c.CreatedAt))
}

// GetByToken returns the challenge for token or errorz.ErrNotFound.
func (r *ChallengeRepo) GetByToken(ctx context.Context, token string) (*entity.Challenge, error) {
	const q = `SELECT id, token, code, fingerprint, created_at FROM captcha_challenges WHERE token=$1`
	var c entity.Challenge
	if err := r.db.GetContext(ctx, &c, q, token); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &c, nil
}

// Prune deletes everything but the keep newest challenges in one statement
// and returns how many rows went. Ordering ties on created_at fall back to
// id so a kept row is never older than a deleted one.
func (r *ChallengeRepo) Prune(ctx context.Context, keep int) (int64, error) {
	const q = `DELETE FROM captcha_challenges WHERE id IN (
		SELECT id FROM captcha_challenges ORDER BY created_at DESC, id DESC OFFSET $1)`
	res, err := r.db.ExecContext(ctx, q, keep)
	if err != nil {
		return 0, errorz.MapDBErr(err)
	}
	n, err := res.RowsAffected()
	return n, errorz.MapDBErr(err)
}
