package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/internal/state/entity"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/database"
)

const columns = `id, state_name, logo, created_at, updated_at`

// StateRepo is the PostgreSQL repository for states.
type StateRepo struct {
	db *sqlx.DB
}

func NewStateRepo(db *sqlx.DB) *StateRepo { return &StateRepo{db: db} }

// EnsureTable creates the states table if not exists (idempotent).
func (r *StateRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS states (
  id BIGSERIAL PRIMARY KEY,
  state_name TEXT NOT NULL UNIQUE,
  logo TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return errorz.MapDBErr(err)
}

// List returns every state ordered by name.
func (r *StateRepo) List(ctx context.Context) ([]entity.State, error) {
	out := []entity.State{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+columns+` FROM states ORDER BY state_name ASC`)
	return out, errorz.MapDBErr(err)
}

// Page returns one page of states ordered by name.
func (r *StateRepo) Page(ctx context.Context, limit, offset int) ([]entity.State, error) {
	out := []entity.State{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+columns+` FROM states ORDER BY state_name ASC LIMIT $1 OFFSET $2`, limit, offset)
	return out, errorz.MapDBErr(err)
}

func (r *StateRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM states`)
	return n, errorz.MapDBErr(err)
}

// Search matches state names case-insensitively.
func (r *StateRepo) Search(ctx context.Context, term string) ([]entity.State, error) {
	out := []entity.State{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+columns+` FROM states WHERE state_name ILIKE $1 ORDER BY state_name ASC`, database.LikePattern(term))
	return out, errorz.MapDBErr(err)
}

func (r *StateRepo) GetByID(ctx context.Context, id int64) (*entity.State, error) {
	var s entity.State
	if err := r.db.GetContext(ctx, &s, `SELECT `+columns+` FROM states WHERE id=$1`, id); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &s, nil
}

// NameExists reports whether another state (id <> excludeID) has name.
func (r *StateRepo) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok,
		`SELECT EXISTS(SELECT 1 FROM states WHERE state_name=$1 AND id<>$2)`, name, excludeID)
	return ok, errorz.MapDBErr(err)
}

// Create inserts s and fills in its generated columns.
func (r *StateRepo) Create(ctx context.Context, s *entity.State) error {
	row := r.db.QueryRowxContext(ctx,
		`INSERT INTO states (state_name, logo) VALUES ($1, $2) RETURNING `+columns, s.StateName, s.Logo)
	return errorz.MapDBErr(row.StructScan(s))
}

// Update overwrites name and logo and returns the updated row.
func (r *StateRepo) Update(ctx context.Context, id int64, name string, logo *string) (*entity.State, error) {
	var s entity.State
	err := r.db.GetContext(ctx, &s,
		`UPDATE states SET state_name=$1, logo=$2, updated_at=NOW() WHERE id=$3 RETURNING `+columns, name, logo, id)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &s, nil
}

// Delete removes the state and returns what was deleted.
func (r *StateRepo) Delete(ctx context.Context, id int64) (*entity.State, error) {
	var s entity.State
	if err := r.db.GetContext(ctx, &s, `DELETE FROM states WHERE id=$1 RETURNING `+columns, id); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &s, nil
}

// Stats counts states with and without a non-empty logo.
func (r *StateRepo) Stats(ctx context.Context) (entity.Stats, error) {
	var s entity.Stats
	err := r.db.GetContext(ctx, &s, `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE COALESCE(logo, '') <> '') AS with_logo FROM states`)
	return s, errorz.MapDBErr(err)
}
