package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/internal/noc/entity"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/database"
)

const (
	certColumns = `id, institute_name, complete_address, application_number, mis_code, category,
		state_name, issue_date, expiry_date, status, remarks, created_at, updated_at`
	allocColumns = `id, noc_id, trade_name, shift_1_units, shift_2_units, created_at`

	// summarySelect lists certificates with their allocations folded into one string.
	summarySelect = `SELECT nc.id, nc.institute_name, nc.complete_address, nc.application_number,
		nc.mis_code, nc.category, nc.state_name, nc.issue_date, nc.expiry_date, nc.status,
		nc.remarks, nc.created_at, nc.updated_at,
		COALESCE(string_agg(nt.trade_name || ' (S1:' || nt.shift_1_units || ', S2:' || nt.shift_2_units || ')',
			', ' ORDER BY nt.id), '') AS trades
		FROM noc_certificates nc
		LEFT JOIN noc_trades nt ON nt.noc_id = nc.id`
)

// Columns a partial update may touch.
var updatable = map[string]bool{
	"institute_name": true, "complete_address": true, "application_number": true,
	"mis_code": true, "category": true, "state_name": true, "issue_date": true,
	"expiry_date": true, "status": true, "remarks": true,
}

// NOCRepo stores NOC certificates and their trade allocations.
type NOCRepo struct {
	db *sqlx.DB
}

func NewNOCRepo(db *sqlx.DB) *NOCRepo { return &NOCRepo{db: db} }

// EnsureTable creates noc_certificates and noc_trades if not exists (idempotent).
func (r *NOCRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS noc_certificates (
  id BIGSERIAL PRIMARY KEY,
  institute_name VARCHAR(255) NOT NULL,
  complete_address TEXT NOT NULL,
  application_number VARCHAR(100) NOT NULL UNIQUE,
  mis_code VARCHAR(50),
  category VARCHAR(100) NOT NULL,
  state_name VARCHAR(100) NOT NULL,
  issue_date DATE NOT NULL,
  expiry_date DATE NOT NULL,
  status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','expired','revoked')),
  remarks TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT noc_certificates_date_order CHECK (expiry_date >= issue_date)
);
CREATE INDEX IF NOT EXISTS idx_noc_certificates_state ON noc_certificates(state_name);
CREATE INDEX IF NOT EXISTS idx_noc_certificates_status ON noc_certificates(status);
CREATE INDEX IF NOT EXISTS idx_noc_certificates_expiry ON noc_certificates(expiry_date);
CREATE TABLE IF NOT EXISTS noc_trades (
  id BIGSERIAL PRIMARY KEY,
  noc_id BIGINT NOT NULL REFERENCES noc_certificates(id) ON DELETE CASCADE,
  trade_name VARCHAR(255) NOT NULL,
  shift_1_units INT NOT NULL DEFAULT 0,
  shift_2_units INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_noc_trades_noc_id ON noc_trades(noc_id);
CREATE INDEX IF NOT EXISTS idx_noc_trades_trade_name ON noc_trades(trade_name);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return errorz.MapDBErr(err)
}

// Create inserts c and its allocations in one transaction and fills in the
// generated columns of both.
func (r *NOCRepo) Create(ctx context.Context, c *entity.Certificate) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errorz.MapDBErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO noc_certificates
		(institute_name, complete_address, application_number, mis_code, category,
		 state_name, issue_date, expiry_date, status, remarks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`
	row := tx.QueryRowxContext(ctx, q, c.InstituteName, c.CompleteAddress, c.ApplicationNumber, c.MISCode,
		c.Category, c.StateName, c.IssueDate, c.ExpiryDate, c.Status, c.Remarks)
	if err = row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return errorz.MapDBErr(err)
	}
	for i := range c.Trades {
		c.Trades[i].NOCID = c.ID
		if err = insertAllocation(ctx, tx, &c.Trades[i]); err != nil {
			return err
		}
	}
	return errorz.MapDBErr(tx.Commit())
}

func insertAllocation(ctx context.Context, q sqlx.QueryerContext, a *entity.Allocation) error {
	row := q.QueryRowxContext(ctx, `INSERT INTO noc_trades (noc_id, trade_name, shift_1_units, shift_2_units)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`, a.NOCID, a.TradeName, a.Shift1Units, a.Shift2Units)
	return errorz.MapDBErr(row.Scan(&a.ID, &a.CreatedAt))
}

// GetByID returns the certificate with its allocations.
func (r *NOCRepo) GetByID(ctx context.Context, id int64) (*entity.Certificate, error) {
	return r.getWhere(ctx, `id=$1`, id)
}

func (r *NOCRepo) GetByApplicationNumber(ctx context.Context, number string) (*entity.Certificate, error) {
	return r.getWhere(ctx, `application_number=$1`, number)
}

func (r *NOCRepo) getWhere(ctx context.Context, where string, arg any) (*entity.Certificate, error) {
	var c entity.Certificate
	if err := r.db.GetContext(ctx, &c, `SELECT `+certColumns+` FROM noc_certificates WHERE `+where, arg); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	c.Trades = []entity.Allocation{}
	err := r.db.SelectContext(ctx, &c.Trades,
		`SELECT `+allocColumns+` FROM noc_trades WHERE noc_id=$1 ORDER BY id`, c.ID)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &c, nil
}

func (r *NOCRepo) ApplicationExists(ctx context.Context, number string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `SELECT EXISTS(SELECT 1 FROM noc_certificates WHERE application_number=$1)`, number)
	return ok, errorz.MapDBErr(err)
}

func (r *NOCRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `SELECT EXISTS(SELECT 1 FROM noc_certificates WHERE id=$1)`, id)
	return ok, errorz.MapDBErr(err)
}

// List returns a page of certificates, newest first, and the total count.
func (r *NOCRepo) List(ctx context.Context, limit, offset int) ([]entity.Summary, int, error) {
	return r.page(ctx, "", nil, limit, offset)
}

// Search matches institute, application number, state and category.
func (r *NOCRepo) Search(ctx context.Context, term string, limit, offset int) ([]entity.Summary, int, error) {
	where := `nc.institute_name ILIKE $1 OR nc.application_number ILIKE $1
		OR nc.state_name ILIKE $1 OR nc.category ILIKE $1`
	return r.page(ctx, where, []any{database.LikePattern(term)}, limit, offset)
}

func (r *NOCRepo) ByState(ctx context.Context, state string, limit, offset int) ([]entity.Summary, int, error) {
	return r.page(ctx, `nc.state_name=$1`, []any{state}, limit, offset)
}

func (r *NOCRepo) ByStatus(ctx context.Context, status entity.Status, limit, offset int) ([]entity.Summary, int, error) {
	return r.page(ctx, `nc.status=$1`, []any{status}, limit, offset)
}

func (r *NOCRepo) page(ctx context.Context, where string, args []any, limit, offset int) ([]entity.Summary, int, error) {
	filter := ""
	if where != "" {
		filter = " WHERE " + where
	}
	n := len(args)
	q := summarySelect + filter + fmt.Sprintf(` GROUP BY nc.id ORDER BY nc.created_at DESC, nc.id DESC LIMIT $%d OFFSET $%d`, n+1, n+2)

	pageArgs := append(append([]any{}, args...), limit, offset)
	out := []entity.Summary{}
	if err := r.db.SelectContext(ctx, &out, q, pageArgs...); err != nil {
		return nil, 0, errorz.MapDBErr(err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM noc_certificates nc`+filter, args...); err != nil {
		return nil, 0, errorz.MapDBErr(err)
	}
	return out, total, nil
}

// Update sets the given columns on certificate id. Columns outside the
// updatable set are rejected.
func (r *NOCRepo) Update(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return errorz.BadRequest("no fields to update")
	}
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !updatable[col] {
			return errorz.BadRequest("field " + col + " cannot be updated")
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets = append(sets, fmt.Sprintf("%s=$%d", col, i+1))
		args = append(args, fields[col])
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, id)
	q := fmt.Sprintf(`UPDATE noc_certificates SET %s WHERE id=$%d`, strings.Join(sets, ", "), len(args))
	return r.execOne(ctx, q, args...)
}

func (r *NOCRepo) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM noc_certificates WHERE id=$1`, id)
}

// Statistics aggregates certificate counts. Certificates expiring between
// from and to (inclusive) that are still active count as expiring soon.
func (r *NOCRepo) Statistics(ctx context.Context, from, to entity.Date) (*entity.Statistics, error) {
	st := &entity.Statistics{}
	if err := r.db.GetContext(ctx, &st.Total, `SELECT COUNT(*) FROM noc_certificates`); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	groups := []struct {
		dst *[]entity.Bucket
		q   string
	}{
		{&st.StatusBreakdown, `SELECT status AS key, COUNT(*) AS count FROM noc_certificates
			GROUP BY status ORDER BY count DESC, key`},
		{&st.StateBreakdown, `SELECT state_name AS key, COUNT(*) AS count FROM noc_certificates
			GROUP BY state_name ORDER BY count DESC, key LIMIT 10`},
		{&st.CategoryBreakdown, `SELECT category AS key, COUNT(*) AS count FROM noc_certificates
			GROUP BY category ORDER BY count DESC, key`},
	}
	for _, g := range groups {
		*g.dst = []entity.Bucket{}
		if err := r.db.SelectContext(ctx, g.dst, g.q); err != nil {
			return nil, errorz.MapDBErr(err)
		}
	}
	err := r.db.GetContext(ctx, &st.ExpiringSoon, `SELECT COUNT(*) FROM noc_certificates
		WHERE status='active' AND expiry_date BETWEEN $1 AND $2`, from, to)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return st, nil
}

// AddTrade inserts an allocation and fills in its id.
func (r *NOCRepo) AddTrade(ctx context.Context, a *entity.Allocation) error {
	return insertAllocation(ctx, r.db, a)
}

func (r *NOCRepo) UpdateTrade(ctx context.Context, tradeID int64, a entity.Allocation) error {
	return r.execOne(ctx, `UPDATE noc_trades SET trade_name=$1, shift_1_units=$2, shift_2_units=$3 WHERE id=$4`,
		a.TradeName, a.Shift1Units, a.Shift2Units, tradeID)
}

func (r *NOCRepo) RemoveTrade(ctx context.Context, tradeID int64) error {
	return r.execOne(ctx, `DELETE FROM noc_trades WHERE id=$1`, tradeID)
}

// execOne runs q and maps zero affected rows to errorz.ErrNotFound.
func (r *NOCRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return errorz.MapDBErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}
	if n == 0 {
		return errorz.ErrNotFound
	}
	return nil
}
