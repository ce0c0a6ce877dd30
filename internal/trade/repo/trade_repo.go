package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/internal/trade/entity"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/database"
)

const columns = `id, trade_name, created_at, updated_at`

type TradeRepo struct {
	db *sqlx.DB
}

func NewTradeRepo(db *sqlx.DB) *TradeRepo { return &TradeRepo{db: db} }

// EnsureTable creates the trades table and its indexes if they do not exist.
func (r *TradeRepo) EnsureTable(ctx context.Context) error {
	const tbl = `
	CREATE TABLE IF NOT EXISTS trades (
		id BIGSERIAL PRIMARY KEY,
		trade_name VARCHAR(100) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	if _, err := r.db.ExecContext(ctx, tbl); err != nil {
		return errorz.MapDBErr(err)
	}

	const idx = `
	CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_trade_name ON trades (trade_name);
	`
	if _, err := r.db.ExecContext(ctx, idx); err != nil {
		return errorz.MapDBErr(err)
	}

	const idxCreated = `
	CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades (created_at);
	`
	_, err := r.db.ExecContext(ctx, idxCreated)
	return errorz.MapDBErr(err)
}

func (r *TradeRepo) List(ctx context.Context) ([]entity.Trade, error) {
	out := []entity.Trade{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+columns+` FROM trades ORDER BY trade_name ASC`)
	return out, errorz.MapDBErr(err)
}

func (r *TradeRepo) Page(ctx context.Context, limit, offset int) ([]entity.Trade, error) {
	out := []entity.Trade{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+columns+` FROM trades ORDER BY trade_name ASC LIMIT $1 OFFSET $2`, limit, offset)
	return out, errorz.MapDBErr(err)
}

func (r *TradeRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM trades`)
	return n, errorz.MapDBErr(err)
}

func (r *TradeRepo) Search(ctx context.Context, term string) ([]entity.Trade, error) {
	out := []entity.Trade{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+columns+` FROM trades WHERE trade_name ILIKE $1 ORDER BY trade_name ASC`, database.LikePattern(term))
	return out, errorz.MapDBErr(err)
}

// Random returns up to limit trades in random order.
func (r *TradeRepo) Random(ctx context.Context, limit int) ([]entity.Trade, error) {
	out := []entity.Trade{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+columns+` FROM trades ORDER BY random() LIMIT $1`, limit)
	return out, errorz.MapDBErr(err)
}

// Recent returns the limit most recently created trades, newest first.
func (r *TradeRepo) Recent(ctx context.Context, limit int) ([]entity.Trade, error) {
	out := []entity.Trade{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+columns+` FROM trades ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	return out, errorz.MapDBErr(err)
}

func (r *TradeRepo) GetByID(ctx context.Context, id int64) (*entity.Trade, error) {
	var t entity.Trade
	if err := r.db.GetContext(ctx, &t, `SELECT `+columns+` FROM trades WHERE id=$1`, id); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &t, nil
}

func (r *TradeRepo) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok,
		`SELECT EXISTS(SELECT 1 FROM trades WHERE trade_name=$1 AND id<>$2)`, name, excludeID)
	return ok, errorz.MapDBErr(err)
}

func (r *TradeRepo) Create(ctx context.Context, t *entity.Trade) error {
	row := r.db.QueryRowxContext(ctx, `INSERT INTO trades (trade_name) VALUES ($1) RETURNING `+columns, t.TradeName)
	return errorz.MapDBErr(row.StructScan(t))
}

func (r *TradeRepo) Update(ctx context.Context, id int64, name string) (*entity.Trade, error) {
	var t entity.Trade
	err := r.db.GetContext(ctx, &t,
		`UPDATE trades SET trade_name=$1, updated_at=NOW() WHERE id=$2 RETURNING `+columns, name, id)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &t, nil
}

func (r *TradeRepo) Delete(ctx context.Context, id int64) (*entity.Trade, error) {
	var t entity.Trade
	if err := r.db.GetContext(ctx, &t, `DELETE FROM trades WHERE id=$1 RETURNING `+columns, id); err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &t, nil
}
