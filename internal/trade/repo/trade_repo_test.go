package repo

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/internal/trade/entity"
)

func newMock(t *testing.T) (*TradeRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewTradeRepo(sqlx.NewDb(db, "postgres")), mock
}

var cols = []string{"id", "trade_name", "created_at", "updated_at"}

func TestEnsureTable(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS trades").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_trade_name").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_trades_created_at").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, r.EnsureTable(context.Background()))
}

func TestCreate(t *testing.T) {
	r, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO trades (trade_name) VALUES ($1)")).
		WithArgs("Fitter").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(2), "Fitter", now, now))

	tr := &entity.Trade{TradeName: "Fitter"}
	require.NoError(t, r.Create(context.Background(), tr))
	assert.Equal(t, int64(2), tr.ID)
}

func TestRandom(t *testing.T) {
	r, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY random() LIMIT $1")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(1), "Welder", now, now))

	out, err := r.Random(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestRecent(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT $1")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(cols))

	out, err := r.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestDelete_NotFound(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM trades WHERE id=$1")).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(cols))

	_, err := r.Delete(context.Background(), 8)
	assert.ErrorIs(t, err, errorz.ErrNotFound)
}
