package repo

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/internal/state/entity"
)

func newMock(t *testing.T) (*StateRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewStateRepo(sqlx.NewDb(db, "postgres")), mock
}

var cols = []string{"id", "state_name", "logo", "created_at", "updated_at"}

func TestCreate(t *testing.T) {
	r, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO states (state_name, logo) VALUES ($1, $2)")).
		WithArgs("Goa", nil).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(4), "Goa", nil, now, now))

	s := &entity.State{StateName: "Goa"}
	require.NoError(t, r.Create(context.Background(), s))
	assert.Equal(t, int64(4), s.ID)
	assert.Equal(t, now, s.CreatedAt)
}

func TestCreate_Duplicate(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO states").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "states_state_name_key"})

	err := r.Create(context.Background(), &entity.State{StateName: "Goa"})
	assert.ErrorIs(t, err, errorz.ErrConflict)
}

func TestSearch_EscapesWildcards(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE state_name ILIKE $1")).
		WithArgs(`%100\%%`).
		WillReturnRows(sqlmock.NewRows(cols))

	out, err := r.Search(context.Background(), "100%")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPage(t *testing.T) {
	r, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY state_name ASC LIMIT $1 OFFSET $2")).
		WithArgs(10, 20).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(1), "Assam", "a.png", now, now))

	out, err := r.Page(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a.png", *out[0].Logo)
}

func TestUpdate_NotFound(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE states SET state_name=$1, logo=$2, updated_at=NOW() WHERE id=$3")).
		WithArgs("Goa", nil, int64(9)).
		WillReturnRows(sqlmock.NewRows(cols))

	_, err := r.Update(context.Background(), 9, "Goa", nil)
	assert.ErrorIs(t, err, errorz.ErrNotFound)
}

func TestNameExists(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE state_name=$1 AND id<>$2")).
		WithArgs("Goa", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := r.NameExists(context.Background(), "Goa", 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStats(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE COALESCE(logo, '') <> '')")).
		WillReturnRows(sqlmock.NewRows([]string{"total", "with_logo"}).AddRow(5, 2))

	st, err := r.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, st.Total)
	assert.Equal(t, 2, st.WithLogo)
}
