package repo

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-noc/internal/captcha/entity"
	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

func newMock(t *testing.T) (*ChallengeRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewChallengeRepo(sqlx.NewDb(db, "postgres")), mock
}

func TestCreate_PassesFingerprintAsText(t *testing.T) {
	r, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO captcha_challenges (token, code, fingerprint)")).
		WithArgs("tok", "482913", `{"ua":"X"}`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))

	c := &entity.Challenge{Token: "tok", Code: "482913", Fingerprint: json.RawMessage(`{"ua":"X"}`)}
	require.NoError(t, r.Create(context.Background(), c))
	assert.Equal(t, int64(3), c.ID)
	assert.Equal(t, now, c.CreatedAt)
}

func TestGetByToken(t *testing.T) {
	r, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM captcha_challenges WHERE token=$1")).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "token", "code", "fingerprint", "created_at"}).
			AddRow(int64(3), "tok", "482913", []byte(`{"ua":"X"}`), now))

	c, err := r.GetByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "482913", c.Code)
	assert.JSONEq(t, `{"ua":"X"}`, string(c.Fingerprint))
}

func TestGetByToken_NotFound(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery("FROM captcha_challenges").
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := r.GetByToken(context.Background(), "gone")
	assert.ErrorIs(t, err, errorz.ErrNotFound)
}

func TestPrune(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC OFFSET $1")).
		WithArgs(10).
		WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := r.Prune(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestPrune_DBError(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec("DELETE FROM captcha_challenges").WillReturnError(assert.AnError)

	_, err := r.Prune(context.Background(), 10)
	assert.ErrorIs(t, err, errorz.ErrInternal)
}
