package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-noc/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

func newMock(t *testing.T) (*AccountRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewAccountRepo(sqlx.NewDb(db, "postgres")), mock
}

var profileCols = []string{"id", "name", "email", "phone", "created_at", "updated_at"}

func TestCreate(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts (name, email, password_hash, phone)")).
		WithArgs("Ada", "ada@example.com", "$2a$hash", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	a := &entity.Account{Name: "Ada", Email: "ada@example.com", PasswordHash: "$2a$hash"}
	id, err := r.Create(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, int64(7), a.ID)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO accounts").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "accounts_email_key"})

	_, err := r.Create(context.Background(), &entity.Account{Name: "A", Email: "a@b.co", PasswordHash: "h"})
	assert.ErrorIs(t, err, errorz.ErrConflict)
}

func TestGetByEmail_NotFound(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE email=$1")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := r.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, errorz.ErrNotFound)
}

func TestGetByPhone_PicksOldest(t *testing.T) {
	r, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE phone=$1 ORDER BY id LIMIT 1")).
		WithArgs("+15550001").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "email", "phone", "password_hash", "reset_token", "reset_token_kind",
			"reset_token_expires", "created_at", "updated_at",
		}).AddRow(int64(2), "B", "b@x.io", "+15550001", "h", nil, nil, nil, now, now))

	a, err := r.GetByPhone(context.Background(), "+15550001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.ID)
	_, live := a.Aux()
	assert.False(t, live)
}

func TestEmailExists(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM accounts WHERE email=$1 AND id<>$2)")).
		WithArgs("a@b.co", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := r.EmailExists(context.Background(), "a@b.co", 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdate_ReturnsProfile(t *testing.T) {
	r, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE accounts SET name=$2, email=$3, phone=$4")).
		WithArgs(int64(4), "New", "new@x.io", nil).
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow(int64(4), "New", "new@x.io", nil, now, now))

	p, err := r.Update(context.Background(), 4, "New", "new@x.io", nil)
	require.NoError(t, err)
	assert.Equal(t, "New", p.Name)
}

func TestDelete_Missing(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM accounts WHERE id=$1")).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, r.Delete(context.Background(), 99), errorz.ErrNotFound)
}

func TestSetPasswordHash_LeavesAuxSlot(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec(`^UPDATE accounts SET password_hash=\$2, updated_at=NOW\(\) WHERE id=\$1$`).
		WithArgs(int64(1), "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, r.SetPasswordHash(context.Background(), 1, "new-hash"))
}

func TestSetAuxToken(t *testing.T) {
	r, mock := newMock(t)
	exp := time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET reset_token=$2, reset_token_kind=$3, reset_token_expires=$4")).
		WithArgs(int64(1), "digest", "otp", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := r.SetAuxToken(context.Background(), 1, entity.AuxToken{Kind: entity.KindOTP, Digest: "digest", ExpiresAt: exp})
	assert.NoError(t, err)
}

func TestConsumeResetToken(t *testing.T) {
	r, mock := newMock(t)
	now := time.Date(2025, 1, 1, 0, 30, 0, 0, time.UTC)
	stmt := regexp.QuoteMeta("WHERE reset_token=$1 AND reset_token_kind='reset' AND reset_token_expires > $2")

	mock.ExpectExec(stmt).WithArgs("d1", now, "newhash").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(stmt).WithArgs("d1", now, "newhash").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := r.ConsumeResetToken(context.Background(), "d1", now, "newhash")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ConsumeResetToken(context.Background(), "d1", now, "newhash")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindByAuxToken(t *testing.T) {
	r, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE email=$1 AND reset_token=$2 AND reset_token_kind=$3 AND reset_token_expires > $4")).
		WithArgs("a@b.co", "d", "otp", now).
		WillReturnRows(sqlmock.NewRows(profileCols))

	_, err := r.FindByAuxToken(context.Background(), "a@b.co", entity.KindOTP, "d", now)
	assert.ErrorIs(t, err, errorz.ErrNotFound)
}

func TestClaimAuxToken(t *testing.T) {
	r, mock := newMock(t)
	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id=$1 AND reset_token=$2 AND reset_token_kind=$3 AND reset_token_expires > $4")).
		WithArgs(int64(5), "d", "otp", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := r.ClaimAuxToken(context.Background(), 5, entity.KindOTP, "d", now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDriverFailureIsInternal(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec("UPDATE accounts").WillReturnError(errors.New("connection reset by peer"))

	err := r.ClearAuxToken(context.Background(), "a@b.co", entity.KindOTP)
	assert.ErrorIs(t, err, errorz.ErrInternal)
}
