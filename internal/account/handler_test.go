package account

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/internal/envelope"
	"github.com/ovaphlow/pitchfork/service-noc/internal/session"
)

func newTestHandler(t *testing.T) (*Handler, *fixture, *envelope.Gate) {
	t.Helper()
	f := newFixture(t, Config{})
	gate, err := envelope.New("s3cret")
	require.NoError(t, err)
	return NewHandler(f.svc, gate, zap.NewNop().Sugar()), f, gate
}

func do(h http.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandler_RegisterEncryptedThenLogin(t *testing.T) {
	h, f, gate := newTestHandler(t)

	env, err := gate.Seal(RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "password"})
	require.NoError(t, err)
	rec := do(h.Register, http.MethodPost, "/api/users/register", `{"data":"`+env+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var reg struct {
		Token string `json:"token"`
		User  struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, "ada@example.com", reg.User.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = do(h.Login, http.MethodPost, "/api/users/login", `{"email":"ada@example.com","password":"password"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	claims, err := f.issuer.Verify(login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	rec = do(h.Register, http.MethodPost, "/api/users/register", `{"name":"Ada","email":"ada@example.com","password":"password"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_StatusMapping(t *testing.T) {
	h, f, _ := newTestHandler(t)
	f.register(t, "ada@example.com", "password")

	tests := []struct {
		name   string
		fn     http.HandlerFunc
		body   string
		status int
	}{
		{"bad envelope", h.Login, `{"data":"garbage"}`, http.StatusBadRequest},
		{"wrong password", h.Login, `{"email":"ada@example.com","password":"nope"}`, http.StatusUnauthorized},
		{"forgot unknown", h.ForgotPassword, `{"email":"ghost@example.com"}`, http.StatusNotFound},
		{"forgot missing email", h.ForgotPassword, `{}`, http.StatusBadRequest},
		{"forgot ok", h.ForgotPassword, `{"email":"ada@example.com"}`, http.StatusOK},
		{"reset bad token", h.ResetPassword, `{"token":"abc","newPassword":"password2"}`, http.StatusBadRequest},
		{"verify otp wrong", h.VerifyOTP, `{"email":"ada@example.com","otp":"123456"}`, http.StatusBadRequest},
		{"otp login no id", h.LoginWithOTP, `{}`, http.StatusBadRequest},
		{"otp login ok", h.LoginWithOTP, `{"email":"ada@example.com"}`, http.StatusOK},
		{"verify login wrong", h.VerifyLogin, `{"email":"ada@example.com","otp":"999999x"}`, http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(tc.fn, http.MethodPost, "/", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_DeliveryFailureIsOpaque(t *testing.T) {
	h, f, _ := newTestHandler(t)
	f.register(t, "ada@example.com", "password")
	f.mail.Err = assert.AnError

	rec := do(h.SendOTP, http.MethodPost, "/", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestHandler_AuthenticatedRoutes(t *testing.T) {
	h, f, _ := newTestHandler(t)
	id := f.register(t, "ada@example.com", "password")
	ctx := session.WithAccountID(t.Context(), id)

	req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Profile(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ada@example.com"`)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	req = httptest.NewRequest(http.MethodPut, "/api/users/password",
		strings.NewReader(`{"currentPassword":"nope","newPassword":"password2"}`)).WithContext(ctx)
	rec = httptest.NewRecorder()
	h.ChangePassword(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
	rec = httptest.NewRecorder()
	h.Profile(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/users/1", strings.NewReader(`{"name":"Ada L","email":"ada@example.com"}`))
	req.SetPathValue("id", "1")
	rec = httptest.NewRecorder()
	h.Update(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/users/abc", nil)
	req.SetPathValue("id", "abc")
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/users/1", nil)
	req.SetPathValue("id", "1")
	rec = httptest.NewRecorder()
	h.Delete(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Delete(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
