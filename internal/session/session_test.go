package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

func newIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer(Config{Secret: []byte("test-secret"), Issuer: "service-noc"})
	require.NoError(t, err)
	iss.NowFunc = func() time.Time { return now }
	return iss
}

func TestIssueVerify(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newIssuer(t, now)

	tok, err := iss.Issue(42)
	require.NoError(t, err)

	claims, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, now.Add(24*time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestVerify_Expired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newIssuer(t, now)
	tok, err := iss.Issue(7)
	require.NoError(t, err)

	iss.NowFunc = func() time.Time { return now.Add(24*time.Hour + time.Second) }
	_, err = iss.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, errorz.ErrUnauthorized)
}

func TestVerify_Rejects(t *testing.T) {
	now := time.Now()
	iss := newIssuer(t, now)
	good, err := iss.Issue(1)
	require.NoError(t, err)

	other, err := NewIssuer(Config{Secret: []byte("other"), Issuer: "service-noc"})
	require.NoError(t, err)
	wrongKey, err := other.Issue(1)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           1,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 1}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		UserID:           1,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "service-noc", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":   "not.a.jwt",
		"wrong key": wrongKey,
		"alg none":  none,
		"no expiry": noExp,
		"other alg": hs512,
		"truncated": good[:len(good)-4],
		"empty":     "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := iss.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer(Config{})
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestIssuerTTL(t *testing.T) {
	iss, err := NewIssuer(Config{Secret: []byte("s")})
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, iss.TTL())

	iss, err = NewIssuer(Config{Secret: []byte("s"), TTL: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, iss.TTL())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := ConfigFromEnv()
	assert.ErrorIs(t, err, ErrNoSecret)

	t.Setenv("JWT_SECRET", "s")
	t.Setenv("JWT_TTL", "")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, cfg.TTL)

	t.Setenv("JWT_TTL", "2h")
	cfg, err = ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, cfg.TTL)

	t.Setenv("JWT_TTL", "-1h")
	_, err = ConfigFromEnv()
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	iss := newIssuer(t, time.Now())
	h := NewHandler(iss, zap.NewNop().Sugar())
	var seen int64
	protected := h.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AccountIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tok, err := iss.Issue(9)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(9), seen)

	for _, hdr := range []string{"", "Bearer", "Basic abc", "Bearer nope"} {
		req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
		if hdr != "" {
			req.Header.Set("Authorization", hdr)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, hdr)
	}
}

func TestIntrospect(t *testing.T) {
	iss := newIssuer(t, time.Now())
	h := NewHandler(iss, zap.NewNop().Sugar())
	tok, err := iss.Issue(3)
	require.NoError(t, err)

	form := url.Values{"token": {tok}}
	req := httptest.NewRequest(http.MethodPost, "/api/token/introspect", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Introspect(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, true, out["active"])
	assert.Equal(t, "3", out["sub"])

	form = url.Values{"token": {"bad"}}
	req = httptest.NewRequest(http.MethodPost, "/api/token/introspect", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.Introspect(rec, req)
	out = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, map[string]any{"active": false}, out)

	req = httptest.NewRequest(http.MethodPost, "/api/token/introspect", nil)
	rec = httptest.NewRecorder()
	h.Introspect(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
