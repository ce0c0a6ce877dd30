package session

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/pkg/httpx"
)

type ctxKey struct{}

// WithAccountID stores the authenticated account id on ctx.
func WithAccountID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// AccountIDFromContext returns the id stored by RequireAuth.
func AccountIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) < len("bearer ") || !strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[len("bearer "):])
}

// Handler exposes the session middleware and token introspection.
type Handler struct {
	issuer *Issuer
	logger *zap.SugaredLogger
}

func NewHandler(issuer *Issuer, logger *zap.SugaredLogger) *Handler {
	return &Handler{issuer: issuer, logger: logger}
}

// RequireAuth rejects requests without a valid bearer token and puts the
// account id on the request context otherwise.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}
		claims, err := h.issuer.Verify(token)
		if err != nil {
			h.logger.Debugw("session rejected", "path", r.URL.Path)
			httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), claims.UserID)))
	})
}

// Introspect reports whether the presented token is active, in the shape of
// RFC 7662. The token comes from the form field "token" or the bearer header.
func (h *Handler) Introspect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	token := r.Form.Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	claims, err := h.issuer.Verify(token)
	if err != nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	out := map[string]any{
		"active":     true,
		"sub":        claims.Subject,
		"userId":     claims.UserID,
		"token_type": "access_token",
	}
	if claims.Issuer != "" {
		out["iss"] = claims.Issuer
	}
	if claims.ExpiresAt != nil {
		out["exp"] = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out["iat"] = claims.IssuedAt.Unix()
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
