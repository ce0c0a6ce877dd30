package router

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/internal/account"
	"github.com/ovaphlow/pitchfork/service-noc/internal/captcha"
	"github.com/ovaphlow/pitchfork/service-noc/internal/noc"
	"github.com/ovaphlow/pitchfork/service-noc/internal/session"
	"github.com/ovaphlow/pitchfork/service-noc/internal/state"
	"github.com/ovaphlow/pitchfork/service-noc/internal/trade"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/httpx"
)

// Prefix is where every route is mounted.
const Prefix = "/api"

// Handlers groups the endpoint handlers the router mounts.
type Handlers struct {
	Sessions *session.Handler
	Accounts *account.Handler
	Captcha  *captcha.Handler
	States   *state.Handler
	Trades   *trade.Handler
	NOC      *noc.Handler
}

// RegisterRoutes mounts every endpoint on an http.ServeMux and wraps it in
// the middleware chain: request id, recover, logging, security headers, CORS.
func RegisterRoutes(logger *zap.SugaredLogger, h Handlers) http.Handler {
	mux := http.NewServeMux()
	auth := func(fn http.HandlerFunc) http.Handler { return h.Sessions.RequireAuth(fn) }
	route := func(pattern string, handler http.Handler) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.Handle(method+" "+Prefix+path, handler)
	}

	route("GET /health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}))
	route("POST /token/introspect", http.HandlerFunc(h.Sessions.Introspect))

	// accounts and credential recovery
	route("POST /users/register", http.HandlerFunc(h.Accounts.Register))
	route("POST /users/login", http.HandlerFunc(h.Accounts.Login))
	route("POST /users/forgot-password", http.HandlerFunc(h.Accounts.ForgotPassword))
	route("POST /users/reset-password", http.HandlerFunc(h.Accounts.ResetPassword))
	route("POST /users/reset-password-direct", http.HandlerFunc(h.Accounts.ResetPasswordDirect))
	route("POST /users/send-otp", http.HandlerFunc(h.Accounts.SendOTP))
	route("POST /users/verify-otp", http.HandlerFunc(h.Accounts.VerifyOTP))
	route("POST /users/getCaptchaRequest", http.HandlerFunc(h.Captcha.Issue))
	route("POST /users/verifyCaptcha", http.HandlerFunc(h.Captcha.Verify))
	route("POST /loginwithotp", http.HandlerFunc(h.Accounts.LoginWithOTP))
	route("POST /verifylogin", http.HandlerFunc(h.Accounts.VerifyLogin))
	route("GET /users/profile", auth(h.Accounts.Profile))
	route("PUT /users/password", auth(h.Accounts.ChangePassword))
	route("GET /users", auth(h.Accounts.List))
	route("GET /users/{id}", auth(h.Accounts.Get))
	route("PUT /users/{id}", auth(h.Accounts.Update))
	route("DELETE /users/{id}", auth(h.Accounts.Delete))

	// states
	route("GET /states", http.HandlerFunc(h.States.List))
	route("GET /states/search", http.HandlerFunc(h.States.Search))
	route("GET /states/stats", http.HandlerFunc(h.States.Stats))
	route("GET /states/{id}", http.HandlerFunc(h.States.Get))
	route("POST /states", auth(h.States.Create))
	route("PUT /states/{id}", auth(h.States.Update))
	route("DELETE /states/{id}", auth(h.States.Delete))

	// trades
	route("GET /trades", http.HandlerFunc(h.Trades.List))
	route("GET /trades/search", http.HandlerFunc(h.Trades.Search))
	route("GET /trades/stats", http.HandlerFunc(h.Trades.Stats))
	route("GET /trades/featured", http.HandlerFunc(h.Trades.Featured))
	route("GET /trades/{id}", http.HandlerFunc(h.Trades.Get))
	route("POST /trades", auth(h.Trades.Create))
	route("PUT /trades/{id}", auth(h.Trades.Update))
	route("DELETE /trades/{id}", auth(h.Trades.Delete))

	// noc certificates
	route("GET /noc", http.HandlerFunc(h.NOC.List))
	route("GET /noc/search", http.HandlerFunc(h.NOC.Search))
	route("GET /noc/stats", http.HandlerFunc(h.NOC.Statistics))
	route("GET /noc/state/{state}", http.HandlerFunc(h.NOC.ByState))
	route("GET /noc/status/{status}", http.HandlerFunc(h.NOC.ByStatus))
	route("GET /noc/application/{applicationNumber...}", http.HandlerFunc(h.NOC.GetByApplicationNumber))
	route("GET /noc/{id}", http.HandlerFunc(h.NOC.Get))
	route("POST /noc", auth(h.NOC.Create))
	route("PUT /noc/{id}", auth(h.NOC.Update))
	route("DELETE /noc/{id}", auth(h.NOC.Delete))
	route("POST /noc/{id}/trades", auth(h.NOC.AddTrade))
	route("PUT /noc/trades/{tradeId}", auth(h.NOC.UpdateTrade))
	route("DELETE /noc/trades/{tradeId}", auth(h.NOC.RemoveTrade))

	mux.Handle(Prefix+"/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Route not found"})
	}))

	return Chain(mux,
		RequestIDMiddleware(),
		RecoverMiddleware(logger),
		LoggingMiddleware(logger),
		SecurityHeadersMiddleware(),
		CORSMiddleware(),
	)
}
