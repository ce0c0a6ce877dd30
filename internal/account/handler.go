package account

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/internal/envelope"
	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/internal/session"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/httpx"
)

// Handler exposes HTTP endpoints for accounts and credential recovery.
// Public endpoints accept plaintext JSON or an encrypted {"data": ...} body.
type Handler struct {
	svc    *Service
	gate   *envelope.Gate
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, gate *envelope.Gate, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, gate: gate, logger: logger}
}

type message struct {
	Message string `json:"message"`
}

// RegisterRequest request body for register endpoint.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message string `json:"message"`
	*AuthResult
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := envelope.DecodeRequest(h.gate, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid register payload")
		return
	}
	res, err := h.svc.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "register failed")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, authResponse{Message: "User registered successfully", AuthResult: res})
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := envelope.DecodeRequest(h.gate, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid login payload")
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "login failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authResponse{Message: "Login successful", AuthResult: res})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *Handler) decodeEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req emailRequest
	if err := envelope.DecodeRequest(h.gate, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid payload")
		return "", false
	}
	if req.Email == "" {
		httpx.WriteError(w, h.logger, errorz.BadRequest("email is required"), "invalid payload")
		return "", false
	}
	return req.Email, true
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	email, ok := h.decodeEmail(w, r)
	if !ok {
		return
	}
	if err := h.svc.ForgotPassword(r.Context(), email); err != nil {
		httpx.WriteError(w, h.logger, err, "forgot password failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, message{"Password reset link sent to your email"})
}

// ResetPasswordRequest carries the mailed token and the new password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := envelope.DecodeRequest(h.gate, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid reset payload")
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		httpx.WriteError(w, h.logger, err, "reset password failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, message{"Password reset successfully"})
}

func (h *Handler) ResetPasswordDirect(w http.ResponseWriter, r *http.Request) {
	email, ok := h.decodeEmail(w, r)
	if !ok {
		return
	}
	if err := h.svc.ResetPasswordDirect(r.Context(), email); err != nil {
		httpx.WriteError(w, h.logger, err, "direct reset failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, message{"A new password has been sent to your email"})
}

func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	email, ok := h.decodeEmail(w, r)
	if !ok {
		return
	}
	if err := h.svc.SendOTP(r.Context(), email); err != nil {
		httpx.WriteError(w, h.logger, err, "send otp failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, message{"OTP sent to your email"})
}

// OTPRequest is used by the OTP verification and OTP login endpoints.
type OTPRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPRequest
	if err := envelope.DecodeRequest(h.gate, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid otp payload")
		return
	}
	if err := h.svc.VerifyOTPAndSendResetLink(r.Context(), req.Email, req.OTP); err != nil {
		httpx.WriteError(w, h.logger, err, "verify otp failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, message{"OTP verified. Password reset link sent to your email"})
}

func (h *Handler) LoginWithOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPRequest
	if err := envelope.DecodeRequest(h.gate, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid otp login payload")
		return
	}
	if err := h.svc.StartOTPLogin(r.Context(), req.Email, req.Phone); err != nil {
		httpx.WriteError(w, h.logger, err, "otp login failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, message{"OTP sent."})
}

func (h *Handler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req OTPRequest
	if err := envelope.DecodeRequest(h.gate, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid verify login payload")
		return
	}
	res, err := h.svc.CompleteOTPLogin(r.Context(), req.Email, req.Phone, req.OTP)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "verify login failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authResponse{Message: "Login successful.", AuthResult: res})
}

// Profile returns the caller's own account.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := session.AccountIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, h.logger, errorz.ErrUnauthorized, "profile without session")
		return
	}
	p, err := h.svc.FindByID(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "profile failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": p})
}

// ChangePasswordRequest payload for PUT /users/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := session.AccountIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, h.logger, errorz.ErrUnauthorized, "password change without session")
		return
	}
	var req ChangePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid password payload")
		return
	}
	if err := h.svc.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		httpx.WriteError(w, h.logger, err, "change password failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, message{"Password updated successfully"})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, err, "list users failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "bad user id")
		return
	}
	p, err := h.svc.FindByID(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "get user failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": p})
}

// UpdateRequest payload for PUT /users/{id}.
type UpdateRequest struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "bad user id")
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid update payload")
		return
	}
	p, err := h.svc.Update(r.Context(), id, req.Name, req.Email, req.Phone)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "update user failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "User updated successfully", "user": p})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "bad user id")
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, err, "delete user failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, message{"User deleted successfully"})
}
