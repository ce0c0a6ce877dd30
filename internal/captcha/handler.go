package captcha

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/internal/envelope"
	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/httpx"
)

// Code accepts the answer as either a JSON string or a JSON integer.
type Code string

func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*c = Code(strconv.FormatInt(n, 10))
	return nil
}

// ChallengeRequest is the body of both endpoints, plaintext or encrypted.
type ChallengeRequest struct {
	Token       string          `json:"token"`
	Captcha     Code            `json:"captcha"`
	BrowserInfo json.RawMessage `json:"browserInfo"`
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

type Handler struct {
	svc    *Service
	gate   *envelope.Gate
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, gate *envelope.Gate, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, gate: gate, logger: logger}
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string) {
	status := errorz.HTTPStatus(err)
	text := "Database error"
	if status != http.StatusInternalServerError {
		text = errorz.Message(err)
	} else {
		h.logger.Warnw(msg, "err", err)
	}
	httpx.WriteJSON(w, status, result{Success: false, Message: text})
}

// Issue handles POST /users/getCaptchaRequest.
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := envelope.DecodeRequest(h.gate, r, &req); err != nil {
		h.fail(w, err, "invalid captcha request")
		return
	}
	token, err := h.svc.Issue(r.Context(), string(req.Captcha), req.BrowserInfo)
	if err != nil {
		h.fail(w, err, "captcha issue failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result{Success: true, Message: "Get CAPTCHA successfully", Token: token})
}

// Verify handles POST /users/verifyCaptcha. An unknown token is a 404; any
// other mismatch is a 400.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := envelope.DecodeRequest(h.gate, r, &req); err != nil {
		h.fail(w, err, "invalid captcha verify")
		return
	}
	if req.Token == "" || req.Captcha == "" || len(bytes.TrimSpace(req.BrowserInfo)) == 0 {
		h.fail(w, errorz.BadRequest("missing required fields"), "invalid captcha verify")
		return
	}
	out, err := h.svc.Verify(r.Context(), req.Token, string(req.Captcha), req.BrowserInfo)
	if err != nil {
		h.fail(w, err, "captcha verify failed")
		return
	}
	switch out {
	case Verified:
		httpx.WriteJSON(w, http.StatusOK, result{Success: true, Message: out.String()})
	case TokenNotFound:
		httpx.WriteJSON(w, http.StatusNotFound, result{Success: false, Message: out.String()})
	default:
		httpx.WriteJSON(w, http.StatusBadRequest, result{Success: false, Message: out.String()})
	}
}
