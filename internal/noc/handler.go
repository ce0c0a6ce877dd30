package noc

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/internal/noc/entity"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/httpx"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) writeList(w http.ResponseWriter, res *ListResult, err error, msg string, extra map[string]any) {
	if err != nil {
		httpx.WriteError(w, h.logger, err, "list noc failed")
		return
	}
	body := map[string]any{"message": msg, "certificates": res.Certificates, "pagination": res.Pagination}
	for k, v := range extra {
		body[k] = v
	}
	httpx.WriteJSON(w, http.StatusOK, body)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := httpx.PageFromQuery(r)
	res, err := h.svc.List(r.Context(), p)
	h.writeList(w, res, err, "NOC certificates retrieved successfully", nil)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	p, _ := httpx.PageFromQuery(r)
	q := r.URL.Query().Get("q")
	res, err := h.svc.Search(r.Context(), q, p)
	h.writeList(w, res, err, "Search completed successfully", map[string]any{"query": q})
}

func (h *Handler) ByState(w http.ResponseWriter, r *http.Request) {
	p, _ := httpx.PageFromQuery(r)
	state := r.PathValue("state")
	res, err := h.svc.ByState(r.Context(), state, p)
	h.writeList(w, res, err, "NOC certificates by state retrieved successfully", map[string]any{"state": state})
}

func (h *Handler) ByStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := httpx.PageFromQuery(r)
	status := entity.Status(r.PathValue("status"))
	res, err := h.svc.ByStatus(r.Context(), status, p)
	h.writeList(w, res, err, "NOC certificates by status retrieved successfully", map[string]any{"status": status})
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Statistics(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, err, "noc statistics failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "NOC statistics retrieved successfully", "statistics": st})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "invalid noc id")
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "get noc failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "NOC certificate retrieved successfully", "certificate": c})
}

// GetByApplicationNumber serves /noc/application/{applicationNumber...};
// application numbers may contain slashes.
func (h *Handler) GetByApplicationNumber(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetByApplicationNumber(r.Context(), r.PathValue("applicationNumber"))
	if err != nil {
		httpx.WriteError(w, h.logger, err, "get noc by application failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "NOC certificate retrieved successfully", "certificate": c})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid noc payload")
		return
	}
	c, err := h.svc.Create(r.Context(), in)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "create noc failed")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"message": "NOC certificate created successfully", "certificate": c})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "invalid noc id")
		return
	}
	var patch map[string]json.RawMessage
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid noc payload")
		return
	}
	c, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "update noc failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "NOC certificate updated successfully", "certificate": c})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "invalid noc id")
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, err, "delete noc failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "NOC certificate deleted successfully"})
}

func (h *Handler) AddTrade(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "invalid noc id")
		return
	}
	var in AllocationInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid trade payload")
		return
	}
	a, err := h.svc.AddTrade(r.Context(), id, in)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "add noc trade failed")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Trade added to NOC certificate successfully", "trade_id": a.ID, "trade": a,
	})
}

func (h *Handler) UpdateTrade(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "tradeId")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "invalid trade id")
		return
	}
	var in AllocationInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid trade payload")
		return
	}
	if err := h.svc.UpdateTrade(r.Context(), id, in); err != nil {
		httpx.WriteError(w, h.logger, err, "update noc trade failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "NOC trade updated successfully"})
}

func (h *Handler) RemoveTrade(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "tradeId")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "invalid trade id")
		return
	}
	if err := h.svc.RemoveTrade(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, err, "remove noc trade failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "Trade removed from NOC certificate successfully"})
}
