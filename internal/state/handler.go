package state

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/pkg/httpx"
)

// Handler exposes the state endpoints. Mutations are mounted behind the
// session guard by the router.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// StateRequest is the body of create and update.
type StateRequest struct {
	StateName string  `json:"state_name"`
	Logo      *string `json:"logo"`
}

// List serves the full list, a ?search= match, or a page when page or limit
// is given.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if q := r.URL.Query().Get("search"); q != "" {
		states, err := h.svc.Search(ctx, q)
		if err != nil {
			httpx.WriteError(w, h.logger, err, "search states failed")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"message": "States retrieved successfully", "states": states, "total": len(states),
		})
		return
	}
	if p, ok := httpx.PageFromQuery(r); ok {
		res, err := h.svc.Page(ctx, p)
		if err != nil {
			httpx.WriteError(w, h.logger, err, "page states failed")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"message": "States retrieved successfully", "states": res.States, "pagination": res.Pagination,
		})
		return
	}
	states, err := h.svc.List(ctx)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "list states failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "States retrieved successfully", "states": states, "total": len(states),
	})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	states, err := h.svc.Search(r.Context(), q)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "search states failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Search completed successfully", "query": q, "states": states, "total": len(states),
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, err, "state stats failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "States statistics retrieved successfully", "stats": st})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "invalid state id")
		return
	}
	st, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "get state failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "State retrieved successfully", "state": st})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req StateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid state payload")
		return
	}
	st, err := h.svc.Create(r.Context(), req.StateName, req.Logo)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "create state failed")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"message": "State created successfully", "state": st})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "invalid state id")
		return
	}
	var req StateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid state payload")
		return
	}
	st, err := h.svc.Update(r.Context(), id, req.StateName, req.Logo)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "update state failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "State updated successfully", "state": st})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "invalid state id")
		return
	}
	st, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "delete state failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "State deleted successfully", "deletedState": st})
}
