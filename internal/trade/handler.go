package trade

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/pkg/httpx"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type TradeRequest struct {
	TradeName string `json:"trade_name"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if q := r.URL.Query().Get("search"); q != "" {
		trades, err := h.svc.Search(ctx, q)
		if err != nil {
			httpx.WriteError(w, h.logger, err, "search trades failed")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"message": "Trades retrieved successfully", "trades": trades, "total": len(trades),
		})
		return
	}
	if p, ok := httpx.PageFromQuery(r); ok {
		res, err := h.svc.Page(ctx, p)
		if err != nil {
			httpx.WriteError(w, h.logger, err, "page trades failed")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"message": "Trades retrieved successfully", "trades": res.Trades, "pagination": res.Pagination,
		})
		return
	}
	trades, err := h.svc.List(ctx)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "list trades failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Trades retrieved successfully", "trades": trades, "total": len(trades),
	})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	trades, err := h.svc.Search(r.Context(), q)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "search trades failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Search completed successfully", "query": q, "trades": trades, "total": len(trades),
	})
}

func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	trades, err := h.svc.Featured(r.Context(), limit)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "featured trades failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Featured trades retrieved successfully", "trades": trades, "total": len(trades),
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, err, "trade stats failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "Trades statistics retrieved successfully", "stats": st})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "invalid trade id")
		return
	}
	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "get trade failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "Trade retrieved successfully", "trade": t})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid trade payload")
		return
	}
	t, err := h.svc.Create(r.Context(), req.TradeName)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "create trade failed")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"message": "Trade created successfully", "trade": t})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "invalid trade id")
		return
	}
	var req TradeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err, "invalid trade payload")
		return
	}
	t, err := h.svc.Update(r.Context(), id, req.TradeName)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "update trade failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "Trade updated successfully", "trade": t})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err, "invalid trade id")
		return
	}
	t, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err, "delete trade failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "Trade deleted successfully", "deletedTrade": t})
}
