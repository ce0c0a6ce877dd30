// Package httpx holds the JSON request/response helpers shared by handlers.
package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

// MaxBodyBytes bounds every JSON request body.
const MaxBodyBytes = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError replies with the status derived from err's kind. Internal
// failures are logged and replaced by a generic message so that driver or
// transport details never reach the client.
func WriteError(w http.ResponseWriter, logger *zap.SugaredLogger, err error, msg string) {
	status := errorz.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Warnw(msg, "err", err)
		}
		WriteJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	if logger != nil {
		logger.Debugw(msg, "err", err)
	}
	WriteJSON(w, status, map[string]string{"error": errorz.Message(err)})
}

// ReadBody reads a size-limited request body.
func ReadBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, errorz.BadRequest("unreadable body")
	}
	if len(body) > MaxBodyBytes {
		return nil, errorz.BadRequest("body too large")
	}
	return body, nil
}

// DecodeJSON decodes the request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	body, err := ReadBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errorz.BadRequest("invalid payload")
	}
	return nil
}

// PathID parses a positive integer path wildcard.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorz.BadRequest("valid " + name + " is required")
	}
	return id, nil
}

// Page is a normalised page/limit pair.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// TotalPages returns the number of pages needed for total rows.
func (p Page) TotalPages(total int) int {
	if p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// Pagination is the page metadata returned alongside list results.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func (p Page) Paginate(total int) Pagination {
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: p.TotalPages(total)}
}

// PageFromQuery reads ?page=&limit=, defaulting to page 1 of 10 and capping
// the limit at 100. ok is false when neither parameter was supplied.
func PageFromQuery(r *http.Request) (p Page, ok bool) {
	q := r.URL.Query()
	ok = q.Has("page") || q.Has("limit")
	p.Page, _ = strconv.Atoi(q.Get("page"))
	p.Limit, _ = strconv.Atoi(q.Get("limit"))
	return NormalizePage(p.Page, p.Limit), ok
}

// MaxPage bounds page so that the row offset stays well inside an int32.
const MaxPage = 1_000_000

// NormalizePage clamps page to [1, MaxPage] and limit to [1, 100] (default 10).
func NormalizePage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return Page{Page: page, Limit: limit}
}
