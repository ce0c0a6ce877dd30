// Package errorz holds the error kinds every component translates its
// failures into before they leave the component.
package errorz

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrInternal     = errors.New("internal error")
)

// SQLSTATEs postgres reports for unique index clashes and CHECK failures.
const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

var kinds = []error{ErrConflict, ErrNotFound, ErrUnauthorized, ErrBadRequest, ErrInternal}

// MapDBErr maps database errors to errorz kinds.
// If err is nil, MapDBErr returns nil.
func MapDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
		case pqCheckViolation:
			return fmt.Errorf("%w: violates %s", ErrBadRequest, pqErr.Constraint)
		}
	}

	if IsKind(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

// IsKind reports whether err already carries one of the errorz kinds.
func IsKind(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// Message returns the text of err without its leading kind, so
// BadRequest("name is required") reads "name is required".
func Message(err error) string {
	s := err.Error()
	for _, k := range kinds {
		if errors.Is(err, k) {
			if rest, ok := strings.CutPrefix(s, k.Error()+": "); ok && rest != "" {
				return rest
			}
		}
	}
	return s
}

// BadRequest wraps a validation message as ErrBadRequest.
func BadRequest(msg string) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, msg)
}

// HTTPStatus maps an error to the status code a handler should reply with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
