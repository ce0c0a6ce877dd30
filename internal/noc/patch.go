package noc

import (
	"encoding/json"
	"strings"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/internal/noc/entity"
)

type columnKind int

const (
	requiredText columnKind = iota
	optionalText
	dateColumn
	statusColumn
)

var patchColumns = map[string]columnKind{
	"institute_name":     requiredText,
	"complete_address":   requiredText,
	"application_number": requiredText,
	"category":           requiredText,
	"state_name":         requiredText,
	"mis_code":           optionalText,
	"remarks":            optionalText,
	"issue_date":         dateColumn,
	"expiry_date":        dateColumn,
	"status":             statusColumn,
}

// buildPatch turns a JSON object into column values for a partial update.
func buildPatch(patch map[string]json.RawMessage) (map[string]any, error) {
	fields := map[string]any{}
	for key, raw := range patch {
		kind, ok := patchColumns[key]
		if !ok {
			continue
		}
		v, err := decodeColumn(key, kind, raw)
		if err != nil {
			return nil, err
		}
		fields[key] = v
	}
	if len(fields) == 0 {
		return nil, errorz.BadRequest("no updatable fields")
	}
	issue, okIssue := fields["issue_date"].(entity.Date)
	expiry, okExpiry := fields["expiry_date"].(entity.Date)
	if okIssue && okExpiry && expiry.Before(issue.Time) {
		return nil, ErrExpiryBeforeIssue
	}
	return fields, nil
}

func decodeColumn(key string, kind columnKind, raw json.RawMessage) (any, error) {
	switch kind {
	case requiredText:
		var s string
		if json.Unmarshal(raw, &s) != nil || strings.TrimSpace(s) == "" {
			return nil, errorz.BadRequest(key + " must be a non-empty string")
		}
		return strings.TrimSpace(s), nil
	case optionalText:
		var s *string
		if json.Unmarshal(raw, &s) != nil {
			return nil, errorz.BadRequest(key + " must be a string or null")
		}
		return optional(s), nil
	case dateColumn:
		var d entity.Date
		if json.Unmarshal(raw, &d) != nil || d.IsZero() {
			return nil, errorz.BadRequest(key + " must be a YYYY-MM-DD date")
		}
		return d, nil
	default:
		var st entity.Status
		if json.Unmarshal(raw, &st) != nil || !st.Valid() {
			return nil, ErrInvalidStatus
		}
		return st, nil
	}
}
