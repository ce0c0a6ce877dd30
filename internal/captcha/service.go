// Package captcha issues CAPTCHA challenges bound to a browser fingerprint
// and checks the answers clients send back.
package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/internal/captcha/entity"
	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/utilities"
)

// DefaultMaxRecords is how many challenges are retained.
const DefaultMaxRecords = 10

// Store is the persistence the service needs. repo.ChallengeRepo implements it.
type Store interface {
	Create(ctx context.Context, c *entity.Challenge) error
	GetByToken(ctx context.Context, token string) (*entity.Challenge, error)
	Prune(ctx context.Context, keep int) (int64, error)
}

// Outcome is the result of a verification.
type Outcome int

const (
	Verified Outcome = iota
	TokenNotFound
	CodeMismatch
	FingerprintMismatch
)

func (o Outcome) String() string {
	switch o {
	case Verified:
		return "CAPTCHA verified successfully"
	case TokenNotFound:
		return "Token not found"
	case CodeMismatch:
		return "CAPTCHA does not match"
	case FingerprintMismatch:
		return "Browser info does not match"
	default:
		return "unknown outcome " + strconv.Itoa(int(o))
	}
}

var (
	ErrBadCode        = errorz.BadRequest("captcha must be 1-16 letters or digits")
	ErrBadFingerprint = errorz.BadRequest("browser information is required")

	codePattern = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)
)

// MaxRecordsFromEnv reads CAPTCHA_MAX_RECORDS.
func MaxRecordsFromEnv() int {
	if v, err := strconv.Atoi(os.Getenv("CAPTCHA_MAX_RECORDS")); err == nil && v > 0 {
		return v
	}
	return DefaultMaxRecords
}

type Service struct {
	store      Store
	maxRecords int
	logger     *zap.SugaredLogger
}

func NewService(store Store, maxRecords int, logger *zap.SugaredLogger) *Service {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, maxRecords: maxRecords, logger: logger}
}

// Issue stores a challenge for code and fingerprint, trims the store to the
// newest maxRecords challenges, and returns the challenge token.
func (s *Service) Issue(ctx context.Context, code string, fingerprint json.RawMessage) (string, error) {
	if !codePattern.MatchString(code) {
		return "", ErrBadCode
	}
	if !isObject(fingerprint) {
		return "", ErrBadFingerprint
	}

	c := &entity.Challenge{Token: utilities.NewKSUID(), Code: code, Fingerprint: fingerprint}
	if err := s.store.Create(ctx, c); err != nil {
		return "", err
	}
	n, err := s.store.Prune(ctx, s.maxRecords)
	if err != nil {
		return "", err
	}
	if n > 0 {
		s.logger.Debugw("captcha challenges pruned", "deleted", n, "keep", s.maxRecords)
	}
	return c.Token, nil
}

// Verify checks token, then code, then fingerprint, and reports the first
// mismatch. The error is non-nil only when the store fails.
func (s *Service) Verify(ctx context.Context, token, code string, fingerprint json.RawMessage) (Outcome, error) {
	c, err := s.store.GetByToken(ctx, token)
	if errors.Is(err, errorz.ErrNotFound) {
		return TokenNotFound, nil
	}
	if err != nil {
		return 0, err
	}
	if c.Code != code {
		return CodeMismatch, nil
	}
	if !SameFingerprint(c.Fingerprint, fingerprint) {
		return FingerprintMismatch, nil
	}
	return Verified, nil
}

// SameFingerprint compares two JSON documents structurally: key order and
// whitespace do not matter, values must be deeply equal. Numbers compare by
// exact decimal value, so 1 and 1.0 match but 2^53 and 2^53+1 do not.
func SameFingerprint(a, b json.RawMessage) bool {
	va, err := decodeExact(a)
	if err != nil {
		return false
	}
	vb, err := decodeExact(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

var errTrailingData = errors.New("trailing data after JSON value")

func decodeExact(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return canonicalNumbers(v), nil
}

func canonicalNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = canonicalNumbers(e)
		}
	case []any:
		for i := range t {
			t[i] = canonicalNumbers(t[i])
		}
	case json.Number:
		return json.Number(canonicalNumber(t.String()))
	}
	return v
}

// canonicalNumber rewrites a JSON number literal as sign, significant digits
// and a decimal exponent, e.g. "12.50" and "1.25e1" both become "125e-1".
func canonicalNumber(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	mant, expPart, hasExp := strings.Cut(strings.ToLower(s), "e")
	exp := 0
	if hasExp {
		n, err := strconv.Atoi(expPart)
		if err != nil {
			return s
		}
		exp = n
	}
	whole, frac, _ := strings.Cut(mant, ".")
	digits := strings.TrimLeft(whole+frac, "0")
	exp -= len(frac)
	if digits == "" {
		return "0"
	}
	for strings.HasSuffix(digits, "0") {
		digits = digits[:len(digits)-1]
		exp++
	}
	out := digits + "e" + strconv.Itoa(exp)
	if neg {
		out = "-" + out
	}
	return out
}

func isObject(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 || t[0] != '{' {
		return false
	}
	var m map[string]any
	return json.Unmarshal(t, &m) == nil
}
