// Package session issues and verifies the stateless bearer tokens that
// identify a logged-in account.
package session

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

// DefaultTTL is the lifetime of a session token.
const DefaultTTL = 24 * time.Hour

var (
	ErrInvalidToken = fmt.Errorf("%w: invalid or expired session token", errorz.ErrUnauthorized)
	ErrNoSecret     = errors.New("session: JWT_SECRET is required")
)

// Config is process-wide and immutable after startup.
type Config struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// ConfigFromEnv reads JWT_SECRET, JWT_ISSUER and JWT_TTL (a Go duration).
func ConfigFromEnv() (Config, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return Config{}, ErrNoSecret
	}
	ttl := DefaultTTL
	if v := os.Getenv("JWT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("session: bad JWT_TTL %q", v)
		}
		ttl = d
	}
	return Config{Secret: []byte(secret), Issuer: os.Getenv("JWT_ISSUER"), TTL: ttl}, nil
}

// Claims carries the account id as userId alongside the registered claims.
type Claims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

// Issuer signs HS256 session tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration

	// NowFunc is the clock; tests replace it.
	NowFunc func() time.Time
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrNoSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: cfg.Secret, issuer: cfg.Issuer, ttl: ttl, NowFunc: time.Now}, nil
}

// Issue returns a signed token for accountID that expires after the TTL.
func (i *Issuer) Issue(accountID int64) (string, error) {
	now := i.NowFunc()
	claims := Claims{
		UserID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(accountID, 10),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%w: sign session: %w", errorz.ErrInternal, err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry. Account existence is not
// checked; a token outlives a deleted account until it expires.
func (i *Issuer) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.NowFunc),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	var claims Claims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil || !tok.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// TTL reports the configured token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }
