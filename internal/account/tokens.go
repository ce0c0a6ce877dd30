package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-noc/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

const (
	ResetTokenTTL = time.Hour
	OTPTTL        = 10 * time.Minute

	resetTokenBytes = 32
	otpMin          = 100000
	otpSpan         = 900000
)

// digest is what the aux slot stores; the plaintext only leaves by mail or SMS.
func digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// newOTP draws uniformly from [100000, 999999].
func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// IssueResetToken stores a fresh reset token for email, valid for one hour,
// replacing any token or OTP already in the slot.
func (s *Service) IssueResetToken(ctx context.Context, email string) (string, error) {
	a, err := s.lookupEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return s.issue(ctx, a, entity.KindReset)
}

// IssueOTP stores a fresh six-digit OTP for email, valid for ten minutes.
func (s *Service) IssueOTP(ctx context.Context, email string) (string, error) {
	a, err := s.lookupEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return s.issue(ctx, a, entity.KindOTP)
}

func (s *Service) issue(ctx context.Context, a *entity.Account, kind entity.TokenKind) (string, error) {
	var (
		secret string
		ttl    time.Duration
		err    error
	)
	switch kind {
	case entity.KindReset:
		secret, err = newResetToken()
		ttl = ResetTokenTTL
	case entity.KindOTP:
		secret, err = newOTP()
		ttl = OTPTTL
	default:
		return "", fmt.Errorf("%w: unknown token kind %q", errorz.ErrInternal, kind)
	}
	if err != nil {
		return "", fmt.Errorf("%w: random source: %w", errorz.ErrInternal, err)
	}

	tok := entity.AuxToken{Kind: kind, Digest: digest(secret), ExpiresAt: s.NowFunc().Add(ttl)}
	if err := s.store.SetAuxToken(ctx, a.ID, tok); err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	s.logger.Infow("aux token issued", "account_id", a.ID, "kind", kind)
	return secret, nil
}

// ConsumeResetToken sets newPassword on the account holding token if the
// token is still live, clearing it in the same write. Wrong and expired
// tokens both report false and change nothing.
func (s *Service) ConsumeResetToken(ctx context.Context, token, newPassword string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	if err := checkPassword(newPassword); err != nil {
		return false, err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return false, fmt.Errorf("%w: hash password: %w", errorz.ErrInternal, err)
	}
	ok, err := s.store.ConsumeResetToken(ctx, digest(token), s.NowFunc(), hash)
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Infow("password reset via token")
	}
	return ok, nil
}

// ResetPassword is ConsumeResetToken with a rejected token reported as
// ErrInvalidReset.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	ok, err := s.ConsumeResetToken(ctx, token, newPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidReset
	}
	return nil
}

// VerifyOTP returns the account for email if code is its live OTP. The OTP
// stays in place; call ClearOTP once the step it guards is complete.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (*entity.Profile, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if !otpPattern.MatchString(code) {
		return nil, ErrInvalidOTP
	}
	p, err := s.store.FindByAuxToken(ctx, email, entity.KindOTP, digest(code), s.NowFunc())
	if errors.Is(err, errorz.ErrNotFound) {
		return nil, ErrInvalidOTP
	}
	return p, err
}

// ClearOTP empties the slot of email if it holds an OTP.
func (s *Service) ClearOTP(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	return s.store.ClearAuxToken(ctx, email, entity.KindOTP)
}

func (s *Service) lookupEmail(ctx context.Context, email string) (*entity.Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.FindByEmail(ctx, email)
}
