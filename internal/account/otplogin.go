package account

import (
	"context"
	"errors"
	"strings"

	"github.com/ovaphlow/pitchfork/service-noc/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

// resolve finds the account for an OTP login by email, or by phone when no
// email is given.
func (s *Service) resolve(ctx context.Context, email, phone string) (*entity.Account, error) {
	email, phone = strings.TrimSpace(email), strings.TrimSpace(phone)
	switch {
	case email != "":
		return s.lookupEmail(ctx, email)
	case phone != "":
		p, err := cleanPhone(&phone)
		if err != nil {
			return nil, err
		}
		a, err := s.store.GetByPhone(ctx, *p)
		if errors.Is(err, errorz.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return a, err
	default:
		return nil, errorz.BadRequest("phone or email required")
	}
}

// StartOTPLogin issues an OTP and delivers it to the account's own email
// when the caller identified by email, and to its phone by SMS when the
// caller gave a phone and the account has one.
func (s *Service) StartOTPLogin(ctx context.Context, email, phone string) error {
	a, err := s.resolve(ctx, email, phone)
	if err != nil {
		return s.maskUnknown(err)
	}
	code, err := s.issue(ctx, a, entity.KindOTP)
	if err != nil {
		return err
	}

	sent := false
	if strings.TrimSpace(email) != "" {
		if err := s.mail(ctx, a.Email, "Your OTP", otpBody(a.Name, code)); err != nil {
			return err
		}
		sent = true
	}
	if strings.TrimSpace(phone) != "" && a.Phone != nil && *a.Phone != "" {
		if err := s.sendSMS(ctx, *a.Phone, "Your OTP is "+code); err != nil {
			return err
		}
		sent = true
	}
	if !sent {
		return errorz.BadRequest("no delivery channel for this account")
	}
	return nil
}

// CompleteOTPLogin claims the OTP in a single conditional write, so a code
// logs in at most once, then issues a session token.
func (s *Service) CompleteOTPLogin(ctx context.Context, email, phone, code string) (*AuthResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errorz.BadRequest("phone/email and OTP required")
	}
	a, err := s.resolve(ctx, email, phone)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrOTPLoginRejected
	}
	if err != nil {
		return nil, err
	}
	if !otpPattern.MatchString(code) {
		return nil, ErrOTPLoginRejected
	}
	ok, err := s.store.ClaimAuxToken(ctx, a.ID, entity.KindOTP, digest(code), s.NowFunc())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOTPLoginRejected
	}
	s.logger.Infow("otp login", "account_id", a.ID)
	return s.authResult(a.Profile())
}
