package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"

	"github.com/ovaphlow/pitchfork/service-noc/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

// ErrDelivery wraps mail and SMS transport failures.
var ErrDelivery = fmt.Errorf("%w: message delivery failed", errorz.ErrInternal)

const (
	generatedPasswordLen = 12
	passwordAlphabet     = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
)

// ForgotPassword mails a reset link for email.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	a, err := s.lookupEmail(ctx, email)
	if err != nil {
		return s.maskUnknown(err)
	}
	token, err := s.issue(ctx, a, entity.KindReset)
	if err != nil {
		return err
	}
	return s.sendResetLink(ctx, a, token)
}

// ResetPasswordDirect replaces the password of email with a generated one
// and mails it to the account.
func (s *Service) ResetPasswordDirect(ctx context.Context, email string) error {
	a, err := s.lookupEmail(ctx, email)
	if err != nil {
		return s.maskUnknown(err)
	}
	pw, err := generatePassword()
	if err != nil {
		return fmt.Errorf("%w: random source: %w", errorz.ErrInternal, err)
	}
	if err := s.UpdatePassword(ctx, a.ID, pw); err != nil {
		return err
	}
	body := fmt.Sprintf("Hello %s,\n\nYour password has been reset. Your new password is:\n\n%s\n\n"+
		"Please log in and change it as soon as possible.\n", a.Name, pw)
	if err := s.mail(ctx, a.Email, "Password Reset - New Password", body); err != nil {
		// nobody knows the generated password, so the old one must keep working
		if rerr := s.store.SetPasswordHash(ctx, a.ID, a.PasswordHash); rerr != nil {
			s.logger.Errorw("restoring password after failed delivery", "account_id", a.ID, "err", rerr)
		}
		return err
	}
	s.logger.Infow("password reset directly", "account_id", a.ID)
	return nil
}

// SendOTP mails a fresh OTP to email.
func (s *Service) SendOTP(ctx context.Context, email string) error {
	a, err := s.lookupEmail(ctx, email)
	if err != nil {
		return s.maskUnknown(err)
	}
	code, err := s.issue(ctx, a, entity.KindOTP)
	if err != nil {
		return err
	}
	return s.mail(ctx, a.Email, "Password Reset OTP", otpBody(a.Name, code))
}

// VerifyOTPAndSendResetLink trades a live OTP for a reset link by mail.
func (s *Service) VerifyOTPAndSendResetLink(ctx context.Context, email, code string) error {
	p, err := s.VerifyOTP(ctx, email, code)
	if err != nil {
		return err
	}
	if err := s.ClearOTP(ctx, p.Email); err != nil {
		return err
	}
	a := &entity.Account{ID: p.ID, Name: p.Name, Email: p.Email}
	token, err := s.issue(ctx, a, entity.KindReset)
	if err != nil {
		return err
	}
	return s.sendResetLink(ctx, a, token)
}

// ResetLink builds the frontend URL carrying token.
func (s *Service) ResetLink(token string) string {
	return s.cfg.ResetURLBase + "/reset-password?token=" + url.QueryEscape(token)
}

func (s *Service) sendResetLink(ctx context.Context, a *entity.Account, token string) error {
	body := fmt.Sprintf("Hello %s,\n\nWe received a request to reset your password. "+
		"Open the link below within one hour to choose a new one:\n\n%s\n\n"+
		"If you did not ask for this, you can ignore this email.\n", a.Name, s.ResetLink(token))
	return s.mail(ctx, a.Email, "Password Reset Request", body)
}

func otpBody(name, code string) string {
	return fmt.Sprintf("Hello %s,\n\nYour one-time code is %s. It expires in 10 minutes.\n", name, code)
}

func (s *Service) mail(ctx context.Context, to, subject, body string) error {
	id, err := s.mailer.Send(ctx, to, subject, body)
	if err != nil {
		s.logger.Warnw("mail delivery failed", "subject", subject, "err", err)
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	s.logger.Debugw("mail sent", "id", id, "subject", subject)
	return nil
}

func (s *Service) sendSMS(ctx context.Context, phone, text string) error {
	id, err := s.sms.SendSMS(ctx, phone, text)
	if err != nil {
		s.logger.Warnw("sms delivery failed", "err", err)
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	s.logger.Debugw("sms sent", "id", id)
	return nil
}

// maskUnknown hides ErrAccountNotFound when MaskUnknownEmail is set.
func (s *Service) maskUnknown(err error) error {
	if s.cfg.MaskUnknownEmail && errors.Is(err, ErrAccountNotFound) {
		s.logger.Debug("recovery requested for unknown email")
		return nil
	}
	return err
}

func generatePassword() (string, error) {
	out := make([]byte, generatedPasswordLen)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
