// Package notify delivers out-of-band messages (mail and SMS).
package notify

import (
	"context"
	"errors"
	"os"
	"strconv"

	"go.uber.org/zap"
)

// Mailer delivers a plain-text email and returns the message id.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// SMSSender delivers a text message and returns the provider message id.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, text string) (string, error)
}

// ErrNoRecipient is returned when a message has nowhere to go.
var ErrNoRecipient = errors.New("notify: empty recipient")

// Config holds SMTP and Twilio settings.
type Config struct {
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	From     string

	TwilioSID   string
	TwilioToken string
	TwilioFrom  string
}

// ConfigFromEnv reads EMAIL_* and TWILIO_* variables.
func ConfigFromEnv() Config {
	port := 587
	if v, err := strconv.Atoi(os.Getenv("EMAIL_PORT")); err == nil && v > 0 {
		port = v
	}
	from := os.Getenv("EMAIL_FROM")
	if from == "" {
		from = os.Getenv("EMAIL_USER")
	}
	return Config{
		SMTPHost:    os.Getenv("EMAIL_HOST"),
		SMTPPort:    port,
		SMTPUser:    os.Getenv("EMAIL_USER"),
		SMTPPass:    os.Getenv("EMAIL_PASS"),
		From:        from,
		TwilioSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken: os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:  os.Getenv("TWILIO_FROM_NUMBER"),
	}
}

// NewMailer returns an SMTP mailer, or a LogMailer when no host is configured.
func NewMailer(cfg Config, logger *zap.SugaredLogger) (Mailer, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("EMAIL_HOST not set; mail will be logged, not sent")
		return NewLogMailer(logger), nil
	}
	return NewSMTPMailer(cfg)
}

// NewSMSSender returns a Twilio sender, or a LogSMS when credentials are missing.
func NewSMSSender(cfg Config, logger *zap.SugaredLogger) SMSSender {
	if cfg.TwilioSID == "" || cfg.TwilioToken == "" || cfg.TwilioFrom == "" {
		logger.Warn("twilio not configured; SMS will be logged, not sent")
		return NewLogSMS(logger)
	}
	return NewTwilioSender(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom)
}
