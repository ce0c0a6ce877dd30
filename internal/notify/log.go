package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-noc/pkg/utilities"
)

// LogMailer logs that a mail would have been sent. Bodies carry one-time
// secrets and are not logged.
type LogMailer struct {
	logger *zap.SugaredLogger
}

func NewLogMailer(logger *zap.SugaredLogger) *LogMailer { return &LogMailer{logger: logger} }

func (m *LogMailer) Send(_ context.Context, to, subject, _ string) (string, error) {
	if to == "" {
		return "", ErrNoRecipient
	}
	id := utilities.NewSnowflakeID()
	m.logger.Infow("mail (not sent)", "id", id, "to", to, "subject", subject)
	return id, nil
}

// LogSMS logs that an SMS would have been sent.
type LogSMS struct {
	logger *zap.SugaredLogger
}

func NewLogSMS(logger *zap.SugaredLogger) *LogSMS { return &LogSMS{logger: logger} }

func (s *LogSMS) SendSMS(_ context.Context, phone, _ string) (string, error) {
	if phone == "" {
		return "", ErrNoRecipient
	}
	id := utilities.NewSnowflakeID()
	s.logger.Infow("sms (not sent)", "id", id, "to", phone)
	return id, nil
}

// Mail is one message captured by MemoryMailer.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// MemoryMailer records messages in memory. Set Err to make Send fail.
type MemoryMailer struct {
	mu    sync.Mutex
	Mails []Mail
	Err   error
}

func (m *MemoryMailer) Send(_ context.Context, to, subject, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Mails = append(m.Mails, Mail{To: to, Subject: subject, Body: body})
	return utilities.NewSnowflakeID(), nil
}

// Last returns the most recent message, or false if none was sent.
func (m *MemoryMailer) Last() (Mail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Mails) == 0 {
		return Mail{}, false
	}
	return m.Mails[len(m.Mails)-1], true
}

// SMS is one message captured by MemorySMS.
type SMS struct {
	Phone string
	Text  string
}

// MemorySMS records text messages in memory. Set Err to make SendSMS fail.
type MemorySMS struct {
	mu       sync.Mutex
	Messages []SMS
	Err      error
}

func (s *MemorySMS) SendSMS(_ context.Context, phone, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.Messages = append(s.Messages, SMS{Phone: phone, Text: text})
	return utilities.NewSnowflakeID(), nil
}

var (
	_ Mailer    = (*SMTPMailer)(nil)
	_ Mailer    = (*LogMailer)(nil)
	_ Mailer    = (*MemoryMailer)(nil)
	_ SMSSender = (*TwilioSender)(nil)
	_ SMSSender = (*LogSMS)(nil)
	_ SMSSender = (*MemorySMS)(nil)
)
