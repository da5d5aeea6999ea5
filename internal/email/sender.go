package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// Sender defines the interface for sending emails.
// rawMessage is the full message, headers included.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	from   string
	auth   smtp.Auth
	addr   string
	logger *zap.Logger
}

// SMTPSettings carries the relay connection details.
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSMTPSender returns an SMTP backed Sender, or a LoggingSender when no host is configured.
func NewSMTPSender(s SMTPSettings, logger *zap.Logger) Sender {
	if s.Host == "" {
		logger.Info("SMTP host not configured, using logging email sender")
		return NewLoggingSender(logger)
	}
	return &SMTPSender{
		from:   s.From,
		auth:   smtp.PlainAuth("", s.Username, s.Password, s.Host),
		addr:   fmt.Sprintf("%s:%d", s.Host, s.Port),
		logger: logger,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if err := smtp.SendMail(s.addr, s.auth, s.from, to, rawMessage); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	s.logger.Info("email sent", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

// LoggingSender only logs what would have been sent.
type LoggingSender struct {
	logger *zap.Logger
}

func NewLoggingSender(logger *zap.Logger) *LoggingSender {
	return &LoggingSender{logger: logger}
}

func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	s.logger.Info("email (logged only)",
		zap.Strings("to", to),
		zap.String("subject", subject),
		zap.ByteString("message", rawMessage),
	)
	return nil
}
