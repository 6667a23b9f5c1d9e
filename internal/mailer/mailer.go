package mailer

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const (
	DriverLog        = "log"
	DriverSMTP       = "smtp"
	DriverMailerSend = "mailersend"
)

var ErrNotConfigured = errors.New("mailer not configured")

type Message struct {
	ToEmail string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Driver    string
	FromName  string
	FromEmail string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPUseTLS   bool

	MailerSendAPIKey string
}

// New picks a driver by name. Unknown or empty names fall back to the log driver.
func New(cfg Config, logger *zap.Logger) (Sender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSMTP:
		if strings.TrimSpace(cfg.SMTPHost) == "" || cfg.SMTPPort <= 0 {
			return nil, ErrNotConfigured
		}
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.FromEmail, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPUseTLS), nil
	case DriverMailerSend:
		sender := NewMailerSendSender(cfg.MailerSendAPIKey, cfg.FromName, cfg.FromEmail)
		if !sender.enabled {
			return nil, ErrNotConfigured
		}
		return sender, nil
	default:
		return NewLogSender(logger), nil
	}
}

type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail (log driver)",
		zap.String("to", msg.ToEmail),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}
