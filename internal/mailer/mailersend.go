package mailer

import (
	"context"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

const mailerSendTimeout = 10 * time.Second

type MailerSendSender struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSendSender(apiKey, fromName, fromEmail string) *MailerSendSender {
	s := &MailerSendSender{
		enabled: strings.TrimSpace(apiKey) != "" && strings.TrimSpace(fromEmail) != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
	if s.enabled {
		s.client = mailersend.NewMailersend(apiKey)
	}
	return s
}

func (s *MailerSendSender) Send(ctx context.Context, msg Message) error {
	if !s.enabled {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, mailerSendTimeout)
	defer cancel()

	message := s.client.Email.NewMessage()
	message.SetFrom(s.from)
	message.SetRecipients([]mailersend.Recipient{{Name: msg.ToName, Email: msg.ToEmail}})
	message.SetSubject(msg.Subject)
	if strings.TrimSpace(msg.Text) != "" {
		message.SetText(msg.Text)
	}
	if strings.TrimSpace(msg.HTML) != "" {
		message.SetHTML(msg.HTML)
	}

	_, err := s.client.Email.Send(ctx, message)
	return err
}
