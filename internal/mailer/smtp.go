package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

const mimeBoundary = "gymmaster-alt"

type SMTPSender struct {
	host   string
	port   int
	from   string
	user   string
	pass   string
	useTLS bool
}

func NewSMTPSender(host string, port int, from, user, pass string, useTLS bool) *SMTPSender {
	return &SMTPSender{
		host:   strings.TrimSpace(host),
		port:   port,
		from:   strings.TrimSpace(from),
		user:   strings.TrimSpace(user),
		pass:   pass,
		useTLS: useTLS,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.ToEmail)
	if to == "" {
		return errors.New("empty recipient email")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body := buildMIME(s.from, to, msg)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}

	if !s.useTLS {
		return smtp.SendMail(addr, auth, s.from, []string{to}, body)
	}

	// Implicit TLS (port 465).
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer client.Quit() //nolint:errcheck

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func buildMIME(from, to string, msg Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mimeBoundary)

	fmt.Fprintf(&buf, "--%s\r\n", mimeBoundary)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", msg.Text)

	if strings.TrimSpace(msg.HTML) != "" {
		fmt.Fprintf(&buf, "--%s\r\n", mimeBoundary)
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		fmt.Fprintf(&buf, "%s\r\n\r\n", msg.HTML)
	}

	fmt.Fprintf(&buf, "--%s--\r\n", mimeBoundary)
	return buf.Bytes()
}
