// Package mail delivers plain-text transactional email.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// ErrNotConfigured is returned when SMTP settings are incomplete.
var ErrNotConfigured = errors.New("SMTP settings are not configured")

// Message is a single plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds SMTP relay credentials. Server is host:port.
type SMTPConfig struct {
	Server   string
	User     string
	Password string
}

// SMTPSender sends mail through an authenticated SMTP relay.
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates a sender for the given relay.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}
}

// Send delivers msg. The context is only checked before dialing; net/smtp
// offers no cancellation once the exchange has started.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if s.cfg.Server == "" || s.cfg.User == "" || s.cfg.Password == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	host, _, err := net.SplitHostPort(s.cfg.Server)
	if err != nil {
		return fmt.Errorf("invalid SMTP server %q (expected host:port): %w", s.cfg.Server, err)
	}

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, host)
	if err := s.sendMail(s.cfg.Server, auth, msg.From, []string{msg.To}, msg.bytes()); err != nil {
		return fmt.Errorf("failed to send email via %s: %w", s.cfg.Server, err)
	}
	return nil
}

func (m Message) bytes() []byte {
	var b strings.Builder
	b.WriteString("From: " + headerValue(m.From) + "\r\n")
	b.WriteString("To: " + headerValue(m.To) + "\r\n")
	b.WriteString("Subject: " + headerValue(m.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// headerValue drops line breaks so user input cannot inject headers.
func headerValue(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}
