// Package transport is the outbound mail boundary. The dispatcher only ever
// talks to the Sender interface; the SMTP implementation is one possible
// collaborator behind it.
package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// Sender delivers one rendered email and returns the transport message id.
type Sender interface {
	Send(ctx context.Context, to, subject, bodyHTML string) (string, error)
}

// SMTPSender sends via SMTP using gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, bodyHTML string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := generateMessageID(s.from)

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/html", bodyHTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return messageID, nil
}

func generateMessageID(from string) string {
	domain := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		domain = from[i+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.New(), domain)
}

var _ Sender = (*SMTPSender)(nil)
