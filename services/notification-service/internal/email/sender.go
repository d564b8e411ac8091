package email

import (
	"context"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender relays through an unauthenticated SMTP server such as Mailpit.
type SMTPSender struct {
	addr string
	from mail.Address
	now  func() time.Time
}

func NewSMTPSender(host, port, from string) (*SMTPSender, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		from = "ClinicBook <no-reply@clinicbook.local>"
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", from, err)
	}
	return &SMTPSender{
		addr: net.JoinHostPort(host, strings.TrimSpace(port)),
		from: *addr,
		now:  time.Now,
	}, nil
}

// Send ignores ctx cancellation once the SMTP dialogue has started; net/smtp
// has no context support.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg := buildMessage(s.from, *rcpt, subject, body, s.now())
	return smtp.SendMail(s.addr, nil, s.from.Address, []string{rcpt.Address}, []byte(msg))
}

func buildMessage(from, to mail.Address, subject, body string, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.ReplaceAll(subject, "\n", " "))
	fmt.Fprintf(&b, "Date: %s\r\n", at.UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.String()
}
