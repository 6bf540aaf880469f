package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/taskforge/apiserver/config"
)

// SMTPTransport sends mail through an SMTP relay with PLAIN auth.
type SMTPTransport struct {
	addr string
	host string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPTransport(cfg config.SMTPConfig) (*SMTPTransport, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	t := &SMTPTransport{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host: cfg.Host,
		send: smtp.SendMail,
	}
	if cfg.Username != "" {
		t.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return t, nil
}

func (t *SMTPTransport) Deliver(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(email.To, "\r\n") || strings.ContainsAny(email.Subject, "\r\n") {
		return errors.New("smtp: header contains line break")
	}
	if err := t.send(t.addr, t.auth, email.From, []string{email.To}, message(email)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", t.host, err)
	}
	return nil
}

func message(email Email) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", email.From)
	fmt.Fprintf(&b, "To: %s\r\n", email.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", email.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(email.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
