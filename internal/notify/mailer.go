package notify

import (
	"context"
	"fmt"

	"github.com/taskforge/apiserver/internal/logging"
	"github.com/taskforge/apiserver/types"
)

// Email is a rendered plain-text message.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Transport puts a rendered email on the wire.
type Transport interface {
	Deliver(ctx context.Context, email Email) error
}

// Render builds the email for n.
func Render(from string, n types.Notification) (Email, error) {
	email := Email{From: from, To: n.Email}
	switch n.Kind {
	case types.NotificationWelcome:
		email.Subject = "Thanks for Joining!"
		email.Body = fmt.Sprintf("Welcome to Task Manager, %s. Please let me know how you like it.", n.Name)
	case types.NotificationCancellation:
		email.Subject = "You've Cancelled Your Account"
		email.Body = fmt.Sprintf("%s, we're sorry to see you go. Is there anything we could have done better to have kept you?", n.Name)
	default:
		return Email{}, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	return email, nil
}

// Mailer renders notifications and hands them to a Transport.
type Mailer struct {
	from      string
	transport Transport
}

func NewMailer(from string, transport Transport) *Mailer {
	return &Mailer{from: from, transport: transport}
}

func (m *Mailer) Send(ctx context.Context, n types.Notification) error {
	email, err := Render(m.from, n)
	if err != nil {
		return err
	}
	return m.transport.Deliver(ctx, email)
}

// LogTransport writes emails to the log instead of sending them.
type LogTransport struct {
	log logging.Logger
}

func NewLogTransport(log logging.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Deliver(ctx context.Context, email Email) error {
	t.log.Info(ctx, "email", "to", email.To, "subject", email.Subject, "body", email.Body)
	return nil
}
