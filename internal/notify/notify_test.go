package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskforge/apiserver/config"
	"github.com/taskforge/apiserver/internal/logging"
	"github.com/taskforge/apiserver/internal/mq"
	"github.com/taskforge/apiserver/types"
)

type recorder struct {
	mu   sync.Mutex
	sent []types.Notification
	err  error
}

func (r *recorder) Send(_ context.Context, n types.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recorder) all() []types.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Notification(nil), r.sent...)
}

func TestDispatcher_DeliversInBackground(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	d.NotifyWelcome(ctx, "mike@example.com", "Mike")
	d.NotifyCancellation(ctx, "jess@example.com", "Jess")
	cancel()

	waitCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	require.NoError(t, d.Wait(waitCtx))

	assert.ElementsMatch(t, []types.Notification{
		{Kind: types.NotificationWelcome, Email: "mike@example.com", Name: "Mike"},
		{Kind: types.NotificationCancellation, Email: "jess@example.com", Name: "Jess"},
	}, rec.all())
}

func TestDispatcher_SwallowsFailures(t *testing.T) {
	d := NewDispatcher(SenderFunc(func(context.Context, types.Notification) error {
		panic("mail server exploded")
	}), logging.Discard())
	d.NotifyWelcome(context.Background(), "mike@example.com", "Mike")

	failing := NewDispatcher(&recorder{err: errors.New("connection refused")}, logging.Discard())
	failing.NotifyWelcome(context.Background(), "mike@example.com", "Mike")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
	require.NoError(t, failing.Wait(ctx))
}

func TestDispatcher_DoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	d := NewDispatcher(SenderFunc(func(ctx context.Context, _ types.Notification) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}), logging.Discard())

	start := time.Now()
	d.NotifyWelcome(context.Background(), "mike@example.com", "Mike")
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)
	close(release)
}

func TestRender(t *testing.T) {
	welcome, err := Render("noreply@example.com", types.Notification{Kind: types.NotificationWelcome, Email: "a@b.c", Name: "Mike"})
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", welcome.To)
	assert.Equal(t, "Welcome to Task Manager, Mike. Please let me know how you like it.", welcome.Body)

	bye, err := Render("noreply@example.com", types.Notification{Kind: types.NotificationCancellation, Name: "Mike"})
	require.NoError(t, err)
	assert.Equal(t, "Mike, we're sorry to see you go. Is there anything we could have done better to have kept you?", bye.Body)

	_, err = Render("noreply@example.com", types.Notification{Kind: "birthday"})
	assert.Error(t, err)
}

type transportFunc func(ctx context.Context, email Email) error

func (f transportFunc) Deliver(ctx context.Context, email Email) error { return f(ctx, email) }

func TestPublisherAndWorker_RoundTrip(t *testing.T) {
	queue := mq.New(mq.NewMemory(8), "account-notifications")
	defer queue.Close()

	delivered := make(chan Email, 1)
	mailer := NewMailer("noreply@example.com", transportFunc(func(_ context.Context, email Email) error {
		delivered <- email
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	worker := NewWorker(queue, mailer, logging.Discard())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// A malformed payload is dropped without stopping the worker.
	_, err := queue.Publish(ctx, []byte("{"), nil)
	require.NoError(t, err)
	require.NoError(t, NewPublisher(queue).Send(ctx, types.Notification{
		Kind:  types.NotificationWelcome,
		Email: "mike@example.com",
		Name:  "Mike",
	}))

	select {
	case email := <-delivered:
		assert.Equal(t, "mike@example.com", email.To)
		assert.Equal(t, "Thanks for Joining!", email.Subject)
	case <-ctx.Done():
		t.Fatal("notification was not delivered")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestSMTPTransport(t *testing.T) {
	_, err := NewSMTPTransport(config.SMTPConfig{})
	require.Error(t, err)

	tr, err := NewSMTPTransport(config.SMTPConfig{Host: "smtp.example.com", Port: 2525, Username: "u", Password: "p"})
	require.NoError(t, err)

	var gotAddr string
	var gotTo []string
	var gotMsg string
	tr.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.NotNil(t, a)
		assert.Equal(t, "noreply@example.com", from)
		return nil
	}

	require.NoError(t, tr.Deliver(context.Background(), Email{
		From:    "noreply@example.com",
		To:      "mike@example.com",
		Subject: "Thanks for Joining!",
		Body:    "hello",
	}))
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, []string{"mike@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(gotMsg, "From: noreply@example.com\r\n"))
	assert.Contains(t, gotMsg, "\r\n\r\nhello\r\n")

	err = tr.Deliver(context.Background(), Email{To: "x@example.com\r\nBcc: evil@example.com"})
	assert.Error(t, err)
}
