// Package notify delivers account lifecycle emails without blocking the
// requests that trigger them.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/taskforge/apiserver/internal/logging"
	"github.com/taskforge/apiserver/types"
)

const defaultSendTimeout = 10 * time.Second

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, n types.Notification) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, n types.Notification) error

func (f SenderFunc) Send(ctx context.Context, n types.Notification) error {
	return f(ctx, n)
}

// Dispatcher hands notifications to a Sender on background goroutines.
// Failures are logged and never returned to the caller.
type Dispatcher struct {
	sender  Sender
	log     logging.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, log logging.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, log: log, timeout: defaultSendTimeout}
}

func (d *Dispatcher) NotifyWelcome(ctx context.Context, email, name string) {
	d.dispatch(ctx, types.Notification{Kind: types.NotificationWelcome, Email: email, Name: name})
}

func (d *Dispatcher) NotifyCancellation(ctx context.Context, email, name string) {
	d.dispatch(ctx, types.Notification{Kind: types.NotificationCancellation, Email: email, Name: name})
}

func (d *Dispatcher) dispatch(ctx context.Context, n types.Notification) {
	// The request context is cancelled as soon as the response is written.
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error(ctx, "notification sender panicked", "kind", n.Kind, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := d.sender.Send(ctx, n); err != nil {
			d.log.Warn(ctx, "notification failed", "kind", n.Kind, "email", n.Email, "error", err)
		}
	}()
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
