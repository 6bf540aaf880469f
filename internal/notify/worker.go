package notify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/taskforge/apiserver/internal/logging"
	"github.com/taskforge/apiserver/internal/mq"
	"github.com/taskforge/apiserver/types"
)

// Worker consumes notifications from the broker and sends them.
type Worker struct {
	queue  *mq.MQ
	sender Sender
	log    logging.Logger
}

func NewWorker(queue *mq.MQ, sender Sender, log logging.Logger) *Worker {
	return &Worker{queue: queue, sender: sender, log: log}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info(ctx, "notification worker started", "channel", w.queue.Channel())
	err := w.queue.Subscribe(ctx, w.handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) handle(ctx context.Context, msg mq.Message) error {
	var n types.Notification
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		// Malformed payloads are dropped; redelivery cannot fix them.
		w.log.Warn(ctx, "dropping malformed notification", "message_id", msg.ID, "error", err)
		return nil
	}
	if err := w.sender.Send(ctx, n); err != nil {
		w.log.Warn(ctx, "notification delivery failed", "message_id", msg.ID, "kind", n.Kind, "error", err)
		return err
	}
	w.log.Debug(ctx, "notification delivered", "message_id", msg.ID, "kind", n.Kind)
	return nil
}
