package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskforge/apiserver/internal/mq"
	"github.com/taskforge/apiserver/types"
)

// Publisher is a Sender that forwards notifications to the broker for the
// worker to deliver.
type Publisher struct {
	queue *mq.MQ
}

func NewPublisher(queue *mq.MQ) *Publisher {
	return &Publisher{queue: queue}
}

func (p *Publisher) Send(ctx context.Context, n types.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if _, err := p.queue.Publish(ctx, data, map[string]string{
		mq.AttrContentType: "application/json",
		"kind":             string(n.Kind),
	}); err != nil {
		return fmt.Errorf("publish %s notification: %w", n.Kind, err)
	}
	return nil
}
