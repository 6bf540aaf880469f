package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/taskforge/apiserver/config"
)

const rabbitAppID = "taskforge"

// RabbitMQClient publishes to and consumes from classic queues named after
// the channel. Publishes wait for the broker confirm.
type RabbitMQClient struct {
	conn    *amqp.Connection
	pub     *amqp.Channel
	sub     *amqp.Channel
	durable bool
	autoDel bool

	// pubMu serializes publishes; an amqp channel is not safe for
	// concurrent confirm tracking.
	pubMu    sync.Mutex
	declared sync.Map
}

func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{Properties: amqp.Table{"connection_name": rabbitAppID}})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	client := &RabbitMQClient{conn: conn, durable: cfg.QueueDurable, autoDel: cfg.QueueAutoDelete}

	if client.pub, err = conn.Channel(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq publish channel: %w", err)
	}
	if err := client.pub.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq confirm mode: %w", err)
	}

	if client.sub, err = conn.Channel(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq consume channel: %w", err)
	}
	if cfg.PrefetchCount > 0 {
		if err := client.sub.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("rabbitmq qos: %w", err)
		}
	}
	return client, nil
}

func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if err := r.declare(r.pub, channel); err != nil {
		return "", err
	}

	msg := amqp.Publishing{
		AppId:        rabbitAppID,
		MessageId:    uuid.NewString(),
		ContentType:  "application/octet-stream",
		DeliveryMode: amqp.Transient,
		Headers:      amqp.Table{},
		Body:         data,
	}
	if r.durable {
		msg.DeliveryMode = amqp.Persistent
	}
	for key, value := range attrs {
		if key == AttrContentType {
			msg.ContentType = value
			continue
		}
		msg.Headers[key] = value
	}

	r.pubMu.Lock()
	confirm, err := r.pub.PublishWithDeferredConfirmWithContext(ctx, "", channel, false, false, msg)
	r.pubMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("rabbitmq publish: %w", err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return "", err
	}
	if !acked {
		return "", fmt.Errorf("rabbitmq nacked message %s", msg.MessageId)
	}
	return msg.MessageId, nil
}

// Subscribe consumes until ctx is done or the connection drops. A failed
// message is requeued once and dropped on its second failure.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if err := r.declare(r.sub, channel); err != nil {
		return err
	}

	tag := "worker-" + uuid.NewString()
	deliveries, err := r.sub.ConsumeWithContext(ctx, channel, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}
	defer func() {
		_ = r.sub.Cancel(tag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			r.deliver(ctx, d, handler)
		}
	}
}

func (r *RabbitMQClient) deliver(ctx context.Context, d amqp.Delivery, handler Handler) {
	err := handler(ctx, Message{
		ID:         d.MessageId,
		Data:       d.Body,
		Attributes: headersToAttributes(d.Headers, d.ContentType),
	})
	if err != nil {
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

func (r *RabbitMQClient) Close() error {
	// Closing the connection closes both channels.
	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn.Close()
}

func (r *RabbitMQClient) declare(ch *amqp.Channel, queue string) error {
	if strings.TrimSpace(queue) == "" {
		return errors.New("rabbitmq queue name is required")
	}
	key := fmt.Sprintf("%p/%s", ch, queue)
	if _, ok := r.declared.Load(key); ok {
		return nil
	}
	if _, err := ch.QueueDeclare(queue, r.durable, r.autoDel, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq declare %s: %w", queue, err)
	}
	r.declared.Store(key, struct{}{})
	return nil
}

func headersToAttributes(headers amqp.Table, contentType string) map[string]string {
	if len(headers) == 0 && contentType == "" {
		return nil
	}
	attrs := make(map[string]string, len(headers)+1)
	for key, value := range headers {
		switch v := value.(type) {
		case string:
			attrs[key] = v
		case []byte:
			attrs[key] = string(v)
		default:
			attrs[key] = fmt.Sprint(v)
		}
	}
	if contentType != "" {
		attrs[AttrContentType] = contentType
	}
	return attrs
}
