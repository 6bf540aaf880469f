package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrClosed is returned by a closed Memory backend.
var ErrClosed = errors.New("mq: backend closed")

// Memory is an in-process backend. Each channel is a buffered queue shared by
// all subscribers of that channel. A message whose handler fails is retried
// once and then dropped.
type Memory struct {
	mu     sync.Mutex
	queues map[string]chan Message
	size   int
	closed chan struct{}
	once   sync.Once
}

func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 64
	}
	return &Memory{
		queues: map[string]chan Message{},
		size:   buffer,
		closed: make(chan struct{}),
	}
}

func (m *Memory) queue(channel string) chan Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[channel]
	if !ok {
		q = make(chan Message, m.size)
		m.queues[channel] = q
	}
	return q
}

func (m *Memory) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}
	select {
	case <-m.closed:
		return "", ErrClosed
	default:
	}
	select {
	case m.queue(channel) <- msg:
		return msg.ID, nil
	case <-m.closed:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Memory) Subscribe(ctx context.Context, channel string, handler Handler) error {
	q := m.queue(channel)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.closed:
			return ErrClosed
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				_ = handler(ctx, msg)
			}
		}
	}
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}
