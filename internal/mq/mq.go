// Package mq carries account notifications between the API server and the
// worker over a pluggable broker.
package mq

import "context"

// AttrContentType is the attribute naming the payload encoding.
const AttrContentType = "content-type"

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Returning an error asks the broker to
// redeliver it once.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ binds a backend to one channel.
type MQ struct {
	backend Backend
	channel string
}

func New(backend Backend, channel string) *MQ {
	return &MQ{backend: backend, channel: channel}
}

// Channel returns the bound channel name.
func (m *MQ) Channel() string {
	return m.channel
}

// Publish sends a message to the bound channel.
func (m *MQ) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, m.channel, data, attrs)
}

// Subscribe consumes messages from the bound channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, handler Handler) error {
	return m.backend.Subscribe(ctx, m.channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
