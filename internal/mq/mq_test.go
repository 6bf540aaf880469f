package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PublishSubscribe(t *testing.T) {
	backend := NewMemory(4)
	defer backend.Close()
	queue := New(backend, "account-notifications")
	assert.Equal(t, "account-notifications", queue.Channel())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, err := queue.Publish(ctx, []byte(`{"kind":"welcome"}`), map[string]string{AttrContentType: "application/json"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got := make(chan Message, 1)
	go func() {
		_ = queue.Subscribe(ctx, func(_ context.Context, msg Message) error {
			got <- msg
			return nil
		})
	}()

	select {
	case msg := <-got:
		assert.Equal(t, id, msg.ID)
		assert.Equal(t, `{"kind":"welcome"}`, string(msg.Data))
		assert.Equal(t, "application/json", msg.Attributes[AttrContentType])
	case <-ctx.Done():
		t.Fatal("message was not delivered")
	}
}

func TestMemory_RetriesFailedHandlerOnce(t *testing.T) {
	backend := NewMemory(1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := backend.Publish(ctx, "c", []byte("x"), nil)
	require.NoError(t, err)

	attempts := make(chan struct{}, 4)
	go func() {
		_ = backend.Subscribe(ctx, "c", func(context.Context, Message) error {
			attempts <- struct{}{}
			return errors.New("smtp down")
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-attempts:
		case <-ctx.Done():
			t.Fatalf("attempt %d missing", i+1)
		}
	}
	select {
	case <-attempts:
		t.Fatal("message retried more than once")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemory_Closed(t *testing.T) {
	backend := NewMemory(1)
	require.NoError(t, backend.Close())
	require.NoError(t, backend.Close())

	_, err := backend.Publish(context.Background(), "c", nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, backend.Subscribe(context.Background(), "c", nil), ErrClosed)
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil, ""))

	attrs := headersToAttributes(amqp.Table{"kind": "welcome", "attempt": int32(2), "raw": []byte("b")}, "application/json")
	assert.Equal(t, map[string]string{
		AttrContentType: "application/json",
		"kind":          "welcome",
		"attempt":       "2",
		"raw":           "b",
	}, attrs)
}
