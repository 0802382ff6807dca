package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryPubSub(t *testing.T) {
	t.Run("should deliver events to every subscriber of the topic", func(t *testing.T) {
		req := require.New(t)
		bus := NewMemoryPubSub(4)
		defer bus.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, err := bus.Subscribe(ctx, "chat-messages")
		req.NoError(err)
		b, err := bus.Subscribe(ctx, "chat-messages")
		req.NoError(err)
		other, err := bus.Subscribe(ctx, "other")
		req.NoError(err)

		event, err := NewEvent("message.created", "chat-1", map[string]string{"content": "hi"})
		req.NoError(err)
		req.NoError(bus.Publish(ctx, "chat-messages", event))

		for _, ch := range []<-chan *Event{a, b} {
			select {
			case got := <-ch:
				var payload map[string]string
				req.NoError(got.UnmarshalPayload(&payload))
				req.Equal("hi", payload["content"])
				req.Equal("chat-1", got.Key)
			case <-time.After(time.Second):
				req.Fail("event not delivered")
			}
		}
		req.Len(other, 0)
	})

	t.Run("should close the channel when the subscriber context ends", func(t *testing.T) {
		req := require.New(t)
		bus := NewMemoryPubSub(1)
		defer bus.Close()

		ctx, cancel := context.WithCancel(context.Background())
		ch, err := bus.Subscribe(ctx, "t")
		req.NoError(err)
		cancel()

		select {
		case _, ok := <-ch:
			req.False(ok)
		case <-time.After(time.Second):
			req.Fail("channel not closed")
		}
	})

	t.Run("should not block publishers on abandoned subscribers", func(t *testing.T) {
		req := require.New(t)
		bus := NewMemoryPubSub(1)
		defer bus.Close()

		ctx, cancel := context.WithCancel(context.Background())
		_, err := bus.Subscribe(ctx, "t")
		req.NoError(err)

		event, _ := NewEvent("x", "", nil)
		req.NoError(bus.Publish(context.Background(), "t", event))
		cancel()

		done := make(chan error, 1)
		go func() { done <- bus.Publish(context.Background(), "t", event) }()
		select {
		case err := <-done:
			req.NoError(err)
		case <-time.After(time.Second):
			req.Fail("publish blocked")
		}
	})

	t.Run("should refuse use after close", func(t *testing.T) {
		req := require.New(t)
		bus := NewMemoryPubSub(1)
		req.NoError(bus.Close())
		req.NoError(bus.Close())

		_, err := bus.Subscribe(context.Background(), "t")
		req.ErrorIs(err, ErrClosed)
		event, _ := NewEvent("x", "", nil)
		req.ErrorIs(bus.Publish(context.Background(), "t", event), ErrClosed)
	})
}
