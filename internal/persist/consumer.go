package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

// FailureFunc is called when a queued message cannot be stored.
type FailureFunc func(ctx context.Context, record MessageRecord, err error)

// Consumer drains the message topic into the repository.
type Consumer struct {
	subscriber pubsub.Subscriber
	topic      string
	messages   repository.MessageRepository
	onFailure  FailureFunc
}

func NewConsumer(subscriber pubsub.Subscriber, topic string, messages repository.MessageRepository, onFailure FailureFunc) *Consumer {
	return &Consumer{
		subscriber: subscriber,
		topic:      topic,
		messages:   messages,
		onFailure:  onFailure,
	}
}

// Run consumes until ctx is done or the bus closes.
func (c *Consumer) Run(ctx context.Context) error {
	events, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", c.topic, err)
	}

	l := log.Ctx(ctx)
	l.Info().Str("topic", c.topic).Msg("message consumer started")

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("message consumer stopping")
			return nil
		case event, ok := <-events:
			if !ok {
				l.Info().Msg("message consumer: subscription closed")
				return nil
			}
			c.handleEvent(ctx, event)
		}
	}
}

func (c *Consumer) handleEvent(ctx context.Context, event *pubsub.Event) {
	l := log.Ctx(ctx)
	if event.Type != EventMessageCreate {
		l.Debug().Str("type", event.Type).Msg("ignoring event")
		return
	}

	var record MessageRecord
	if err := event.UnmarshalPayload(&record); err != nil {
		l.Error().Err(err).Str("key", event.Key).Msg("failed to decode message record")
		return
	}

	err := c.messages.Create(ctx, record.ToDomain())
	switch {
	case err == nil:
		l.Debug().Str(log.FieldChatID, record.ChatID).Str("message_id", record.ID).Msg("persisted message")
	case errors.Is(err, repository.ErrMessageExists):
		l.Debug().Str("message_id", record.ID).Msg("message already persisted")
	default:
		l.Error().Err(err).Str(log.FieldChatID, record.ChatID).Str("message_id", record.ID).Msg("failed to persist message")
		if c.onFailure != nil {
			c.onFailure(ctx, record, err)
		}
	}
}
