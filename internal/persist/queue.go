package persist

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

var _ Gateway = (*QueueGateway)(nil)

// QueueGateway publishes messages to the bus. The returned message carries
// its final id; it is written once a Consumer picks it up.
type QueueGateway struct {
	publisher pubsub.Publisher
	topic     string
}

func NewQueueGateway(publisher pubsub.Publisher, topic string) *QueueGateway {
	return &QueueGateway{publisher: publisher, topic: topic}
}

func (g *QueueGateway) CreateMessage(ctx context.Context, senderID, chatID, content string, attachments []domain.Asset) (*domain.Message, error) {
	msg := newMessage(senderID, chatID, content, attachments)

	// chat id as key keeps one chat on one partition
	event, err := pubsub.NewEvent(EventMessageCreate, chatID, recordFromMessage(msg))
	if err != nil {
		return nil, fmt.Errorf("%w: encode message: %v", domain.ErrPersistence, err)
	}
	if err := g.publisher.Publish(ctx, g.topic, event); err != nil {
		return nil, fmt.Errorf("%w: publish message: %v", domain.ErrPersistence, err)
	}
	return msg, nil
}
