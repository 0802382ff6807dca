package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/repository"
)

var _ Gateway = (*DirectGateway)(nil)

// DirectGateway writes messages straight to the repository.
type DirectGateway struct {
	messages repository.MessageRepository
}

func NewDirectGateway(messages repository.MessageRepository) *DirectGateway {
	return &DirectGateway{messages: messages}
}

func (g *DirectGateway) CreateMessage(ctx context.Context, senderID, chatID, content string, attachments []domain.Asset) (*domain.Message, error) {
	msg := newMessage(senderID, chatID, content, attachments)
	if err := g.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: create message: %v", domain.ErrPersistence, err)
	}
	return msg, nil
}

func newMessage(senderID, chatID, content string, attachments []domain.Asset) *domain.Message {
	if attachments == nil {
		attachments = []domain.Asset{}
	}
	return &domain.Message{
		ID:          domain.NewMessageID(),
		ChatID:      chatID,
		SenderID:    senderID,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   time.Now().UTC(),
	}
}
