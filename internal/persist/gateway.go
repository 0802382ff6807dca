//go:generate go run go.uber.org/mock/mockgen -source=gateway.go -destination=../mocks/mock_gateway.go -package=mocks

// Package persist stores chat messages, either inline against the repository
// or through the event bus for a consumer to write later.
package persist

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

// EventMessageCreate is the bus event type carrying a MessageRecord.
const EventMessageCreate = "message.create"

// Gateway accepts messages for storage.
type Gateway interface {
	CreateMessage(ctx context.Context, senderID, chatID, content string, attachments []domain.Asset) (*domain.Message, error)
}

// MessageRecord is the queued form of a message.
type MessageRecord struct {
	ID          string         `json:"id"`
	ChatID      string         `json:"chat_id"`
	SenderID    string         `json:"sender_id"`
	Content     string         `json:"content"`
	Attachments []domain.Asset `json:"attachments"`
	CreatedAt   time.Time      `json:"created_at"`
}

func recordFromMessage(m *domain.Message) MessageRecord {
	return MessageRecord{
		ID:          m.ID,
		ChatID:      m.ChatID,
		SenderID:    m.SenderID,
		Content:     m.Content,
		Attachments: m.Attachments,
		CreatedAt:   m.CreatedAt,
	}
}

// ToDomain converts the record back to a message.
func (r MessageRecord) ToDomain() *domain.Message {
	return &domain.Message{
		ID:          r.ID,
		ChatID:      r.ChatID,
		SenderID:    r.SenderID,
		Content:     r.Content,
		Attachments: r.Attachments,
		CreatedAt:   r.CreatedAt,
	}
}
