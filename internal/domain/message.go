package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Default page size for message history.
const DefaultResultPerPage = 20

// RealtimeTimeLayout formats createdAt in realtime message views.
const RealtimeTimeLayout = "2006-01-02T15:04:05.000Z"

// NewMessageID returns a ULID. Ids sort by creation time, which keeps history
// order stable for messages created within the same millisecond.
func NewMessageID() string {
	return ulid.Make().String()
}

// Message is a stored chat message.
type Message struct {
	ID          string
	ChatID      string
	SenderID    string
	Content     string
	Attachments []Asset
	CreatedAt   time.Time
}

// MessageResponse is a stored message with its sender resolved.
type MessageResponse struct {
	ID          string      `json:"_id"`
	Content     string      `json:"content"`
	Attachments []Asset     `json:"attachments"`
	Sender      UserSummary `json:"sender"`
	Chat        string      `json:"chat"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// MessagePage is one page of chat history in chronological order.
type MessagePage struct {
	TotalPages int               `json:"totalPages"`
	Messages   []MessageResponse `json:"messages"`
}

// RealtimeMessage is the message shape pushed over sockets before it is stored.
type RealtimeMessage struct {
	ID          string      `json:"_id"`
	Content     string      `json:"content"`
	Attachments []Asset     `json:"attachments,omitempty"`
	Sender      UserSummary `json:"sender"`
	Chat        string      `json:"chat"`
	CreatedAt   string      `json:"createdAt"`
}

// NewRealtimeMessage builds the socket view of a message created at t.
func NewRealtimeMessage(id, chatID, content string, sender UserSummary, attachments []Asset, t time.Time) RealtimeMessage {
	return RealtimeMessage{
		ID:          id,
		Content:     content,
		Attachments: attachments,
		Sender:      sender,
		Chat:        chatID,
		CreatedAt:   t.UTC().Format(RealtimeTimeLayout),
	}
}
