package domain

import "time"

// RequestStatus is the lifecycle state of a friend request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
)

// FriendRequest is a pending or accepted friend request between two users.
type FriendRequest struct {
	ID         string
	SenderID   string
	ReceiverID string
	Status     RequestStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Notification is a pending request as shown to its receiver.
type Notification struct {
	ID     string      `json:"_id"`
	Sender UserSummary `json:"sender"`
}
