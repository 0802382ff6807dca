package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

var (
	ErrUserNotFound    = fmt.Errorf("user %w", domain.ErrNotFound)
	ErrChatNotFound    = fmt.Errorf("chat %w", domain.ErrNotFound)
	ErrRequestNotFound = fmt.Errorf("request %w", domain.ErrNotFound)
	ErrUsernameExists  = fmt.Errorf("username already exists: %w", domain.ErrConflict)
	ErrAlreadyMember   = fmt.Errorf("user already in chat: %w", domain.ErrConflict)
	ErrNotMember       = fmt.Errorf("user not in chat: %w", domain.ErrValidation)
	ErrMessageExists   = fmt.Errorf("message already stored: %w", domain.ErrConflict)
)

// ChatKind filters chats by type.
type ChatKind int

const (
	ChatKindAny ChatKind = iota
	ChatKindGroup
	ChatKindDirect
)

// MembershipCount is how many groups and one-to-one chats a user belongs to.
type MembershipCount struct {
	Groups  int64
	Friends int64
}

// UserRepository defines the interface for user data persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetByIDs returns the users that exist, keyed by id.
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	// Search matches usernames containing query, case-insensitively.
	Search(ctx context.Context, query string, excludeIDs []string) ([]*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Count(ctx context.Context) (int64, error)
}

// ChatRepository defines the interface for chats and their memberships.
type ChatRepository interface {
	Create(ctx context.Context, chat *domain.Chat) error
	GetByID(ctx context.Context, id string) (*domain.Chat, error)
	// ListForMember returns userID's chats, most recently updated first.
	ListForMember(ctx context.Context, userID string, kind ChatKind) ([]*domain.Chat, error)
	UpdateName(ctx context.Context, id, name string) error
	AddMembers(ctx context.Context, id string, userIDs []string) error
	// RemoveMember drops userID and, when newCreatorID is set, hands the chat to it.
	RemoveMember(ctx context.Context, id, userID, newCreatorID string) error
	// Delete removes the chat, its memberships and its messages.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Chat, error)
	Count(ctx context.Context, kind ChatKind) (int64, error)
	MembershipCounts(ctx context.Context) (map[string]MembershipCount, error)
}

// MessageRepository defines the interface for message persistence.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// ListByChat returns a page of chatID's messages, newest first.
	ListByChat(ctx context.Context, chatID string, offset, limit int) ([]*domain.Message, error)
	CountByChat(ctx context.Context, chatID string) (int64, error)
	CountGroupedByChat(ctx context.Context) (map[string]int64, error)
	// List returns every message, newest first.
	List(ctx context.Context) ([]*domain.Message, error)
	Count(ctx context.Context) (int64, error)
	CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error)
	AttachmentsByChat(ctx context.Context, chatID string) ([]domain.Asset, error)
}

// RequestRepository defines the interface for friend requests.
type RequestRepository interface {
	Create(ctx context.Context, req *domain.FriendRequest) error
	GetByID(ctx context.Context, id string) (*domain.FriendRequest, error)
	// FindPendingBetween finds a pending request between a and b in either direction.
	FindPendingBetween(ctx context.Context, a, b string) (*domain.FriendRequest, error)
	UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error
	Delete(ctx context.Context, id string) error
	ListPendingFor(ctx context.Context, receiverID string) ([]*domain.FriendRequest, error)
}
