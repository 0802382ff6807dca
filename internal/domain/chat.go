package domain

import (
	"slices"
	"time"
)

// Group size limits.
const (
	MinGroupMembers = 2
	MaxGroupMembers = 100
)

// Chat is a one-to-one or group conversation. Members keeps insertion order.
type Chat struct {
	ID        string
	Name      string
	GroupChat bool
	CreatorID string
	Members   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasMember reports whether userID belongs to the chat.
func (c *Chat) HasMember(userID string) bool {
	return slices.Contains(c.Members, userID)
}

// IsCreator reports whether userID administers the chat.
func (c *Chat) IsCreator(userID string) bool {
	return c.CreatorID == userID
}

// ChatResponse is the raw chat document.
type ChatResponse struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	GroupChat bool      `json:"groupChat"`
	Creator   string    `json:"creator"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToResponse converts Chat to ChatResponse.
func (c *Chat) ToResponse() ChatResponse {
	members := c.Members
	if members == nil {
		members = []string{}
	}
	return ChatResponse{
		ID:        c.ID,
		Name:      c.Name,
		GroupChat: c.GroupChat,
		Creator:   c.CreatorID,
		Members:   members,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// PopulatedChat is a chat with member and creator profiles resolved.
type PopulatedChat struct {
	ID        string        `json:"_id"`
	Name      string        `json:"name"`
	GroupChat bool          `json:"groupChat"`
	Creator   *UserSummary  `json:"creator,omitempty"`
	Members   []UserSummary `json:"members"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ChatListItem is one row of the caller's chat list.
type ChatListItem struct {
	ID        string        `json:"_id"`
	Name      string        `json:"name"`
	Avatar    []string      `json:"avatar"`
	GroupChat bool          `json:"groupChat"`
	Members   []UserSummary `json:"members"`
	Creator   string        `json:"creator"`
}

// CreateGroupRequest creates a group chat.
type CreateGroupRequest struct {
	Name    string   `json:"name" binding:"required,max=100"`
	Members []string `json:"members" binding:"required,min=2,max=100,dive,required"`
}

// AddMembersRequest adds users to a group.
type AddMembersRequest struct {
	ChatID  string   `json:"chatId" binding:"required"`
	Members []string `json:"members" binding:"required,min=1,max=100,dive,required"`
}

// RemoveMemberRequest removes one user from a group.
type RemoveMemberRequest struct {
	ChatID string `json:"chatId" binding:"required"`
	UserID string `json:"userId" binding:"required"`
}

// RenameGroupRequest renames a group.
type RenameGroupRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}
