package domain

import (
	"sort"
	"time"

	"github.com/weiawesome/wes-io-chat/pkg/database"
)

// UserModel is the GORM model for users table.
type UserModel struct {
	ID             string    `gorm:"type:varchar(36);primaryKey"`
	Name           string    `gorm:"type:varchar(100);not null"`
	Username       string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	Bio            string    `gorm:"type:varchar(500)"`
	PasswordHash   string    `gorm:"type:varchar(255);not null"`
	AvatarPublicID string    `gorm:"type:varchar(255)"`
	AvatarURL      string    `gorm:"type:varchar(1024)"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts UserModel to domain User.
func (m *UserModel) ToDomain() *User {
	return &User{
		ID:           m.ID,
		Name:         m.Name,
		Username:     m.Username,
		Bio:          m.Bio,
		PasswordHash: m.PasswordHash,
		Avatar:       Asset{PublicID: m.AvatarPublicID, URL: m.AvatarURL},
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// UserToModel converts domain User to UserModel.
func UserToModel(u *User) *UserModel {
	return &UserModel{
		ID:             u.ID,
		Name:           u.Name,
		Username:       u.Username,
		Bio:            u.Bio,
		PasswordHash:   u.PasswordHash,
		AvatarPublicID: u.Avatar.PublicID,
		AvatarURL:      u.Avatar.URL,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// ChatModel is the GORM model for chats table.
type ChatModel struct {
	ID        string            `gorm:"type:varchar(36);primaryKey"`
	Name      string            `gorm:"type:varchar(255);not null"`
	GroupChat bool              `gorm:"index;not null;default:false"`
	CreatorID string            `gorm:"type:varchar(36);index"`
	Members   []ChatMemberModel `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time         `gorm:"autoCreateTime"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime;index"`
}

func (ChatModel) TableName() string {
	return "chats"
}

// ChatMemberModel is one membership row. Position preserves join order.
type ChatMemberModel struct {
	ChatID   string `gorm:"type:varchar(36);primaryKey"`
	UserID   string `gorm:"type:varchar(36);primaryKey;index"`
	Position int    `gorm:"not null"`
}

func (ChatMemberModel) TableName() string {
	return "chat_members"
}

// ToDomain converts ChatModel to domain Chat, ordering members by position.
func (m *ChatModel) ToDomain() *Chat {
	rows := make([]ChatMemberModel, len(m.Members))
	copy(rows, m.Members)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })

	members := make([]string, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.UserID)
	}
	return &Chat{
		ID:        m.ID,
		Name:      m.Name,
		GroupChat: m.GroupChat,
		CreatorID: m.CreatorID,
		Members:   members,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ChatToModel converts domain Chat to ChatModel with member rows.
func ChatToModel(c *Chat) *ChatModel {
	return &ChatModel{
		ID:        c.ID,
		Name:      c.Name,
		GroupChat: c.GroupChat,
		CreatorID: c.CreatorID,
		Members:   MemberRows(c.ID, c.Members, 0),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// MemberRows builds membership rows for userIDs starting at position offset.
func MemberRows(chatID string, userIDs []string, offset int) []ChatMemberModel {
	rows := make([]ChatMemberModel, 0, len(userIDs))
	for i, id := range userIDs {
		rows = append(rows, ChatMemberModel{ChatID: chatID, UserID: id, Position: offset + i})
	}
	return rows
}

// MessageModel is the GORM model for messages table.
type MessageModel struct {
	ID          string                 `gorm:"type:varchar(36);primaryKey"`
	ChatID      string                 `gorm:"type:varchar(36);index;not null"`
	SenderID    string                 `gorm:"type:varchar(36);index;not null"`
	Content     string                 `gorm:"type:text"`
	Attachments database.JSON[[]Asset] `gorm:"type:text"`
	CreatedAt   time.Time              `gorm:"index"`
}

func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts MessageModel to domain Message.
func (m *MessageModel) ToDomain() *Message {
	attachments := m.Attachments.Data
	if attachments == nil {
		attachments = []Asset{}
	}
	return &Message{
		ID:          m.ID,
		ChatID:      m.ChatID,
		SenderID:    m.SenderID,
		Content:     m.Content,
		Attachments: attachments,
		CreatedAt:   m.CreatedAt,
	}
}

// MessageToModel converts domain Message to MessageModel.
func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		ID:          msg.ID,
		ChatID:      msg.ChatID,
		SenderID:    msg.SenderID,
		Content:     msg.Content,
		Attachments: database.NewJSON(msg.Attachments),
		CreatedAt:   msg.CreatedAt,
	}
}

// RequestModel is the GORM model for friend requests.
type RequestModel struct {
	ID         string        `gorm:"type:varchar(36);primaryKey"`
	SenderID   string        `gorm:"type:varchar(36);index;not null"`
	ReceiverID string        `gorm:"type:varchar(36);index;not null"`
	Status     RequestStatus `gorm:"type:varchar(16);index;not null"`
	CreatedAt  time.Time     `gorm:"autoCreateTime"`
	UpdatedAt  time.Time     `gorm:"autoUpdateTime"`
}

func (RequestModel) TableName() string {
	return "requests"
}

func (m *RequestModel) ToDomain() *FriendRequest {
	return &FriendRequest{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func RequestToModel(r *FriendRequest) *RequestModel {
	return &RequestModel{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// Models lists every table for migration.
func Models() []interface{} {
	return []interface{}{
		&UserModel{},
		&ChatModel{},
		&ChatMemberModel{},
		&MessageModel{},
		&RequestModel{},
	}
}
