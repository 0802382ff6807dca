package domain

import "time"

// DashboardDays is the length of the message histogram.
const DashboardDays = 7

// AdminVerifyRequest carries the admin secret.
type AdminVerifyRequest struct {
	SecretKey string `json:"secretKey" binding:"required"`
}

// AdminUser is a user row in the admin console.
type AdminUser struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Groups   int64  `json:"groups"`
	Friends  int64  `json:"friends"`
}

// AdminChat is a chat row in the admin console.
type AdminChat struct {
	ID            string        `json:"_id"`
	Name          string        `json:"name"`
	GroupChat     bool          `json:"groupChat"`
	Avatar        []string      `json:"avatar"`
	Members       []UserSummary `json:"members"`
	Creator       UserSummary   `json:"creator"`
	TotalMembers  int           `json:"totalMembers"`
	TotalMessages int64         `json:"totalMessages"`
}

// AdminMessage is a message row in the admin console.
type AdminMessage struct {
	ID          string      `json:"_id"`
	Content     string      `json:"content"`
	Attachments []Asset     `json:"attachments"`
	Sender      UserSummary `json:"sender"`
	Chat        string      `json:"chat"`
	GroupChat   bool        `json:"groupChat"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// DashboardStats are the admin dashboard totals. Messages[DashboardDays-1] covers
// the last 24 hours and Messages[0] the day six days before it.
type DashboardStats struct {
	TotalUsers    int64   `json:"totalUsers"`
	TotalGroups   int64   `json:"totalGroups"`
	TotalChats    int64   `json:"totalChats"`
	TotalMessages int64   `json:"totalMessages"`
	Messages      []int64 `json:"messages"`
}
