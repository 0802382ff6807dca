package domain

import "time"

// Asset references a stored object: its storage key and the URL clients load it from.
type Asset struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// User represents a user entity.
type User struct {
	ID           string
	Name         string
	Username     string
	Bio          string
	PasswordHash string
	Avatar       Asset
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserResponse is the public profile.
type UserResponse struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Bio       string    `json:"bio"`
	Avatar    Asset     `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToResponse converts User to UserResponse.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Bio:       u.Bio,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}

// UserSummary is the compact user shape embedded in chats, messages and requests.
type UserSummary struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Summary converts User to UserSummary.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar.URL}
}

// RegisterRequest holds the text fields of a registration form.
type RegisterRequest struct {
	Name     string `form:"name" binding:"required,max=100"`
	Username string `form:"username" binding:"required,min=3,max=50"`
	Password string `form:"password" binding:"required,min=6"`
	Bio      string `form:"bio" binding:"required,max=500"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SendRequestRequest asks to befriend userId.
type SendRequestRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// AcceptRequestRequest answers a pending friend request.
type AcceptRequestRequest struct {
	RequestID string `json:"requestId" binding:"required"`
	Accept    *bool  `json:"accept" binding:"required"`
}

// AuthResult is a signed-in user and the session token for the cookie.
type AuthResult struct {
	User  UserResponse
	Token string
}
