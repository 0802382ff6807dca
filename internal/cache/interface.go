package cache

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

// UserCacheResult is the cached public part of a user. Password hashes never
// leave the database.
type UserCacheResult struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Username  string       `json:"username"`
	Bio       string       `json:"bio"`
	Avatar    domain.Asset `json:"avatar"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewUserCacheResult copies the cacheable fields of u.
func NewUserCacheResult(u *domain.User) *UserCacheResult {
	return &UserCacheResult{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Bio:       u.Bio,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}

// ToDomain converts the cached entry back to a User.
func (r *UserCacheResult) ToDomain() *domain.User {
	return &domain.User{
		ID:        r.ID,
		Name:      r.Name,
		Username:  r.Username,
		Bio:       r.Bio,
		Avatar:    r.Avatar,
		CreatedAt: r.CreatedAt,
	}
}

// UserCache holds resolved users between socket handshakes and REST calls,
// keyed by user id.
type UserCache interface {
	Get(ctx context.Context, userID string) (*UserCacheResult, error)
	Set(ctx context.Context, result *UserCacheResult, ttl time.Duration) error
	Close() error
}
