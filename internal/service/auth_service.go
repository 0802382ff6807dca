//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_authenticator.go -package=mocks
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-chat/internal/cache"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Authenticator turns a session token into the user it belongs to.
type Authenticator interface {
	VerifySessionToken(ctx context.Context, token string) (*domain.User, error)
}

var _ Authenticator = (*authenticatorImpl)(nil)

type authenticatorImpl struct {
	tokens   *jwt.Manager
	users    repository.UserRepository
	cache    cache.UserCache
	cacheTTL time.Duration
	sf       singleflight.Group
}

func NewAuthenticator(tokens *jwt.Manager, users repository.UserRepository, userCache cache.UserCache, cacheTTL time.Duration) Authenticator {
	return &authenticatorImpl{
		tokens:   tokens,
		users:    users,
		cache:    userCache,
		cacheTTL: cacheTTL,
	}
}

// VerifySessionToken validates token and loads its user. A valid token whose
// user no longer exists is rejected.
func (a *authenticatorImpl) VerifySessionToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	claims, err := a.tokens.Validate(token, jwt.KindSession)
	if err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("session token rejected")
		return nil, ErrInvalidSession
	}

	result, err, _ := a.sf.Do(claims.UserID, func() (interface{}, error) {
		return a.fetchWithCache(ctx, claims.UserID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	user, ok := result.(*domain.User)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return user, nil
}

func (a *authenticatorImpl) fetchWithCache(ctx context.Context, userID string) (*domain.User, error) {
	cached, err := a.cache.Get(ctx, userID)
	if err == nil {
		return cached.ToDomain(), nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// async so a slow cache never delays the handshake
	entry := cache.NewUserCacheResult(user)
	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.cache.Set(cacheCtx, entry, a.cacheTTL); err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("cache set error")
		}
	}()

	return entry.ToDomain(), nil
}
