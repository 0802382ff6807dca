package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

var _ UserCache = (*RedisUserCache)(nil)

// Hash fields of a cached user.
const (
	fieldName      = "name"
	fieldUsername  = "username"
	fieldBio       = "bio"
	fieldAvatarID  = "avatar_id"
	fieldAvatarURL = "avatar_url"
	fieldCreatedAt = "created_at"
)

// RedisUserCache stores each user as a hash at <prefix>:user:<id>.
type RedisUserCache struct {
	client *redis.Client
	prefix string
}

func NewRedisUserCache(cfg config.RedisConfig) (*RedisUserCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisUserCache{client: client, prefix: cfg.CachePrefix}, nil
}

func (c *RedisUserCache) key(userID string) string {
	return c.prefix + ":user:" + userID
}

func (c *RedisUserCache) Get(ctx context.Context, userID string) (*UserCacheResult, error) {
	fields, err := c.client.HGetAll(ctx, c.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user %s from redis: %w", userID, err)
	}
	if len(fields) == 0 {
		return nil, ErrCacheMiss
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		// written by an older layout; treat as a miss so it gets rewritten
		return nil, ErrCacheMiss
	}
	return &UserCacheResult{
		ID:        userID,
		Name:      fields[fieldName],
		Username:  fields[fieldUsername],
		Bio:       fields[fieldBio],
		Avatar:    domain.Asset{PublicID: fields[fieldAvatarID], URL: fields[fieldAvatarURL]},
		CreatedAt: createdAt,
	}, nil
}

// Set replaces the cached hash and its expiry in one transaction.
func (c *RedisUserCache) Set(ctx context.Context, result *UserCacheResult, ttl time.Duration) error {
	key := c.key(result.ID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldName, result.Name,
			fieldUsername, result.Username,
			fieldBio, result.Bio,
			fieldAvatarID, result.Avatar.PublicID,
			fieldAvatarURL, result.Avatar.URL,
			fieldCreatedAt, result.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cache user %s: %w", result.ID, err)
	}
	return nil
}

func (c *RedisUserCache) Close() error {
	return c.client.Close()
}
