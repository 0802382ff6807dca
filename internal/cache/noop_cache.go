package cache

import (
	"context"
	"time"
)

var _ UserCache = NoopUserCache{}

// NoopUserCache is used when Redis is disabled. Every Get misses.
type NoopUserCache struct{}

func (NoopUserCache) Get(context.Context, string) (*UserCacheResult, error) {
	return nil, ErrCacheMiss
}

func (NoopUserCache) Set(context.Context, *UserCacheResult, time.Duration) error { return nil }

func (NoopUserCache) Close() error { return nil }
