package domain

import (
	"context"
	"time"
)

// OpinionCache holds short-lived opinion snapshots read from chain.
type OpinionCache interface {
	Set(ctx context.Context, op Opinion) error
	Get(ctx context.Context, id uint64) (Opinion, error)
	Invalidate(ctx context.Context, id uint64) error
}

// KV is a minimal string key-value store used for wallet sessions.
// Get returns ErrNotFound for missing keys.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub for live updates.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter counts requests per key in a time window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
