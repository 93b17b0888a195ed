package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
)

// KV implements domain.KV with plain Redis strings.
type KV struct {
	rdb *redis.Client
}

func NewKV(c *Client) *KV {
	return &KV{rdb: c.Underlying()}
}

func (kv *KV) Get(ctx context.Context, key string) (string, error) {
	v, err := kv.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("redis: get %s: %w", key, err)
	}
	return v, nil
}

// Set writes value. A zero ttl keeps the key until deleted.
func (kv *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := kv.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (kv *KV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := kv.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: del: %w", err)
	}
	return nil
}

var _ domain.KV = (*KV)(nil)
