package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
)

// DefaultOpinionTTL bounds how stale a cached price may be.
const DefaultOpinionTTL = 15 * time.Second

// OpinionCache implements domain.OpinionCache as JSON strings under
// "opinion:{id}".
type OpinionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewOpinionCache returns a cache with the given TTL, or DefaultOpinionTTL
// when ttl is not positive.
func NewOpinionCache(c *Client, ttl time.Duration) *OpinionCache {
	if ttl <= 0 {
		ttl = DefaultOpinionTTL
	}
	return &OpinionCache{rdb: c.Underlying(), ttl: ttl}
}

func opinionKey(id uint64) string { return "opinion:" + strconv.FormatUint(id, 10) }

func (oc *OpinionCache) Set(ctx context.Context, op domain.Opinion) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("redis: marshal opinion %d: %w", op.ID, err)
	}
	if err := oc.rdb.Set(ctx, opinionKey(op.ID), data, oc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set opinion %d: %w", op.ID, err)
	}
	return nil
}

// Get returns domain.ErrNotFound on a miss.
func (oc *OpinionCache) Get(ctx context.Context, id uint64) (domain.Opinion, error) {
	data, err := oc.rdb.Get(ctx, opinionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Opinion{}, domain.ErrNotFound
		}
		return domain.Opinion{}, fmt.Errorf("redis: get opinion %d: %w", id, err)
	}
	var op domain.Opinion
	if err := json.Unmarshal(data, &op); err != nil {
		return domain.Opinion{}, fmt.Errorf("redis: unmarshal opinion %d: %w", id, err)
	}
	return op, nil
}

// Invalidate drops the entry after a confirmed answer change.
func (oc *OpinionCache) Invalidate(ctx context.Context, id uint64) error {
	if err := oc.rdb.Del(ctx, opinionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate opinion %d: %w", id, err)
	}
	return nil
}

var _ domain.OpinionCache = (*OpinionCache)(nil)
