package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
)

// fixedWindowLua counts hits in the current window and starts the window's
// expiry on the first hit.
const fixedWindowLua = `
local n = redis.call('INCR', KEYS[1])
if n == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`

// RateLimiter implements domain.RateLimiter with a fixed window per key.
type RateLimiter struct {
	rdb    *redis.Client
	script *redis.Script
}

func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying(), script: redis.NewScript(fixedWindowLua)}
}

func rateLimitKey(key string, window time.Duration, now time.Time) string {
	bucket := now.UnixMilli() / window.Milliseconds()
	return fmt.Sprintf("ratelimit:%s:%d", key, bucket)
}

// Allow counts one request for key and reports whether it stays within
// limit for the window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if window < time.Millisecond {
		window = time.Millisecond
	}
	n, err := rl.script.Run(ctx, rl.rdb, []string{rateLimitKey(key, window, time.Now())}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return n <= int64(limit), nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
