package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter shared by all instances
type RedisLimiter struct {
	client  redis.Cmdable
	prefix  string
	window  time.Duration
	maxReqs int
}

// NewRedisLimiter creates a limiter storing counters under prefix
func NewRedisLimiter(client redis.Cmdable, prefix string, window time.Duration, maxReqs int) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, window: window, maxReqs: maxReqs}
}

// Allow implements Limiter. The window starts at the first event for the key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.TTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit: redis: %w", err)
	}
	// A negative TTL means the counter was just created (or lost its expiry).
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: redis expire: %w", err)
		}
	}
	return incr.Val() <= int64(l.maxReqs), nil
}
