package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter: first increment in a window sets
// the expiry, further increments ride the same key.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, "rate_limit:"+key)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, "rate_limit:"+key, window); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}
