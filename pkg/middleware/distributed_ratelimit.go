package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/provisioner/pkg/observability"
)

// RedisLimiter implements a fixed-window limit shared by every instance
// through Redis
type RedisLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisLimiter creates a new Redis-backed rate limiter
func NewRedisLimiter(redisClient *redis.Client, config RateLimitConfig, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	window := config.Window
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{
		redis:  redisClient,
		limit:  config.RequestsPerWindow(),
		window: window,
		prefix: prefix,
	}
}

// Allow implements Limiter
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)
	decision := Decision{Limit: rl.limit}

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return decision, fmt.Errorf("redis incr: %w", err)
	}
	// The first hit opens the window
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			return decision, fmt.Errorf("redis expire: %w", err)
		}
	}

	if count <= int64(rl.limit) {
		decision.Allowed = true
		decision.Remaining = rl.limit - int(count)
		return decision, nil
	}

	ttl, err := rl.redis.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		// A key without expiry would block the client forever
		if ttl == -1 {
			if err := rl.redis.Expire(ctx, redisKey, rl.window).Err(); err != nil {
				observability.FromContext(ctx).WithError(err).WithField("key", redisKey).
					Warn("Failed to restore rate limit window expiry")
			}
		}
		ttl = rl.window
	}
	decision.RetryAfter = ttl
	return decision, nil
}

// Reset clears the rate limit for a key
func (rl *RedisLimiter) Reset(ctx context.Context, key string) error {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)
	return rl.redis.Del(ctx, redisKey).Err()
}
