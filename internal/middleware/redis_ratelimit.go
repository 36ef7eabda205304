package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskhive/backend/pkg/logger"
)

// RedisLimiter is a fixed-window counter shared by every instance using the
// same Redis. It lets requests through when Redis is unreachable.
type RedisLimiter struct {
	client  *redis.Client
	prefix  string
	limit   int
	window  time.Duration
	timeout time.Duration
}

// NewRedisLimiter allows limit requests per key in each window.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{
		client:  client,
		prefix:  "taskhive:ratelimit:",
		limit:   limit,
		window:  window,
		timeout: 250 * time.Millisecond,
	}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) bool {
	if rl.limit <= 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	counter, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		logger.Warn().Err(err).Str("op", "incr").Msg("redis rate limiter error")
		return true
	}
	if counter == 1 {
		if err := rl.client.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			logger.Warn().Err(err).Str("op", "expire").Msg("redis rate limiter error")
		}
	}
	return int(counter) <= rl.limit
}
