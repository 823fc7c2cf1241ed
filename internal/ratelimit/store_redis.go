package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "kilimo:rl:"

// RedisLimiter shares fixed-window counters between instances. Each window
// is one key, incremented and given an expiry in a single pipeline.
type RedisLimiter struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisLimiter builds a limiter on an existing client.
func NewRedisLimiter(client redis.Cmdable) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	start := windowStart(l.now(), window)
	redisKey := keyPrefix + key + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, window+time.Second)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit pipeline: %w", err)
	}
	return result(int(incr.Val()), limit, start.Add(window)), nil
}
