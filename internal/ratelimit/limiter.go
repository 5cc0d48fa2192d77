// Package ratelimit throttles chat message sends per user.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"hotpot-chat/internal/config"
)

const keyPrefix = "ratelimit:chat:send:"

type Limiter interface {
	// Allow reports whether userID may send another message in the current window.
	Allow(ctx context.Context, userID int) (bool, error)
}

// RedisLimiter is a fixed one-minute window counter shared by every process
// pointing at the same Redis.
type RedisLimiter struct {
	rdb   *redis.Client
	limit int64
	now   func() time.Time
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

func NewRedisLimiter(rdb *redis.Client, cfg config.RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		rdb:   rdb,
		limit: int64(cfg.MessagesPerMinute + cfg.Burst),
		now:   time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, userID int) (bool, error) {
	key := windowKey(userID, l.now())

	pipe := l.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, time.Minute)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	return incr.Val() <= l.limit, nil
}

func windowKey(userID int, now time.Time) string {
	return keyPrefix + strconv.Itoa(userID) + ":" + strconv.FormatInt(now.Truncate(time.Minute).Unix(), 10)
}

type noopLimiter struct{}

// NewNoop returns a Limiter that allows everything.
func NewNoop() Limiter { return noopLimiter{} }

func (noopLimiter) Allow(context.Context, int) (bool, error) { return true, nil }
