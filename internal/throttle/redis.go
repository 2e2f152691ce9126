// Package throttle implements a fixed-window request budget shared across
// server instances through Redis. It guards the credential endpoints, where
// every request costs a bcrypt hash.
package throttle

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request for key fits in the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Result describes the window after a request was counted.
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

// RedisLimiter counts requests per key in windows of fixed length. The first
// request of a window sets the key's expiry.
type RedisLimiter struct {
	client goredis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter allows limit requests per key per window.
func NewRedisLimiter(client goredis.UniversalClient, prefix string, limit int, window time.Duration) *RedisLimiter {
	if limit < 1 {
		limit = 1
	}
	if window < time.Second {
		window = time.Second
	}
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// allowScript counts one request and starts the window on the first one.
// Returns {count, pttl}.
var allowScript = goredis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return {count, redis.call('PTTL', KEYS[1])}
`)

// Allow increments the counter for key and reports whether it is still
// within the limit.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	raw, err := allowScript.Run(ctx, l.client, []string{l.key(key)}, l.window.Milliseconds()).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	vals, ok := raw.([]interface{})
	if !ok || len(vals) < 2 {
		return Result{}, fmt.Errorf("unexpected rate limit result format: %T", raw)
	}
	count, _ := vals[0].(int64)
	pttl, _ := vals[1].(int64)

	reset := time.Duration(pttl) * time.Millisecond
	if reset <= 0 {
		reset = l.window
	}
	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   int(count) <= l.limit,
		Remaining: remaining,
		ResetIn:   reset,
		Limit:     l.limit,
	}, nil
}

// Reset clears the window for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

func (l *RedisLimiter) key(k string) string {
	return fmt.Sprintf("ratelimit:%s:%s", k, l.prefix)
}
