// Package adaptredis holds the Redis-backed adapters.
package adaptredis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// FixedWindowLimiter counts attempts per key in a fixed window shared by all
// replicas.
type FixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewFixedWindowLimiter allows limit attempts per key every window.
func NewFixedWindowLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *FixedWindowLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &FixedWindowLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow records one attempt for key and reports whether it is within the
// limit. When it is not, retryAfter is the time left in the window.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l.client == nil {
		return false, 0, fmt.Errorf("redis client is nil")
	}
	if key == "" {
		key = "unknown"
	}
	windowMS := l.window.Milliseconds()
	if windowMS <= 0 {
		windowMS = 1000
	}

	raw, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + ":" + key}, windowMS).Result()
	if err != nil {
		return false, 0, err
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected redis script response %T", raw)
	}
	count, ok1 := values[0].(int64)
	ttl, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, fmt.Errorf("unexpected redis script values %T, %T", values[0], values[1])
	}
	if count <= int64(l.limit) {
		return true, 0, nil
	}
	return false, time.Duration(ttl) * time.Millisecond, nil
}

// NewClient builds a client from a redis:// URL.
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
