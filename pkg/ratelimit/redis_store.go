package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript performs the fixed-window check-and-increment atomically.
// KEYS[1] is the counter key, ARGV[1] the limit, ARGV[2] the window in
// milliseconds. Returns {allowed, count, ttl_ms}.
var takeScript = redis.NewScript(`
local count = redis.call("GET", KEYS[1])
if not count then
	redis.call("SET", KEYS[1], 1, "PX", ARGV[2])
	return {1, 1, tonumber(ARGV[2])}
end
count = tonumber(count)
if count >= tonumber(ARGV[1]) then
	return {0, count, redis.call("PTTL", KEYS[1])}
end
count = redis.call("INCR", KEYS[1])
return {1, count, redis.call("PTTL", KEYS[1])}
`)

// RedisStore implements Store backed by Redis, sharing counters across
// processes. Window expiry rides on key TTLs, so no explicit cleanup is
// needed.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the default "ratelimit:" key prefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		keyPrefix: "ratelimit:",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *RedisStore) Take(ctx context.Context, key string, limit int, window time.Duration) (bool, int64, time.Time, error) {
	res, err := takeScript.Run(ctx, s.client, []string{s.keyPrefix + key}, limit, window.Milliseconds()).Slice()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("ratelimit: take failed: %w", err)
	}
	if len(res) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("ratelimit: unexpected script result: %v", res)
	}

	allowed := res[0].(int64) == 1
	count := res[1].(int64)
	ttl := time.Duration(res[2].(int64)) * time.Millisecond

	return allowed, count, time.Now().Add(ttl), nil
}

func (s *RedisStore) Peek(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, s.keyPrefix+key)
	ttlCmd := pipe.PTTL(ctx, s.keyPrefix+key)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, time.Time{}, fmt.Errorf("ratelimit: peek failed: %w", err)
	}

	count, err := getCmd.Int64()
	if err == redis.Nil {
		return 0, time.Now().Add(window), nil
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("ratelimit: peek failed: %w", err)
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = window
	}

	return count, time.Now().Add(ttl), nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("ratelimit: delete failed: %w", err)
	}
	return nil
}
