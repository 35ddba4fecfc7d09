package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments the key and arms its expiry on the first hit of a
// window.  A key that somehow lost its TTL is re-armed so it cannot block
// a client forever.
var incrScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	local ttl = redis.call('PTTL', KEYS[1])
	if count == 1 or ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return { count, ttl }
`)

// RedisCounterStore keeps counters in Redis so that every server instance
// shares one budget per key.
type RedisCounterStore struct {
	rdb redis.UniversalClient
}

// NewRedisCounterStore returns a store backed by rdb.
func NewRedisCounterStore(rdb redis.UniversalClient) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, window time.Duration) (Counter, error) {
	vals, err := incrScript.Run(ctx, s.rdb, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return Counter{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return Counter{}, fmt.Errorf("%w: unexpected script result %#v", ErrBackendUnavailable, vals)
	}
	return Counter{
		Count:   asInt64(arr[0]),
		ResetIn: time.Duration(asInt64(arr[1])) * time.Millisecond,
	}, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
