package kv

import (
	"context"
	"errors"
	"time"
)

// LogFunc is a function type for structured logging
type LogFunc func(msg string, fields ...any)

// Observer receives one callback per store command
type Observer interface {
	ObserveCommand(ctx context.Context, command string, duration time.Duration, err error)
}

// InstrumentedStore wraps a Store, timing every command and logging failures.
// It never retries, and results and errors pass through untouched.
type InstrumentedStore struct {
	next     Store
	observer Observer
	logger   LogFunc
}

// NewInstrumentedStore decorates next. observer and logger may be nil.
func NewInstrumentedStore(next Store, observer Observer, logger LogFunc) *InstrumentedStore {
	if logger == nil {
		logger = func(msg string, fields ...any) {} // No-op logger
	}
	return &InstrumentedStore{
		next:     next,
		observer: observer,
		logger:   logger,
	}
}

// Unwrap returns the decorated store
func (s *InstrumentedStore) Unwrap() Store {
	return s.next
}

func (s *InstrumentedStore) record(ctx context.Context, command string, start time.Time, err error) {
	if s.observer != nil {
		s.observer.ObserveCommand(ctx, command, time.Since(start), err)
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger("Store command failed", "command", command, "error", err.Error())
	}
}

// exec runs a command that only returns an error
func (s *InstrumentedStore) exec(ctx context.Context, command string, fn func(Store) error) error {
	start := time.Now()
	err := fn(s.next)
	s.record(ctx, command, start, err)
	return err
}

// call runs a command that returns a value
func call[T any](ctx context.Context, s *InstrumentedStore, command string, fn func(Store) (T, error)) (T, error) {
	start := time.Now()
	result, err := fn(s.next)
	s.record(ctx, command, start, err)
	return result, err
}

// String operations

func (s *InstrumentedStore) Get(ctx context.Context, key string) (string, error) {
	return call(ctx, s, "get", func(store Store) (string, error) {
		return store.Get(ctx, key)
	})
}

func (s *InstrumentedStore) Set(ctx context.Context, key string, value string) error {
	return s.exec(ctx, "set", func(store Store) error {
		return store.Set(ctx, key, value)
	})
}

func (s *InstrumentedStore) SetEx(ctx context.Context, key string, value string, ttl time.Duration) error {
	return s.exec(ctx, "setex", func(store Store) error {
		return store.SetEx(ctx, key, value, ttl)
	})
}

func (s *InstrumentedStore) SetNX(ctx context.Context, key string, value string) (bool, error) {
	return call(ctx, s, "setnx", func(store Store) (bool, error) {
		return store.SetNX(ctx, key, value)
	})
}

func (s *InstrumentedStore) SetNXEx(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return call(ctx, s, "setnxex", func(store Store) (bool, error) {
		return store.SetNXEx(ctx, key, value, ttl)
	})
}

// Key operations

func (s *InstrumentedStore) Del(ctx context.Context, keys ...string) (int64, error) {
	return call(ctx, s, "del", func(store Store) (int64, error) {
		return store.Del(ctx, keys...)
	})
}

func (s *InstrumentedStore) DelIfEqual(ctx context.Context, key string, value string) (bool, error) {
	return call(ctx, s, "delifequal", func(store Store) (bool, error) {
		return store.DelIfEqual(ctx, key, value)
	})
}

func (s *InstrumentedStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	return call(ctx, s, "exists", func(store Store) (int64, error) {
		return store.Exists(ctx, keys...)
	})
}

func (s *InstrumentedStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return call(ctx, s, "expire", func(store Store) (bool, error) {
		return store.Expire(ctx, key, ttl)
	})
}

func (s *InstrumentedStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return call(ctx, s, "ttl", func(store Store) (time.Duration, error) {
		return store.TTL(ctx, key)
	})
}

// Counter operations

func (s *InstrumentedStore) Incr(ctx context.Context, key string) (int64, error) {
	return call(ctx, s, "incr", func(store Store) (int64, error) {
		return store.Incr(ctx, key)
	})
}

func (s *InstrumentedStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return call(ctx, s, "incrby", func(store Store) (int64, error) {
		return store.IncrBy(ctx, key, n)
	})
}

func (s *InstrumentedStore) Decr(ctx context.Context, key string) (int64, error) {
	return call(ctx, s, "decr", func(store Store) (int64, error) {
		return store.Decr(ctx, key)
	})
}

func (s *InstrumentedStore) DecrBy(ctx context.Context, key string, n int64) (int64, error) {
	return call(ctx, s, "decrby", func(store Store) (int64, error) {
		return store.DecrBy(ctx, key, n)
	})
}

// Hash operations

func (s *InstrumentedStore) HSet(ctx context.Context, key string, field string, value string) error {
	return s.exec(ctx, "hset", func(store Store) error {
		return store.HSet(ctx, key, field, value)
	})
}

func (s *InstrumentedStore) HGet(ctx context.Context, key string, field string) (string, error) {
	return call(ctx, s, "hget", func(store Store) (string, error) {
		return store.HGet(ctx, key, field)
	})
}

func (s *InstrumentedStore) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	return call(ctx, s, "hdel", func(store Store) (int64, error) {
		return store.HDel(ctx, key, fields...)
	})
}

func (s *InstrumentedStore) HMSet(ctx context.Context, key string, values map[string]string) error {
	return s.exec(ctx, "hmset", func(store Store) error {
		return store.HMSet(ctx, key, values)
	})
}

func (s *InstrumentedStore) HMGet(ctx context.Context, key string, fields ...string) ([]Value, error) {
	return call(ctx, s, "hmget", func(store Store) ([]Value, error) {
		return store.HMGet(ctx, key, fields...)
	})
}

func (s *InstrumentedStore) HExists(ctx context.Context, key string, field string) (bool, error) {
	return call(ctx, s, "hexists", func(store Store) (bool, error) {
		return store.HExists(ctx, key, field)
	})
}

func (s *InstrumentedStore) HLen(ctx context.Context, key string) (int64, error) {
	return call(ctx, s, "hlen", func(store Store) (int64, error) {
		return store.HLen(ctx, key)
	})
}

func (s *InstrumentedStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return call(ctx, s, "hgetall", func(store Store) (map[string]string, error) {
		return store.HGetAll(ctx, key)
	})
}

// Set operations

func (s *InstrumentedStore) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	return call(ctx, s, "sadd", func(store Store) (int64, error) {
		return store.SAdd(ctx, key, members...)
	})
}

func (s *InstrumentedStore) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	return call(ctx, s, "srem", func(store Store) (int64, error) {
		return store.SRem(ctx, key, members...)
	})
}

func (s *InstrumentedStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return call(ctx, s, "smembers", func(store Store) ([]string, error) {
		return store.SMembers(ctx, key)
	})
}

func (s *InstrumentedStore) SPop(ctx context.Context, key string) (string, error) {
	return call(ctx, s, "spop", func(store Store) (string, error) {
		return store.SPop(ctx, key)
	})
}

func (s *InstrumentedStore) SPopN(ctx context.Context, key string, count int64) ([]string, error) {
	return call(ctx, s, "spop", func(store Store) ([]string, error) {
		return store.SPopN(ctx, key, count)
	})
}

func (s *InstrumentedStore) SIsMember(ctx context.Context, key string, member string) (bool, error) {
	return call(ctx, s, "sismember", func(store Store) (bool, error) {
		return store.SIsMember(ctx, key, member)
	})
}

// Sorted set operations

func (s *InstrumentedStore) ZAdd(ctx context.Context, key string, score float64, member string) (bool, error) {
	return call(ctx, s, "zadd", func(store Store) (bool, error) {
		return store.ZAdd(ctx, key, score, member)
	})
}

func (s *InstrumentedStore) ZAddMany(ctx context.Context, key string, members ...Z) (int64, error) {
	return call(ctx, s, "zadd", func(store Store) (int64, error) {
		return store.ZAddMany(ctx, key, members...)
	})
}

func (s *InstrumentedStore) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	return call(ctx, s, "zrem", func(store Store) (int64, error) {
		return store.ZRem(ctx, key, members...)
	})
}

func (s *InstrumentedStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return call(ctx, s, "zrange", func(store Store) ([]string, error) {
		return store.ZRange(ctx, key, start, stop)
	})
}

func (s *InstrumentedStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	return call(ctx, s, "zrangebyscore", func(store Store) ([]string, error) {
		return store.ZRangeByScore(ctx, key, min, max)
	})
}

func (s *InstrumentedStore) ZRangeByScoreLimit(ctx context.Context, key string, min, max float64, offset, count int64) ([]string, error) {
	return call(ctx, s, "zrangebyscore", func(store Store) ([]string, error) {
		return store.ZRangeByScoreLimit(ctx, key, min, max, offset, count)
	})
}

func (s *InstrumentedStore) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	return call(ctx, s, "zcount", func(store Store) (int64, error) {
		return store.ZCount(ctx, key, min, max)
	})
}

func (s *InstrumentedStore) ZCountBounds(ctx context.Context, key string, min, max string) (int64, error) {
	return call(ctx, s, "zcountbounds", func(store Store) (int64, error) {
		return store.ZCountBounds(ctx, key, min, max)
	})
}

func (s *InstrumentedStore) ZRank(ctx context.Context, key string, member string) (int64, error) {
	return call(ctx, s, "zrank", func(store Store) (int64, error) {
		return store.ZRank(ctx, key, member)
	})
}

func (s *InstrumentedStore) ZIncrBy(ctx context.Context, key string, increment float64, member string) (float64, error) {
	return call(ctx, s, "zincrby", func(store Store) (float64, error) {
		return store.ZIncrBy(ctx, key, increment, member)
	})
}

func (s *InstrumentedStore) ZScore(ctx context.Context, key string, member string) (float64, error) {
	return call(ctx, s, "zscore", func(store Store) (float64, error) {
		return store.ZScore(ctx, key, member)
	})
}

// List operations

func (s *InstrumentedStore) LPush(ctx context.Context, key string, values ...string) (int64, error) {
	return call(ctx, s, "lpush", func(store Store) (int64, error) {
		return store.LPush(ctx, key, values...)
	})
}

func (s *InstrumentedStore) RPush(ctx context.Context, key string, values ...string) (int64, error) {
	return call(ctx, s, "rpush", func(store Store) (int64, error) {
		return store.RPush(ctx, key, values...)
	})
}

func (s *InstrumentedStore) LPop(ctx context.Context, key string) (string, error) {
	return call(ctx, s, "lpop", func(store Store) (string, error) {
		return store.LPop(ctx, key)
	})
}

func (s *InstrumentedStore) RPop(ctx context.Context, key string) (string, error) {
	return call(ctx, s, "rpop", func(store Store) (string, error) {
		return store.RPop(ctx, key)
	})
}

func (s *InstrumentedStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return call(ctx, s, "lrange", func(store Store) ([]string, error) {
		return store.LRange(ctx, key, start, stop)
	})
}

func (s *InstrumentedStore) LLen(ctx context.Context, key string) (int64, error) {
	return call(ctx, s, "llen", func(store Store) (int64, error) {
		return store.LLen(ctx, key)
	})
}

// Multi operations

func (s *InstrumentedStore) MGet(ctx context.Context, keys ...string) ([]Value, error) {
	return call(ctx, s, "mget", func(store Store) ([]Value, error) {
		return store.MGet(ctx, keys...)
	})
}

func (s *InstrumentedStore) MSet(ctx context.Context, values map[string]string) error {
	return s.exec(ctx, "mset", func(store Store) error {
		return store.MSet(ctx, values)
	})
}

func (s *InstrumentedStore) Do(ctx context.Context, args ...any) (any, error) {
	return call(ctx, s, "do", func(store Store) (any, error) {
		return store.Do(ctx, args...)
	})
}

// Health check

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	return s.exec(ctx, "ping", func(store Store) error {
		return store.Ping(ctx)
	})
}

// Close closes the decorated store
func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}
