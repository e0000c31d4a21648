package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key, field or member is not found
var ErrNotFound = errors.New("not found")

// ErrBackendUnavailable is returned when the backend storage is unavailable
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrInvalidExpire is returned when an expiry is not a positive number of seconds
var ErrInvalidExpire = errors.New("invalid expire time")

// ErrUnsupportedCommand is returned by backends that cannot run a raw command frame
var ErrUnsupportedCommand = errors.New("unsupported command")

// Value is a possibly missing string returned by multi-key lookups.
// Valid is false when the store replied with a null for that position.
type Value struct {
	Str   string
	Valid bool
}

// Z is a sorted-set member with its score
type Z struct {
	Member string
	Score  float64
}

// Store defines the text facade over a Redis-like key-value store.
// Every method is a single round trip to the store.
type Store interface {
	// String operations
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	SetEx(ctx context.Context, key string, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value string) (bool, error)
	// SetNXEx sets key to value only if it does not exist, expiring it after ttl.
	// It reports false without error when the key already existed.
	SetNXEx(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)

	// Key operations
	Del(ctx context.Context, keys ...string) (int64, error)
	DelIfEqual(ctx context.Context, key string, value string) (bool, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Counter operations
	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)
	DecrBy(ctx context.Context, key string, n int64) (int64, error)

	// Hash operations
	HSet(ctx context.Context, key string, field string, value string) error
	HGet(ctx context.Context, key string, field string) (string, error)
	HDel(ctx context.Context, key string, fields ...string) (int64, error)
	HMSet(ctx context.Context, key string, values map[string]string) error
	HMGet(ctx context.Context, key string, fields ...string) ([]Value, error)
	HExists(ctx context.Context, key string, field string) (bool, error)
	HLen(ctx context.Context, key string) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Set operations
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SPop(ctx context.Context, key string) (string, error)
	SPopN(ctx context.Context, key string, count int64) ([]string, error)
	SIsMember(ctx context.Context, key string, member string) (bool, error)

	// Sorted set operations
	ZAdd(ctx context.Context, key string, score float64, member string) (bool, error)
	ZAddMany(ctx context.Context, key string, members ...Z) (int64, error)
	ZRem(ctx context.Context, key string, members ...string) (int64, error)
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)
	ZRangeByScoreLimit(ctx context.Context, key string, min, max float64, offset, count int64) ([]string, error)
	ZCount(ctx context.Context, key string, min, max float64) (int64, error)
	// ZCountBounds counts members between bounds written in the store's range
	// syntax ("(5" exclusive, "-inf"/"+inf" open), failing with ErrInvalidBound.
	ZCountBounds(ctx context.Context, key string, min, max string) (int64, error)
	ZRank(ctx context.Context, key string, member string) (int64, error)
	ZIncrBy(ctx context.Context, key string, increment float64, member string) (float64, error)
	ZScore(ctx context.Context, key string, member string) (float64, error)

	// List operations
	LPush(ctx context.Context, key string, values ...string) (int64, error)
	RPush(ctx context.Context, key string, values ...string) (int64, error)
	LPop(ctx context.Context, key string) (string, error)
	RPop(ctx context.Context, key string) (string, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)

	// Multi operations
	MGet(ctx context.Context, keys ...string) ([]Value, error)
	MSet(ctx context.Context, values map[string]string) error

	// Do issues a raw command and returns the store's reply.
	// A null reply is returned as (nil, nil).
	Do(ctx context.Context, args ...any) (any, error)

	// Health check
	Ping(ctx context.Context) error

	// Cleanup
	Close() error
}

// NoExpiry is the TTL reported for a key that exists without an expiry
const NoExpiry time.Duration = -1
