package redis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leafsii/kvhelper/pkg/kv"
	"github.com/leafsii/kvhelper/pkg/kv/textconv"
)

// Store is a Redis-backed implementation of the kv.Store interface
type Store struct {
	client *redis.Client
}

// delIfEqual deletes KEYS[1] only while it still holds ARGV[1]
var delIfEqual = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var connectionErrors = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"connection closed",
	"client is closed",
	"EOF",
}

// IsConnectionError checks if an error means the server could not be reached
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	// Don't treat redis.Nil as a connection error (it means "key not found")
	if errors.Is(err, redis.Nil) {
		return false
	}

	// Context cancellation by caller is not a backend failure
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Check for various network/connection errors
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Check for syscall connection errors
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.ETIMEDOUT:
			return true
		}
	}

	// Check error message for common connection issues
	errStr := err.Error()
	for _, connErr := range connectionErrors {
		if strings.Contains(errStr, connErr) {
			return true
		}
	}

	return false
}

// wrapConnectionError wraps connection errors with ErrBackendUnavailable
func wrapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	if IsConnectionError(err) {
		return fmt.Errorf("%w: %v", kv.ErrBackendUnavailable, err)
	}
	return err
}

// finish maps a go-redis result onto the kv error contract
func finish[T any](val T, err error) (T, error) {
	if errors.Is(err, redis.Nil) {
		return val, kv.ErrNotFound
	}
	return val, wrapConnectionError(err)
}

// finishText is finish for string replies, repairing malformed UTF-8 the way
// the memory backend does
func finishText(val string, err error) (string, error) {
	val, err = finish(val, err)
	return textconv.Repair(val), err
}

func finishTexts(vals []string, err error) ([]string, error) {
	vals, err = finish(vals, err)
	return textconv.RepairAll(vals), err
}

// ParseOptions reads a redis:// URL, also accepting a bare host:port/db address
func ParseOptions(redisURL string) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err == nil {
		return opt, nil
	}

	// Fallback for simple address format
	u, parseErr := url.Parse("redis://" + redisURL)
	if parseErr != nil || u.Host == "" {
		return nil, err // Return original error
	}

	db := 0
	if u.Path != "" && u.Path != "/" {
		dbNum, dbErr := strconv.Atoi(strings.TrimPrefix(u.Path, "/"))
		if dbErr != nil {
			return nil, fmt.Errorf("invalid redis database %q: %w", u.Path, dbErr)
		}
		db = dbNum
	}

	opt = &redis.Options{
		Addr: u.Host,
		DB:   db,
	}
	if u.User != nil {
		if password, hasPassword := u.User.Password(); hasPassword {
			opt.Password = password
		}
	}
	return opt, nil
}

// New creates a new Redis-backed store
func New(redisURL string) (*Store, error) {
	opt, err := ParseOptions(redisURL)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(opt)
}

// NewWithOptions connects with explicit client options and verifies the server answers
func NewWithOptions(opt *redis.Options) (*Store, error) {
	client := redis.NewClient(opt)

	timeout := 5 * time.Second
	if opt.DialTimeout > 0 {
		timeout = opt.DialTimeout
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, wrapConnectionError(err)
	}

	return &Store{client: client}, nil
}

// NewFromClient wraps an existing client without pinging it
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// String operations

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return finishText(s.client.Get(ctx, key).Result())
}

// Set stores value without expiry, dropping any previous TTL
func (s *Store) Set(ctx context.Context, key string, value string) error {
	return wrapConnectionError(s.client.Set(ctx, key, value, 0).Err())
}

func (s *Store) SetEx(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return kv.ErrInvalidExpire
	}
	return wrapConnectionError(s.client.SetEx(ctx, key, value, ttl).Err())
}

func (s *Store) SetNX(ctx context.Context, key string, value string) (bool, error) {
	return finish(s.client.SetNX(ctx, key, value, 0).Result())
}

// SetNXEx sends "SET key value NX EX seconds" as one raw command
func (s *Store) SetNXEx(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return kv.SetIfAbsent(ctx, s, kv.SetIfAbsentFrame{Key: key, Value: value, TTL: ttl})
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return finish(s.client.Del(ctx, keys...).Result())
}

func (s *Store) DelIfEqual(ctx context.Context, key string, value string) (bool, error) {
	deleted, err := delIfEqual.Run(ctx, s.client, []string{key}, value).Int64()
	if err != nil {
		return false, wrapConnectionError(err)
	}
	return deleted == 1, nil
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return finish(s.client.Exists(ctx, keys...).Result())
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return finish(s.client.Expire(ctx, key, ttl).Result())
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, wrapConnectionError(err)
	}

	// go-redis passes the -2 and -1 sentinels through unscaled
	switch ttl {
	case -2:
		return 0, kv.ErrNotFound
	case -1:
		return kv.NoExpiry, nil
	}
	return ttl, nil
}

// Counter operations

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return finish(s.client.Incr(ctx, key).Result())
}

func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return finish(s.client.IncrBy(ctx, key, n).Result())
}

func (s *Store) Decr(ctx context.Context, key string) (int64, error) {
	return finish(s.client.Decr(ctx, key).Result())
}

func (s *Store) DecrBy(ctx context.Context, key string, n int64) (int64, error) {
	return finish(s.client.DecrBy(ctx, key, n).Result())
}

// Hash operations

func (s *Store) HSet(ctx context.Context, key string, field string, value string) error {
	return wrapConnectionError(s.client.HSet(ctx, key, field, value).Err())
}

func (s *Store) HGet(ctx context.Context, key string, field string) (string, error) {
	return finishText(s.client.HGet(ctx, key, field).Result())
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	return finish(s.client.HDel(ctx, key, fields...).Result())
}

func (s *Store) HMSet(ctx context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return wrapConnectionError(s.client.HSet(ctx, key, pairs(values)...).Err())
}

func (s *Store) HMGet(ctx context.Context, key string, fields ...string) ([]kv.Value, error) {
	if len(fields) == 0 {
		return []kv.Value{}, nil
	}
	result, err := s.client.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, wrapConnectionError(err)
	}
	return toValues(result), nil
}

func (s *Store) HExists(ctx context.Context, key string, field string) (bool, error) {
	return finish(s.client.HExists(ctx, key, field).Result())
}

func (s *Store) HLen(ctx context.Context, key string) (int64, error) {
	return finish(s.client.HLen(ctx, key).Result())
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := finish(s.client.HGetAll(ctx, key).Result())
	return textconv.RepairMap(fields), err
}

// Set operations

func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	return finish(s.client.SAdd(ctx, key, toArgs(members)...).Result())
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	return finish(s.client.SRem(ctx, key, toArgs(members)...).Result())
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	return finishTexts(s.client.SMembers(ctx, key).Result())
}

func (s *Store) SPop(ctx context.Context, key string) (string, error) {
	return finishText(s.client.SPop(ctx, key).Result())
}

func (s *Store) SPopN(ctx context.Context, key string, count int64) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}
	popped, err := s.client.SPopN(ctx, key, count).Result()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	return finishTexts(popped, err)
}

func (s *Store) SIsMember(ctx context.Context, key string, member string) (bool, error) {
	return finish(s.client.SIsMember(ctx, key, member).Result())
}

// Sorted set operations

func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) (bool, error) {
	added, err := s.ZAddMany(ctx, key, kv.Z{Member: member, Score: score})
	return added == 1, err
}

func (s *Store) ZAddMany(ctx context.Context, key string, members ...kv.Z) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	zs := make([]redis.Z, len(members))
	for i, z := range members {
		zs[i] = redis.Z{Score: z.Score, Member: z.Member}
	}
	return finish(s.client.ZAdd(ctx, key, zs...).Result())
}

func (s *Store) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	return finish(s.client.ZRem(ctx, key, toArgs(members)...).Result())
}

func (s *Store) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return finishTexts(s.client.ZRange(ctx, key, start, stop).Result())
}

func (s *Store) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	return finishTexts(s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}).Result())
}

func (s *Store) ZRangeByScoreLimit(ctx context.Context, key string, min, max float64, offset, count int64) ([]string, error) {
	if count == 0 {
		return []string{}, nil
	}
	return finishTexts(s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:    formatScore(min),
		Max:    formatScore(max),
		Offset: offset,
		Count:  count,
	}).Result())
}

func (s *Store) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	return finish(s.client.ZCount(ctx, key, formatScore(min), formatScore(max)).Result())
}

// ZCountBounds validates both bounds locally so a malformed bound fails with
// kv.ErrInvalidBound on every backend
func (s *Store) ZCountBounds(ctx context.Context, key string, min, max string) (int64, error) {
	lo, err := kv.ParseScoreBound(min)
	if err != nil {
		return 0, err
	}
	hi, err := kv.ParseScoreBound(max)
	if err != nil {
		return 0, err
	}
	return finish(s.client.ZCount(ctx, key, lo.String(), hi.String()).Result())
}

func (s *Store) ZRank(ctx context.Context, key string, member string) (int64, error) {
	return finish(s.client.ZRank(ctx, key, member).Result())
}

func (s *Store) ZIncrBy(ctx context.Context, key string, increment float64, member string) (float64, error) {
	return finish(s.client.ZIncrBy(ctx, key, increment, member).Result())
}

func (s *Store) ZScore(ctx context.Context, key string, member string) (float64, error) {
	return finish(s.client.ZScore(ctx, key, member).Result())
}

// List operations

func (s *Store) LPush(ctx context.Context, key string, values ...string) (int64, error) {
	if len(values) == 0 {
		return s.LLen(ctx, key)
	}
	return finish(s.client.LPush(ctx, key, toArgs(values)...).Result())
}

func (s *Store) RPush(ctx context.Context, key string, values ...string) (int64, error) {
	if len(values) == 0 {
		return s.LLen(ctx, key)
	}
	return finish(s.client.RPush(ctx, key, toArgs(values)...).Result())
}

func (s *Store) LPop(ctx context.Context, key string) (string, error) {
	return finishText(s.client.LPop(ctx, key).Result())
}

func (s *Store) RPop(ctx context.Context, key string) (string, error) {
	return finishText(s.client.RPop(ctx, key).Result())
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return finishTexts(s.client.LRange(ctx, key, start, stop).Result())
}

func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	return finish(s.client.LLen(ctx, key).Result())
}

// Multi operations

func (s *Store) MGet(ctx context.Context, keys ...string) ([]kv.Value, error) {
	if len(keys) == 0 {
		return []kv.Value{}, nil
	}
	result, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapConnectionError(err)
	}
	return toValues(result), nil
}

func (s *Store) MSet(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return wrapConnectionError(s.client.MSet(ctx, pairs(values)...).Err())
}

// Do issues a raw command. A null reply comes back as (nil, nil).
func (s *Store) Do(ctx context.Context, args ...any) (any, error) {
	reply, err := s.client.Do(ctx, args...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapConnectionError(err)
	}
	return reply, nil
}

// Health check

func (s *Store) Ping(ctx context.Context) error {
	return wrapConnectionError(s.client.Ping(ctx).Err())
}

// Cleanup

func (s *Store) Close() error {
	return s.client.Close()
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func pairs(values map[string]string) []any {
	args := make([]any, 0, len(values)*2)
	for k, v := range values {
		args = append(args, k, v)
	}
	return args
}

func toValues(replies []any) []kv.Value {
	values := make([]kv.Value, len(replies))
	for i, reply := range replies {
		switch r := reply.(type) {
		case string:
			values[i] = kv.Value{Str: textconv.Repair(r), Valid: true}
		case []byte:
			values[i] = kv.Value{Str: textconv.Decode(r), Valid: true}
		}
	}
	return values
}

func formatScore(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
