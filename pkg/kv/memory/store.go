package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/leafsii/kvhelper/pkg/kv"
	"github.com/leafsii/kvhelper/pkg/kv/textconv"
)

var (
	errNotInteger = errors.New("value is not an integer or out of range")
	errOverflow   = errors.New("increment or decrement would overflow")
)

// Store is an in-memory implementation of the kv.Store interface
type Store struct {
	mu          sync.RWMutex
	strings     map[string][]byte
	hashes      map[string]map[string][]byte
	sets        map[string]map[string]struct{}
	lists       map[string][][]byte
	zsets       map[string]map[string]float64
	expirations map[string]time.Time

	clock Clock

	janitorInterval time.Duration
	janitorStop     chan struct{}
	janitorDone     chan struct{}
	closeOnce       sync.Once
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces the wall clock used for expirations
func WithClock(clock Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New creates a new in-memory store with optional janitor for TTL cleanup
func New(janitorInterval time.Duration, opts ...Option) *Store {
	s := &Store{
		strings:         make(map[string][]byte),
		hashes:          make(map[string]map[string][]byte),
		sets:            make(map[string]map[string]struct{}),
		lists:           make(map[string][][]byte),
		zsets:           make(map[string]map[string]float64),
		expirations:     make(map[string]time.Time),
		clock:           realClock{},
		janitorInterval: janitorInterval,
		janitorStop:     make(chan struct{}),
		janitorDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if janitorInterval > 0 {
		go s.janitor()
	} else {
		close(s.janitorDone)
	}

	return s
}

// janitor runs background expiration cleanup
func (s *Store) janitor() {
	defer close(s.janitorDone)
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.janitorStop:
			return
		}
	}
}

// evictExpired removes all expired keys
func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for key, expiry := range s.expirations {
		if !now.Before(expiry) {
			s.deleteKeyUnsafe(key)
		}
	}
}

// isExpired checks if a key has expired (must hold read lock)
func (s *Store) isExpired(key string) bool {
	if expiry, exists := s.expirations[key]; exists {
		return !s.clock.Now().Before(expiry)
	}
	return false
}

// purgeExpired drops key if its TTL has elapsed (must hold write lock)
func (s *Store) purgeExpired(key string) {
	if s.isExpired(key) {
		s.deleteKeyUnsafe(key)
	}
}

// setExpiration sets TTL for a key (must hold write lock)
func (s *Store) setExpiration(key string, ttl time.Duration) {
	if ttl > 0 {
		s.expirations[key] = s.clock.Now().Add(ttl)
	} else {
		delete(s.expirations, key)
	}
}

// existsUnsafe reports whether a live key of any type exists (must hold read lock)
func (s *Store) existsUnsafe(key string) bool {
	if s.isExpired(key) {
		return false
	}
	if _, found := s.strings[key]; found {
		return true
	}
	if _, found := s.hashes[key]; found {
		return true
	}
	if _, found := s.sets[key]; found {
		return true
	}
	if _, found := s.lists[key]; found {
		return true
	}
	_, found := s.zsets[key]
	return found
}

// deleteKeyUnsafe removes a key and its expiry from all data structures (must hold write lock)
func (s *Store) deleteKeyUnsafe(key string) {
	delete(s.strings, key)
	delete(s.hashes, key)
	delete(s.sets, key)
	delete(s.lists, key)
	delete(s.zsets, key)
	delete(s.expirations, key)
}

// String operations

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isExpired(key) {
		return "", kv.ErrNotFound
	}

	value, exists := s.strings[key]
	if !exists {
		return "", kv.ErrNotFound
	}

	return textconv.Decode(value), nil
}

func (s *Store) Set(ctx context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteKeyUnsafe(key)
	s.strings[key] = textconv.Encode(value)
	return nil
}

func (s *Store) SetEx(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return kv.ErrInvalidExpire
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteKeyUnsafe(key)
	s.strings[key] = textconv.Encode(value)
	s.setExpiration(key, ttl)
	return nil
}

func (s *Store) SetNX(ctx context.Context, key string, value string) (bool, error) {
	return s.setIfAbsent(key, value, 0), nil
}

// SetNXEx goes through Do with the same frame the Redis backend sends
func (s *Store) SetNXEx(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return kv.SetIfAbsent(ctx, s, kv.SetIfAbsentFrame{Key: key, Value: value, TTL: ttl})
}

// setIfAbsent writes key only when no live key exists, atomically under the write lock
func (s *Store) setIfAbsent(key, value string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpired(key)
	if s.existsUnsafe(key) {
		return false
	}

	s.strings[key] = textconv.Encode(value)
	s.setExpiration(key, ttl)
	return true
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, key := range keys {
		if s.existsUnsafe(key) {
			deleted++
		}
		s.deleteKeyUnsafe(key)
	}

	return deleted, nil
}

func (s *Store) DelIfEqual(ctx context.Context, key string, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpired(key)
	current, exists := s.strings[key]
	if !exists || textconv.Decode(current) != value {
		return false, nil
	}

	s.deleteKeyUnsafe(key)
	return true, nil
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int64
	for _, key := range keys {
		if s.existsUnsafe(key) {
			exists++
		}
	}

	return exists, nil
}

// Expire sets a TTL on an existing key. A non-positive ttl deletes the key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpired(key)
	if !s.existsUnsafe(key) {
		return false, nil
	}

	if ttl <= 0 {
		s.deleteKeyUnsafe(key)
		return true, nil
	}

	s.setExpiration(key, ttl)
	return true, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.existsUnsafe(key) {
		return 0, kv.ErrNotFound
	}

	expiry, hasExpiry := s.expirations[key]
	if !hasExpiry {
		return kv.NoExpiry, nil
	}

	return expiry.Sub(s.clock.Now()), nil
}

// Counter operations

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, 1)
}

func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpired(key)

	var current int64
	if value, exists := s.strings[key]; exists {
		parsed, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil {
			return 0, errNotInteger
		}
		current = parsed
	} else if s.existsUnsafe(key) {
		return 0, errNotInteger
	}

	if (n > 0 && current > math.MaxInt64-n) || (n < 0 && current < math.MinInt64-n) {
		return 0, errOverflow
	}

	newValue := current + n
	s.strings[key] = []byte(strconv.FormatInt(newValue, 10))

	return newValue, nil
}

func (s *Store) Decr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, -1)
}

func (s *Store) DecrBy(ctx context.Context, key string, n int64) (int64, error) {
	if n == math.MinInt64 {
		return 0, errOverflow
	}
	return s.IncrBy(ctx, key, -n)
}

// Hash operations

// hashForWrite returns the hash at key, creating it and replacing any other type (must hold write lock)
func (s *Store) hashForWrite(key string) map[string][]byte {
	s.purgeExpired(key)
	if s.hashes[key] == nil {
		s.deleteKeyUnsafe(key) // Clear other data types
		s.hashes[key] = make(map[string][]byte)
	}
	return s.hashes[key]
}

// hashForRead returns the live hash at key or nil (must hold read lock)
func (s *Store) hashForRead(key string) map[string][]byte {
	if s.isExpired(key) {
		return nil
	}
	return s.hashes[key]
}

func (s *Store) HSet(ctx context.Context, key string, field string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hashForWrite(key)[field] = textconv.Encode(value)
	return nil
}

func (s *Store) HGet(ctx context.Context, key string, field string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.hashForRead(key)[field]
	if !exists {
		return "", kv.ErrNotFound
	}

	return textconv.Decode(value), nil
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpired(key)
	hash, exists := s.hashes[key]
	if !exists {
		return 0, nil
	}

	var deleted int64
	for _, field := range fields {
		if _, fieldExists := hash[field]; fieldExists {
			delete(hash, field)
			deleted++
		}
	}

	// Remove key if hash is empty
	if len(hash) == 0 {
		s.deleteKeyUnsafe(key)
	}

	return deleted, nil
}

func (s *Store) HMSet(ctx context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hash := s.hashForWrite(key)
	for field, value := range values {
		hash[field] = textconv.Encode(value)
	}
	return nil
}

func (s *Store) HMGet(ctx context.Context, key string, fields ...string) ([]kv.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash := s.hashForRead(key)
	result := make([]kv.Value, len(fields))
	for i, field := range fields {
		if value, exists := hash[field]; exists {
			result[i] = kv.Value{Str: textconv.Decode(value), Valid: true}
		}
	}

	return result, nil
}

func (s *Store) HExists(ctx context.Context, key string, field string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.hashForRead(key)[field]
	return exists, nil
}

func (s *Store) HLen(ctx context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.hashForRead(key))), nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return textconv.DecodeMap(s.hashForRead(key)), nil
}

// Set operations

func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpired(key)
	if s.sets[key] == nil {
		s.deleteKeyUnsafe(key) // Clear other data types
		s.sets[key] = make(map[string]struct{})
	}

	var added int64
	for _, member := range members {
		if _, exists := s.sets[key][member]; !exists {
			s.sets[key][member] = struct{}{}
			added++
		}
	}

	return added, nil
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpired(key)
	set, exists := s.sets[key]
	if !exists {
		return 0, nil
	}

	var removed int64
	for _, member := range members {
		if _, memberExists := set[member]; memberExists {
			delete(set, member)
			removed++
		}
	}

	// Remove key if set is empty
	if len(set) == 0 {
		s.deleteKeyUnsafe(key)
	}

	return removed, nil
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := []string{}
	if s.isExpired(key) {
		return members, nil
	}

	for member := range s.sets[key] {
		members = append(members, member)
	}

	return members, nil
}

func (s *Store) SPop(ctx context.Context, key string) (string, error) {
	popped, err := s.SPopN(ctx, key, 1)
	if err != nil {
		return "", err
	}
	if len(popped) == 0 {
		return "", kv.ErrNotFound
	}
	return popped[0], nil
}

// SPopN removes up to count members; map iteration order supplies the randomness
func (s *Store) SPopN(ctx context.Context, key string, count int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	popped := []string{}
	s.purgeExpired(key)
	set, exists := s.sets[key]
	if !exists || count <= 0 {
		return popped, nil
	}

	for member := range set {
		if int64(len(popped)) == count {
			break
		}
		delete(set, member)
		popped = append(popped, member)
	}

	if len(set) == 0 {
		s.deleteKeyUnsafe(key)
	}

	return popped, nil
}

func (s *Store) SIsMember(ctx context.Context, key string, member string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isExpired(key) {
		return false, nil
	}

	_, isMember := s.sets[key][member]
	return isMember, nil
}

// Sorted set operations

// zsetForWrite returns the sorted set at key, creating it and replacing any other type (must hold write lock)
func (s *Store) zsetForWrite(key string) map[string]float64 {
	s.purgeExpired(key)
	if s.zsets[key] == nil {
		s.deleteKeyUnsafe(key) // Clear other data types
		s.zsets[key] = make(map[string]float64)
	}
	return s.zsets[key]
}

// sortedUnsafe returns the members at key ordered by score, then member (must hold read lock)
func (s *Store) sortedUnsafe(key string) []kv.Z {
	if s.isExpired(key) {
		return nil
	}

	zset := s.zsets[key]
	sorted := make([]kv.Z, 0, len(zset))
	for member, score := range zset {
		sorted = append(sorted, kv.Z{Member: member, Score: score})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score < sorted[j].Score
		}
		return sorted[i].Member < sorted[j].Member
	})
	return sorted
}

func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) (bool, error) {
	added, err := s.ZAddMany(ctx, key, kv.Z{Member: member, Score: score})
	return added == 1, err
}

func (s *Store) ZAddMany(ctx context.Context, key string, members ...kv.Z) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	zset := s.zsetForWrite(key)
	var added int64
	for _, z := range members {
		if _, exists := zset[z.Member]; !exists {
			added++
		}
		zset[z.Member] = z.Score
	}

	return added, nil
}

func (s *Store) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpired(key)
	zset, exists := s.zsets[key]
	if !exists {
		return 0, nil
	}

	var removed int64
	for _, member := range members {
		if _, memberExists := zset[member]; memberExists {
			delete(zset, member)
			removed++
		}
	}

	if len(zset) == 0 {
		s.deleteKeyUnsafe(key)
	}

	return removed, nil
}

func (s *Store) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.sortedUnsafe(key)
	lo, hi, ok := clampRange(start, stop, int64(len(sorted)))
	if !ok {
		return []string{}, nil
	}

	result := make([]string, 0, hi-lo+1)
	for _, z := range sorted[lo : hi+1] {
		result = append(result, z.Member)
	}
	return result, nil
}

func (s *Store) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	return s.ZRangeByScoreLimit(ctx, key, min, max, 0, -1)
}

// ZRangeByScoreLimit skips offset matches and returns at most count; a negative count returns all
func (s *Store) ZRangeByScoreLimit(ctx context.Context, key string, min, max float64, offset, count int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []string{}
	var skipped int64
	for _, z := range s.sortedUnsafe(key) {
		if z.Score < min || z.Score > max {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if count >= 0 && int64(len(result)) >= count {
			break
		}
		result = append(result, z.Member)
	}
	return result, nil
}

func (s *Store) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isExpired(key) {
		return 0, nil
	}

	var count int64
	for _, score := range s.zsets[key] {
		if score >= min && score <= max {
			count++
		}
	}
	return count, nil
}

func (s *Store) ZCountBounds(ctx context.Context, key string, min, max string) (int64, error) {
	lo, err := kv.ParseScoreBound(min)
	if err != nil {
		return 0, err
	}
	hi, err := kv.ParseScoreBound(max)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isExpired(key) {
		return 0, nil
	}

	var count int64
	for _, score := range s.zsets[key] {
		if lo.AboveMin(score) && hi.BelowMax(score) {
			count++
		}
	}
	return count, nil
}

func (s *Store) ZRank(ctx context.Context, key string, member string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, z := range s.sortedUnsafe(key) {
		if z.Member == member {
			return int64(i), nil
		}
	}
	return 0, kv.ErrNotFound
}

func (s *Store) ZIncrBy(ctx context.Context, key string, increment float64, member string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	zset := s.zsetForWrite(key)
	zset[member] += increment
	return zset[member], nil
}

func (s *Store) ZScore(ctx context.Context, key string, member string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isExpired(key) {
		return 0, kv.ErrNotFound
	}

	score, exists := s.zsets[key][member]
	if !exists {
		return 0, kv.ErrNotFound
	}
	return score, nil
}

// List operations

// listForWrite returns the list at key, creating it and replacing any other type (must hold write lock)
func (s *Store) listForWrite(key string) [][]byte {
	s.purgeExpired(key)
	if s.lists[key] == nil {
		s.deleteKeyUnsafe(key) // Clear other data types
		s.lists[key] = make([][]byte, 0)
	}
	return s.lists[key]
}

func (s *Store) LPush(ctx context.Context, key string, values ...string) (int64, error) {
	if len(values) == 0 {
		return s.LLen(ctx, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.listForWrite(key)

	// Prepend values in order (each value becomes the new head)
	for _, value := range values {
		list = append([][]byte{textconv.Encode(value)}, list...)
	}
	s.lists[key] = list

	return int64(len(list)), nil
}

func (s *Store) RPush(ctx context.Context, key string, values ...string) (int64, error) {
	if len(values) == 0 {
		return s.LLen(ctx, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.listForWrite(key), textconv.EncodeAll(values)...)
	s.lists[key] = list
	return int64(len(list)), nil
}

func (s *Store) LPop(ctx context.Context, key string) (string, error) {
	return s.pop(key, true)
}

func (s *Store) RPop(ctx context.Context, key string) (string, error) {
	return s.pop(key, false)
}

func (s *Store) pop(key string, head bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpired(key)
	list, exists := s.lists[key]
	if !exists || len(list) == 0 {
		return "", kv.ErrNotFound
	}

	var value []byte
	if head {
		value, list = list[0], list[1:]
	} else {
		value, list = list[len(list)-1], list[:len(list)-1]
	}
	s.lists[key] = list

	// Remove key if list is empty
	if len(list) == 0 {
		s.deleteKeyUnsafe(key)
	}

	return textconv.Decode(value), nil
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isExpired(key) {
		return []string{}, nil
	}

	list := s.lists[key]
	lo, hi, ok := clampRange(start, stop, int64(len(list)))
	if !ok {
		return []string{}, nil
	}

	return textconv.DecodeAll(list[lo : hi+1]), nil
}

func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isExpired(key) {
		return 0, nil
	}
	return int64(len(s.lists[key])), nil
}

// clampRange resolves Redis-style inclusive indices, negative counting from the end
func clampRange(start, stop, length int64) (int64, int64, bool) {
	if length == 0 {
		return 0, 0, false
	}

	// Handle negative indices
	if start < 0 {
		start = length + start
	}
	if stop < 0 {
		stop = length + stop
	}

	// Clamp to bounds
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}

	if start > stop || start >= length {
		return 0, 0, false
	}
	return start, stop, true
}

// Multi operations

func (s *Store) MGet(ctx context.Context, keys ...string) ([]kv.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]kv.Value, len(keys))
	for i, key := range keys {
		if s.isExpired(key) {
			continue
		}
		if value, exists := s.strings[key]; exists {
			result[i] = kv.Value{Str: textconv.Decode(value), Valid: true}
		}
	}

	return result, nil
}

func (s *Store) MSet(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range values {
		s.deleteKeyUnsafe(key)
		s.strings[key] = textconv.Encode(value)
	}

	return nil
}

// Do understands the SET ... NX EX frame only
func (s *Store) Do(ctx context.Context, args ...any) (any, error) {
	frame, ok, err := kv.ParseSetIfAbsent(args)
	if !ok {
		var name any = "<empty>"
		if len(args) > 0 {
			name = args[0]
		}
		return nil, fmt.Errorf("%w: %v", kv.ErrUnsupportedCommand, name)
	}
	if err != nil {
		return nil, err
	}

	if !s.setIfAbsent(frame.Key, frame.Value, frame.TTL) {
		return nil, nil
	}
	return kv.ReplyOK, nil
}

// Ping always returns nil for the in-memory store (always available)
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close stops the background janitor and cleans up resources
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.janitorInterval > 0 {
			close(s.janitorStop)
			<-s.janitorDone
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	// Clear all data
	s.strings = make(map[string][]byte)
	s.hashes = make(map[string]map[string][]byte)
	s.sets = make(map[string]map[string]struct{})
	s.lists = make(map[string][][]byte)
	s.zsets = make(map[string]map[string]float64)
	s.expirations = make(map[string]time.Time)

	return nil
}
