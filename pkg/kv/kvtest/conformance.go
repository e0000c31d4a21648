// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/leafsii/kvhelper/pkg/kv"
)

// Harness is a store under test plus a way to move its clock
type Harness struct {
	Store kv.Store
	// Advance moves the store's notion of time forward by d
	Advance func(d time.Duration)
}

// StoreFactory creates a fresh, empty Store for each test
type StoreFactory func(t *testing.T) Harness

type conformanceTest struct {
	name string
	test func(t *testing.T, h Harness)
}

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	groups := []struct {
		name  string
		tests []conformanceTest
	}{
		{"StringOperations", []conformanceTest{
			{"SetGet", testSetGet},
			{"SetEmptyString", testSetEmptyString},
			{"GetNonExistent", testGetNonExistent},
			{"SetClearsTTL", testSetClearsTTL},
			{"SetExRejectsNonPositive", testSetExRejectsNonPositive},
			{"SetNX", testSetNX},
			{"InvalidUTF8Repaired", testInvalidUTF8Repaired},
		}},
		{"ConditionalSet", []conformanceTest{
			{"AbsentKey", testSetNXExAbsent},
			{"ExistingKeyUntouched", testSetNXExExisting},
			{"ExistingKeyKeepsTTL", testSetNXExExistingKeepsTTL},
			{"Scenario", testSetNXExScenario},
			{"RawFrame", testRawFrame},
			{"SubSecondTTL", testSetNXExSubSecond},
		}},
		{"KeyOperations", []conformanceTest{
			{"Del", testDel},
			{"DelIfEqual", testDelIfEqual},
			{"Exists", testExists},
		}},
		{"TTLOperations", []conformanceTest{
			{"SetExExpires", testSetExExpires},
			{"Expire", testExpire},
			{"TTLSentinels", testTTLSentinels},
		}},
		{"CounterOperations", []conformanceTest{
			{"IncrDecr", testIncrDecr},
			{"IncrNonInteger", testIncrNonInteger},
		}},
		{"HashOperations", []conformanceTest{
			{"HSetHGet", testHSetHGet},
			{"HMSetHGetAll", testHMSetHGetAll},
			{"HMGet", testHMGet},
			{"HDelHLen", testHDelHLen},
		}},
		{"SetOperations", []conformanceTest{
			{"SAddSMembers", testSAddSMembers},
			{"SPop", testSPop},
			{"SPopN", testSPopN},
		}},
		{"SortedSetOperations", []conformanceTest{
			{"ZAddZRange", testZAddZRange},
			{"ZRangeByScore", testZRangeByScore},
			{"ZCountBounds", testZCountBounds},
			{"ZRankZScore", testZRankZScore},
			{"ZIncrByZRem", testZIncrByZRem},
		}},
		{"ListOperations", []conformanceTest{
			{"RPushLRange", testRPushLRange},
			{"LPushLRange", testLPushLRange},
			{"Pop", testPop},
			{"LRangeNegative", testLRangeNegative},
		}},
		{"MultiOperations", []conformanceTest{
			{"MSetMGet", testMSetMGet},
		}},
		{"EmptyWrites", []conformanceTest{
			{"LeaveOtherTypesAlone", testEmptyWritesKeepExistingKey},
			{"CreateNothing", testEmptyWritesCreateNothing},
		}},
		{"HealthCheck", []conformanceTest{
			{"Ping", testPing},
		}},
	}

	for _, group := range groups {
		t.Run(group.name, func(t *testing.T) {
			for _, tt := range group.tests {
				t.Run(tt.name, func(t *testing.T) {
					h := factory(t)
					defer h.Store.Close()
					tt.test(t, h)
				})
			}
		})
	}
}

func mustGet(t *testing.T, store kv.Store, key string) string {
	t.Helper()
	value, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return value
}

func expectMissing(t *testing.T, store kv.Store, key string) {
	t.Helper()
	_, err := store.Get(context.Background(), key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for %q, got %v", key, err)
	}
}

// String operations

func testSetGet(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:string"
	value := "hello world"

	if err := h.Store.Set(ctx, key, value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if result := mustGet(t, h.Store, key); result != value {
		t.Fatalf("Expected %q, got %q", value, result)
	}
}

func testSetEmptyString(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:empty"

	if err := h.Store.Set(ctx, key, ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if result := mustGet(t, h.Store, key); result != "" {
		t.Fatalf("Expected empty string, got %q", result)
	}
}

func testGetNonExistent(t *testing.T, h Harness) {
	expectMissing(t, h.Store, "test:nonexistent")
}

func testSetClearsTTL(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:setclears"

	if err := h.Store.SetEx(ctx, key, "a", 10*time.Second); err != nil {
		t.Fatalf("SetEx failed: %v", err)
	}
	if err := h.Store.Set(ctx, key, "b"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ttl, err := h.Store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != kv.NoExpiry {
		t.Fatalf("Expected no expiry after Set, got %v", ttl)
	}

	h.Advance(11 * time.Second)
	if result := mustGet(t, h.Store, key); result != "b" {
		t.Fatalf("Expected %q, got %q", "b", result)
	}
}

func testSetExRejectsNonPositive(t *testing.T, h Harness) {
	err := h.Store.SetEx(context.Background(), "test:setex0", "v", 0)
	if !errors.Is(err, kv.ErrInvalidExpire) {
		t.Fatalf("Expected ErrInvalidExpire, got %v", err)
	}
	expectMissing(t, h.Store, "test:setex0")
}

func testSetNX(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:setnx"

	ok, err := h.Store.SetNX(ctx, key, "first")
	if err != nil || !ok {
		t.Fatalf("Expected first SetNX to succeed, got %v, %v", ok, err)
	}

	ok, err = h.Store.SetNX(ctx, key, "second")
	if err != nil || ok {
		t.Fatalf("Expected second SetNX to be rejected, got %v, %v", ok, err)
	}

	if result := mustGet(t, h.Store, key); result != "first" {
		t.Fatalf("Expected %q, got %q", "first", result)
	}
}

// Conditional set

func testSetNXExAbsent(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:nxex"

	ok, err := h.Store.SetNXEx(ctx, key, "v", 5*time.Second)
	if err != nil {
		t.Fatalf("SetNXEx failed: %v", err)
	}
	if !ok {
		t.Fatalf("Expected SetNXEx on absent key to report true")
	}

	if result := mustGet(t, h.Store, key); result != "v" {
		t.Fatalf("Expected %q, got %q", "v", result)
	}

	ttl, err := h.Store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > 5*time.Second {
		t.Fatalf("Expected TTL in (0, 5s], got %v", ttl)
	}

	h.Advance(6 * time.Second)
	expectMissing(t, h.Store, key)
}

func testSetNXExExisting(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:nxex:existing"

	if err := h.Store.Set(ctx, key, "original"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ok, err := h.Store.SetNXEx(ctx, key, "other", 5*time.Second)
	if err != nil {
		t.Fatalf("SetNXEx failed: %v", err)
	}
	if ok {
		t.Fatalf("Expected SetNXEx on existing key to report false")
	}

	ttl, err := h.Store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != kv.NoExpiry {
		t.Fatalf("Expected expiry untouched, got %v", ttl)
	}

	h.Advance(10 * time.Second)
	if result := mustGet(t, h.Store, key); result != "original" {
		t.Fatalf("Expected %q, got %q", "original", result)
	}
}

func testSetNXExScenario(t *testing.T, h Harness) {
	ctx := context.Background()

	ok, err := h.Store.SetNXEx(ctx, "k1", "v1", 100*time.Second)
	if err != nil || !ok {
		t.Fatalf("Expected first SetNXEx to succeed, got %v, %v", ok, err)
	}
	if result := mustGet(t, h.Store, "k1"); result != "v1" {
		t.Fatalf("Expected %q, got %q", "v1", result)
	}

	ok, err = h.Store.SetNXEx(ctx, "k1", "v2", 100*time.Second)
	if err != nil || ok {
		t.Fatalf("Expected second SetNXEx to be rejected, got %v, %v", ok, err)
	}
	if result := mustGet(t, h.Store, "k1"); result != "v1" {
		t.Fatalf("Expected %q, got %q", "v1", result)
	}
}

func testRawFrame(t *testing.T, h Harness) {
	ctx := context.Background()
	frame := kv.SetIfAbsentFrame{Key: "test:frame", Value: "v", TTL: 100 * time.Second}

	reply, err := h.Store.Do(ctx, frame.Args()...)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !kv.IsOK(reply) {
		t.Fatalf("Expected OK reply, got %#v", reply)
	}

	reply, err = h.Store.Do(ctx, frame.Args()...)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if reply != nil {
		t.Fatalf("Expected null reply for existing key, got %#v", reply)
	}
}

func testSetNXExSubSecond(t *testing.T, h Harness) {
	_, err := h.Store.SetNXEx(context.Background(), "test:subsecond", "v", 500*time.Millisecond)
	if !errors.Is(err, kv.ErrInvalidExpire) {
		t.Fatalf("Expected ErrInvalidExpire, got %v", err)
	}
	expectMissing(t, h.Store, "test:subsecond")
}

// Key operations

func testDel(t *testing.T, h Harness) {
	ctx := context.Background()
	key1, key2 := "test:del1", "test:del2"

	// Set two keys
	h.Store.Set(ctx, key1, "test")
	h.Store.Set(ctx, key2, "test")

	// Delete one key plus one that never existed
	deleted, err := h.Store.Del(ctx, key1, "test:del:missing")
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("Expected 1 deleted, got %d", deleted)
	}

	// Verify key1 is gone, key2 remains
	expectMissing(t, h.Store, key1)
	mustGet(t, h.Store, key2)
}

func testDelIfEqual(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:delifequal"

	h.Store.Set(ctx, key, "token-a")

	deleted, err := h.Store.DelIfEqual(ctx, key, "token-b")
	if err != nil {
		t.Fatalf("DelIfEqual failed: %v", err)
	}
	if deleted {
		t.Fatalf("Expected mismatched value to be kept")
	}
	mustGet(t, h.Store, key)

	deleted, err = h.Store.DelIfEqual(ctx, key, "token-a")
	if err != nil {
		t.Fatalf("DelIfEqual failed: %v", err)
	}
	if !deleted {
		t.Fatalf("Expected matching value to be deleted")
	}
	expectMissing(t, h.Store, key)

	deleted, err = h.Store.DelIfEqual(ctx, key, "token-a")
	if err != nil || deleted {
		t.Fatalf("Expected missing key to report false, got %v, %v", deleted, err)
	}
}

func testExists(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:exists"

	// Key doesn't exist initially
	count, err := h.Store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected 0 for non-existent key, got %d", count)
	}

	h.Store.Set(ctx, key, "test")
	h.Store.RPush(ctx, "test:exists:list", "a")

	count, err = h.Store.Exists(ctx, key, "test:exists:list", "test:exists:missing")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("Expected 2 existing keys, got %d", count)
	}
}

// TTL operations

func testSetExExpires(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:setex"

	if err := h.Store.SetEx(ctx, key, "v", 2*time.Second); err != nil {
		t.Fatalf("SetEx failed: %v", err)
	}
	mustGet(t, h.Store, key)

	h.Advance(3 * time.Second)
	expectMissing(t, h.Store, key)

	count, err := h.Store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected expired key to not exist, got %d", count)
	}
}

func testExpire(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:expire"

	ok, err := h.Store.Expire(ctx, key, time.Second)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if ok {
		t.Fatalf("Expected Expire on missing key to report false")
	}

	h.Store.HSet(ctx, key, "f", "v")
	ok, err = h.Store.Expire(ctx, key, 2*time.Second)
	if err != nil || !ok {
		t.Fatalf("Expected Expire to succeed, got %v, %v", ok, err)
	}

	h.Advance(3 * time.Second)
	n, err := h.Store.HLen(ctx, key)
	if err != nil {
		t.Fatalf("HLen failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("Expected expired hash to be empty, got %d fields", n)
	}
}

func testTTLSentinels(t *testing.T, h Harness) {
	ctx := context.Background()

	_, err := h.Store.TTL(ctx, "test:ttl:missing")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing key, got %v", err)
	}

	h.Store.Set(ctx, "test:ttl:persistent", "v")
	ttl, err := h.Store.TTL(ctx, "test:ttl:persistent")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != kv.NoExpiry {
		t.Fatalf("Expected NoExpiry, got %v", ttl)
	}
}

// Counter operations

func testIncrDecr(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:counter"

	steps := []struct {
		name string
		op   func() (int64, error)
		want int64
	}{
		{"Incr", func() (int64, error) { return h.Store.Incr(ctx, key) }, 1},
		{"IncrBy", func() (int64, error) { return h.Store.IncrBy(ctx, key, 10) }, 11},
		{"Decr", func() (int64, error) { return h.Store.Decr(ctx, key) }, 10},
		{"DecrBy", func() (int64, error) { return h.Store.DecrBy(ctx, key, 15) }, -5},
	}

	for _, step := range steps {
		got, err := step.op()
		if err != nil {
			t.Fatalf("%s failed: %v", step.name, err)
		}
		if got != step.want {
			t.Fatalf("%s: expected %d, got %d", step.name, step.want, got)
		}
	}

	if result := mustGet(t, h.Store, key); result != "-5" {
		t.Fatalf("Expected counter text %q, got %q", "-5", result)
	}
}

func testIncrNonInteger(t *testing.T, h Harness) {
	ctx := context.Background()
	h.Store.Set(ctx, "test:counter:text", "abc")

	_, err := h.Store.Incr(ctx, "test:counter:text")
	if err == nil {
		t.Fatalf("Expected error incrementing non-integer value")
	}
}

// Hash operations

func testHSetHGet(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:hash"

	if err := h.Store.HSet(ctx, key, "name", "alice"); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}

	value, err := h.Store.HGet(ctx, key, "name")
	if err != nil {
		t.Fatalf("HGet failed: %v", err)
	}
	if value != "alice" {
		t.Fatalf("Expected %q, got %q", "alice", value)
	}

	_, err = h.Store.HGet(ctx, key, "missing")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing field, got %v", err)
	}

	exists, err := h.Store.HExists(ctx, key, "name")
	if err != nil || !exists {
		t.Fatalf("Expected field to exist, got %v, %v", exists, err)
	}
}

func testHMSetHGetAll(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:hash:all"

	if err := h.Store.HMSet(ctx, key, map[string]string{"a": "1", "b": "2", "c": "3"}); err != nil {
		t.Fatalf("HMSet failed: %v", err)
	}
	if err := h.Store.HMSet(ctx, key, map[string]string{"b": "20"}); err != nil {
		t.Fatalf("HMSet failed: %v", err)
	}
	if _, err := h.Store.HDel(ctx, key, "c"); err != nil {
		t.Fatalf("HDel failed: %v", err)
	}

	all, err := h.Store.HGetAll(ctx, key)
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	expected := map[string]string{"a": "1", "b": "20"}
	if !reflect.DeepEqual(all, expected) {
		t.Fatalf("Expected %v, got %v", expected, all)
	}

	empty, err := h.Store.HGetAll(ctx, "test:hash:missing")
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("Expected empty non-nil map, got %#v", empty)
	}
}

func testHMGet(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:hash:mget"

	h.Store.HMSet(ctx, key, map[string]string{"a": "1", "c": ""})

	values, err := h.Store.HMGet(ctx, key, "a", "b", "c")
	if err != nil {
		t.Fatalf("HMGet failed: %v", err)
	}
	expected := []kv.Value{{Str: "1", Valid: true}, {}, {Str: "", Valid: true}}
	if !reflect.DeepEqual(values, expected) {
		t.Fatalf("Expected %v, got %v", expected, values)
	}
}

func testHDelHLen(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:hash:del"

	h.Store.HMSet(ctx, key, map[string]string{"a": "1", "b": "2"})

	deleted, err := h.Store.HDel(ctx, key, "a", "missing")
	if err != nil {
		t.Fatalf("HDel failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("Expected 1 deleted field, got %d", deleted)
	}

	n, err := h.Store.HLen(ctx, key)
	if err != nil {
		t.Fatalf("HLen failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 field, got %d", n)
	}

	// Removing the last field removes the key
	h.Store.HDel(ctx, key, "b")
	count, _ := h.Store.Exists(ctx, key)
	if count != 0 {
		t.Fatalf("Expected empty hash to be removed")
	}
}

// Set operations

func testSAddSMembers(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:set"

	added, err := h.Store.SAdd(ctx, key, "a", "b", "a")
	if err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	if added != 2 {
		t.Fatalf("Expected 2 added, got %d", added)
	}

	members, err := h.Store.SMembers(ctx, key)
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	sort.Strings(members)
	if !reflect.DeepEqual(members, []string{"a", "b"}) {
		t.Fatalf("Expected [a b], got %v", members)
	}

	isMember, err := h.Store.SIsMember(ctx, key, "b")
	if err != nil || !isMember {
		t.Fatalf("Expected b to be a member, got %v, %v", isMember, err)
	}

	removed, err := h.Store.SRem(ctx, key, "b", "z")
	if err != nil {
		t.Fatalf("SRem failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Expected 1 removed, got %d", removed)
	}

	missing, err := h.Store.SMembers(ctx, "test:set:missing")
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("Expected no members, got %v", missing)
	}
}

func testSPop(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:set:pop"

	h.Store.SAdd(ctx, key, "only")

	member, err := h.Store.SPop(ctx, key)
	if err != nil {
		t.Fatalf("SPop failed: %v", err)
	}
	if member != "only" {
		t.Fatalf("Expected %q, got %q", "only", member)
	}

	_, err = h.Store.SPop(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound popping empty set, got %v", err)
	}
}

func testSPopN(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:set:popn"

	h.Store.SAdd(ctx, key, "a", "b", "c")

	popped, err := h.Store.SPopN(ctx, key, 2)
	if err != nil {
		t.Fatalf("SPopN failed: %v", err)
	}
	if len(popped) != 2 {
		t.Fatalf("Expected 2 popped, got %v", popped)
	}

	rest, err := h.Store.SPopN(ctx, key, 5)
	if err != nil {
		t.Fatalf("SPopN failed: %v", err)
	}
	all := append(popped, rest...)
	sort.Strings(all)
	if !reflect.DeepEqual(all, []string{"a", "b", "c"}) {
		t.Fatalf("Expected every member popped once, got %v", all)
	}
}

// Sorted set operations

func testZAddZRange(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:zset"

	added, err := h.Store.ZAdd(ctx, key, 2, "b")
	if err != nil || !added {
		t.Fatalf("Expected ZAdd to add new member, got %v, %v", added, err)
	}

	n, err := h.Store.ZAddMany(ctx, key, kv.Z{Member: "a", Score: 1}, kv.Z{Member: "c", Score: 3}, kv.Z{Member: "b", Score: 2.5})
	if err != nil {
		t.Fatalf("ZAddMany failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 new members, got %d", n)
	}

	added, err = h.Store.ZAdd(ctx, key, 0.5, "c")
	if err != nil || added {
		t.Fatalf("Expected ZAdd on existing member to report false, got %v, %v", added, err)
	}

	members, err := h.Store.ZRange(ctx, key, 0, -1)
	if err != nil {
		t.Fatalf("ZRange failed: %v", err)
	}
	if !reflect.DeepEqual(members, []string{"c", "a", "b"}) {
		t.Fatalf("Expected [c a b], got %v", members)
	}

	members, err = h.Store.ZRange(ctx, key, 1, 1)
	if err != nil {
		t.Fatalf("ZRange failed: %v", err)
	}
	if !reflect.DeepEqual(members, []string{"a"}) {
		t.Fatalf("Expected [a], got %v", members)
	}
}

func testZRangeByScore(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:zset:score"

	h.Store.ZAddMany(ctx, key,
		kv.Z{Member: "a", Score: 1},
		kv.Z{Member: "b", Score: 2},
		kv.Z{Member: "c", Score: 3},
		kv.Z{Member: "d", Score: 4},
	)

	members, err := h.Store.ZRangeByScore(ctx, key, 2, 3)
	if err != nil {
		t.Fatalf("ZRangeByScore failed: %v", err)
	}
	if !reflect.DeepEqual(members, []string{"b", "c"}) {
		t.Fatalf("Expected [b c], got %v", members)
	}

	members, err = h.Store.ZRangeByScoreLimit(ctx, key, 1, 4, 1, 2)
	if err != nil {
		t.Fatalf("ZRangeByScoreLimit failed: %v", err)
	}
	if !reflect.DeepEqual(members, []string{"b", "c"}) {
		t.Fatalf("Expected [b c], got %v", members)
	}

	count, err := h.Store.ZCount(ctx, key, 2, 10)
	if err != nil {
		t.Fatalf("ZCount failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("Expected 3, got %d", count)
	}
}

func testZRankZScore(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:zset:rank"

	h.Store.ZAddMany(ctx, key, kv.Z{Member: "x", Score: 10}, kv.Z{Member: "y", Score: 5})

	rank, err := h.Store.ZRank(ctx, key, "x")
	if err != nil {
		t.Fatalf("ZRank failed: %v", err)
	}
	if rank != 1 {
		t.Fatalf("Expected rank 1, got %d", rank)
	}

	score, err := h.Store.ZScore(ctx, key, "y")
	if err != nil {
		t.Fatalf("ZScore failed: %v", err)
	}
	if score != 5 {
		t.Fatalf("Expected score 5, got %v", score)
	}

	if _, err := h.Store.ZRank(ctx, key, "missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing member rank, got %v", err)
	}
	if _, err := h.Store.ZScore(ctx, key, "missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing member score, got %v", err)
	}
}

func testZIncrByZRem(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:zset:incr"

	score, err := h.Store.ZIncrBy(ctx, key, 1.5, "m")
	if err != nil {
		t.Fatalf("ZIncrBy failed: %v", err)
	}
	if score != 1.5 {
		t.Fatalf("Expected 1.5, got %v", score)
	}

	score, err = h.Store.ZIncrBy(ctx, key, 2, "m")
	if err != nil {
		t.Fatalf("ZIncrBy failed: %v", err)
	}
	if score != 3.5 {
		t.Fatalf("Expected 3.5, got %v", score)
	}

	removed, err := h.Store.ZRem(ctx, key, "m", "missing")
	if err != nil {
		t.Fatalf("ZRem failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Expected 1 removed, got %d", removed)
	}
}

// List operations

func testRPushLRange(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:list:r"

	n, err := h.Store.RPush(ctx, key, "a", "b", "c", "d", "e")
	if err != nil {
		t.Fatalf("RPush failed: %v", err)
	}
	if n != 5 {
		t.Fatalf("Expected length 5, got %d", n)
	}

	values, err := h.Store.LRange(ctx, key, 0, -1)
	if err != nil {
		t.Fatalf("LRange failed: %v", err)
	}
	if !reflect.DeepEqual(values, []string{"a", "b", "c", "d", "e"}) {
		t.Fatalf("Expected [a b c d e], got %v", values)
	}
}

func testLPushLRange(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:list:l"

	if _, err := h.Store.LPush(ctx, key, "a", "b", "c", "d", "e"); err != nil {
		t.Fatalf("LPush failed: %v", err)
	}

	values, err := h.Store.LRange(ctx, key, 0, -1)
	if err != nil {
		t.Fatalf("LRange failed: %v", err)
	}
	if !reflect.DeepEqual(values, []string{"e", "d", "c", "b", "a"}) {
		t.Fatalf("Expected [e d c b a], got %v", values)
	}
}

func testPop(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:list:pop"

	h.Store.RPush(ctx, key, "a", "b", "c")

	head, err := h.Store.LPop(ctx, key)
	if err != nil || head != "a" {
		t.Fatalf("Expected LPop to return a, got %q, %v", head, err)
	}
	tail, err := h.Store.RPop(ctx, key)
	if err != nil || tail != "c" {
		t.Fatalf("Expected RPop to return c, got %q, %v", tail, err)
	}

	n, err := h.Store.LLen(ctx, key)
	if err != nil {
		t.Fatalf("LLen failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected length 1, got %d", n)
	}

	h.Store.LPop(ctx, key)
	if _, err := h.Store.LPop(ctx, key); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound popping empty list, got %v", err)
	}
}

func testLRangeNegative(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:list:neg"

	h.Store.RPush(ctx, key, "a", "b", "c", "d")

	tests := []struct {
		start, stop int64
		expected    []string
	}{
		{-2, -1, []string{"c", "d"}},
		{1, 100, []string{"b", "c", "d"}},
		{3, 1, []string{}},
		{10, 20, []string{}},
	}

	for _, tt := range tests {
		values, err := h.Store.LRange(ctx, key, tt.start, tt.stop)
		if err != nil {
			t.Fatalf("LRange(%d, %d) failed: %v", tt.start, tt.stop, err)
		}
		if len(values) != len(tt.expected) || (len(values) > 0 && !reflect.DeepEqual(values, tt.expected)) {
			t.Fatalf("LRange(%d, %d): expected %v, got %v", tt.start, tt.stop, tt.expected, values)
		}
	}
}

// Multi operations

func testMSetMGet(t *testing.T, h Harness) {
	ctx := context.Background()

	err := h.Store.MSet(ctx, map[string]string{"test:m1": "one", "test:m2": "two"})
	if err != nil {
		t.Fatalf("MSet failed: %v", err)
	}

	values, err := h.Store.MGet(ctx, "test:m1", "test:m:missing", "test:m2")
	if err != nil {
		t.Fatalf("MGet failed: %v", err)
	}
	expected := []kv.Value{{Str: "one", Valid: true}, {}, {Str: "two", Valid: true}}
	if !reflect.DeepEqual(values, expected) {
		t.Fatalf("Expected %v, got %v", expected, values)
	}
}

// Health check

func testPing(t *testing.T, h Harness) {
	if err := h.Store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func testSetNXExExistingKeepsTTL(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:nxex:existing:ttl"

	if err := h.Store.SetEx(ctx, key, "holder", 30*time.Second); err != nil {
		t.Fatalf("SetEx failed: %v", err)
	}

	ok, err := h.Store.SetNXEx(ctx, key, "other", 300*time.Second)
	if err != nil {
		t.Fatalf("SetNXEx failed: %v", err)
	}
	if ok {
		t.Fatalf("Expected SetNXEx on existing key to report false")
	}

	ttl, err := h.Store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 25*time.Second || ttl > 30*time.Second {
		t.Fatalf("Expected the original 30s expiry to be kept, got %v", ttl)
	}
	if result := mustGet(t, h.Store, key); result != "holder" {
		t.Fatalf("Expected %q, got %q", "holder", result)
	}

	h.Advance(31 * time.Second)
	expectMissing(t, h.Store, key)
}

func testInvalidUTF8Repaired(t *testing.T, h Harness) {
	ctx := context.Background()
	const want = "a\uFFFDb"

	if err := h.Store.Set(ctx, "test:utf8", "a\xffb"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if result := mustGet(t, h.Store, "test:utf8"); result != want {
		t.Fatalf("Expected %q, got %q", want, result)
	}

	if _, err := h.Store.RPush(ctx, "test:utf8:list", "ok", "a\xffb"); err != nil {
		t.Fatalf("RPush failed: %v", err)
	}
	values, err := h.Store.LRange(ctx, "test:utf8:list", 0, -1)
	if err != nil {
		t.Fatalf("LRange failed: %v", err)
	}
	if !reflect.DeepEqual(values, []string{"ok", want}) {
		t.Fatalf("Expected %q, got %q", []string{"ok", want}, values)
	}
}

func testZCountBounds(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:zset:bounds"

	_, err := h.Store.ZAddMany(ctx, key,
		kv.Z{Member: "a", Score: 1},
		kv.Z{Member: "b", Score: 5},
		kv.Z{Member: "c", Score: 10},
	)
	if err != nil {
		t.Fatalf("ZAddMany failed: %v", err)
	}

	tests := []struct {
		min, max string
		want     int64
	}{
		{"-inf", "+inf", 3},
		{"1", "10", 3},
		{"(1", "10", 2},
		{"(1", "(10", 1},
		{"(5", "5", 0},
		{"5", "+inf", 2},
	}
	for _, tt := range tests {
		n, err := h.Store.ZCountBounds(ctx, key, tt.min, tt.max)
		if err != nil {
			t.Fatalf("ZCountBounds(%q, %q) failed: %v", tt.min, tt.max, err)
		}
		if n != tt.want {
			t.Fatalf("ZCountBounds(%q, %q): expected %d, got %d", tt.min, tt.max, tt.want, n)
		}
	}

	if _, err := h.Store.ZCountBounds(ctx, key, "[1", "10"); !errors.Is(err, kv.ErrInvalidBound) {
		t.Fatalf("Expected ErrInvalidBound, got %v", err)
	}
}

func testEmptyWritesKeepExistingKey(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:empty:string"

	if err := h.Store.Set(ctx, key, "keep"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := h.Store.HMSet(ctx, key, map[string]string{}); err != nil {
		t.Fatalf("HMSet failed: %v", err)
	}
	if n, err := h.Store.SAdd(ctx, key); err != nil || n != 0 {
		t.Fatalf("Expected empty SAdd to add 0, got %d, %v", n, err)
	}
	if n, err := h.Store.ZAddMany(ctx, key); err != nil || n != 0 {
		t.Fatalf("Expected empty ZAddMany to add 0, got %d, %v", n, err)
	}

	if result := mustGet(t, h.Store, key); result != "keep" {
		t.Fatalf("Expected %q, got %q", "keep", result)
	}

	list := "test:empty:list"
	if _, err := h.Store.RPush(ctx, list, "a", "b"); err != nil {
		t.Fatalf("RPush failed: %v", err)
	}
	if n, err := h.Store.LPush(ctx, list); err != nil || n != 2 {
		t.Fatalf("Expected empty LPush to report length 2, got %d, %v", n, err)
	}
}

func testEmptyWritesCreateNothing(t *testing.T, h Harness) {
	ctx := context.Background()

	if err := h.Store.HMSet(ctx, "test:empty:hash", nil); err != nil {
		t.Fatalf("HMSet failed: %v", err)
	}
	if _, err := h.Store.SAdd(ctx, "test:empty:set"); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	if _, err := h.Store.ZAddMany(ctx, "test:empty:zset"); err != nil {
		t.Fatalf("ZAddMany failed: %v", err)
	}
	if n, err := h.Store.LPush(ctx, "test:empty:lpush"); err != nil || n != 0 {
		t.Fatalf("Expected empty LPush to report 0, got %d, %v", n, err)
	}
	if n, err := h.Store.RPush(ctx, "test:empty:rpush"); err != nil || n != 0 {
		t.Fatalf("Expected empty RPush to report 0, got %d, %v", n, err)
	}

	n, err := h.Store.Exists(ctx, "test:empty:hash", "test:empty:set", "test:empty:zset", "test:empty:lpush", "test:empty:rpush")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("Expected empty writes to create no keys, got %d", n)
	}

	if n, err := h.Store.Exists(ctx); err != nil || n != 0 {
		t.Fatalf("Expected Exists with no keys to report 0, got %d, %v", n, err)
	}
	if n, err := h.Store.Del(ctx); err != nil || n != 0 {
		t.Fatalf("Expected Del with no keys to report 0, got %d, %v", n, err)
	}
}
