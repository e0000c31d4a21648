package memory

import (
	"context"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/kvhelper/pkg/kv"
	"github.com/leafsii/kvhelper/pkg/kv/kvtest"
)

func TestMemoryStore(t *testing.T) {
	factory := func(t *testing.T) kvtest.Harness {
		clock := NewManualClock(time.Unix(1700000000, 0))
		return kvtest.Harness{
			Store:   New(0, WithClock(clock)), // Disable janitor for deterministic tests
			Advance: clock.Add,
		}
	}

	kvtest.RunConformanceTests(t, factory)
}

func TestMemoryStoreWithJanitor(t *testing.T) {
	clock := NewManualClock(time.Unix(1700000000, 0))
	store := New(5*time.Millisecond, WithClock(clock))
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SetEx(ctx, "test:janitor", "v", time.Second))

	clock.Add(2 * time.Second)

	// The janitor physically drops the key without any reader touching it
	assert.Eventually(t, func() bool {
		store.mu.RLock()
		defer store.mu.RUnlock()
		_, stillStored := store.strings["test:janitor"]
		return !stillStored
	}, time.Second, 5*time.Millisecond)
}

func TestWritesReplaceOtherTypes(t *testing.T) {
	store := New(0)
	defer store.Close()
	ctx := context.Background()

	_, err := store.RPush(ctx, "k", "a", "b")
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "k", "plain"))

	n, err := store.LLen(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "plain", got)
}

func TestIncrOnNonInteger(t *testing.T) {
	store := New(0)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "abc"))
	_, err := store.Incr(ctx, "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, kv.ErrNotFound)
}

func TestDoRejectsOtherCommands(t *testing.T) {
	store := New(0)
	defer store.Close()

	_, err := store.Do(context.Background(), "GET", "k")
	assert.ErrorIs(t, err, kv.ErrUnsupportedCommand)

	_, err = store.Do(context.Background())
	assert.ErrorIs(t, err, kv.ErrUnsupportedCommand)
}

func TestDoSetIfAbsentFrame(t *testing.T) {
	clock := NewManualClock(time.Unix(1700000000, 0))
	store := New(0, WithClock(clock))
	defer store.Close()
	ctx := context.Background()

	frame := kv.SetIfAbsentFrame{Key: "k1", Value: "v1", TTL: 60 * time.Second}

	reply, err := store.Do(ctx, frame.Args()...)
	require.NoError(t, err)
	assert.Equal(t, kv.ReplyOK, reply)

	reply, err = store.Do(ctx, frame.Args()...)
	require.NoError(t, err)
	assert.Nil(t, reply)

	ttl, err := store.TTL(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, ttl)

	_, err = store.Do(ctx, "SET", "k2", "v", "NX", "EX", "0")
	assert.ErrorIs(t, err, kv.ErrInvalidExpire)
}

func TestCloseIsIdempotent(t *testing.T) {
	store := New(time.Millisecond)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestFactoryRegistration(t *testing.T) {
	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
	require.NoError(t, err)
	defer store.Close()

	mem, ok := store.(*Store)
	require.True(t, ok, "no observer or logger should leave the store undecorated")
	assert.Zero(t, mem.janitorInterval, "a zero interval keeps the janitor off")
}

func TestFactoryJanitorInterval(t *testing.T) {
	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory, JanitorInterval: time.Minute})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, time.Minute, store.(*Store).janitorInterval)
}

func TestIncrByOverflow(t *testing.T) {
	store := New(0)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "max", strconv.FormatInt(math.MaxInt64, 10)))
	_, err := store.Incr(ctx, "max")
	assert.ErrorIs(t, err, errOverflow)

	require.NoError(t, store.Set(ctx, "min", strconv.FormatInt(math.MinInt64, 10)))
	_, err = store.Decr(ctx, "min")
	assert.ErrorIs(t, err, errOverflow)

	_, err = store.DecrBy(ctx, "zero", math.MinInt64)
	assert.ErrorIs(t, err, errOverflow)

	// The stored values are left untouched
	got, err := store.Get(ctx, "max")
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(math.MaxInt64, 10), got)

	n, err := store.IncrBy(ctx, "max", -1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64-1), n)
}
