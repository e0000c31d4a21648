package redis

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/kvhelper/pkg/kv"
	"github.com/leafsii/kvhelper/pkg/kv/kvtest"
)

func newMiniredisStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := New("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	return store, mr
}

func TestRedisStoreMiniredis(t *testing.T) {
	factory := func(t *testing.T) kvtest.Harness {
		store, mr := newMiniredisStore(t)
		return kvtest.Harness{Store: store, Advance: mr.FastForward}
	}

	kvtest.RunConformanceTests(t, factory)
}

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping Redis tests")
	}

	factory := func(t *testing.T) kvtest.Harness {
		opt, err := ParseOptions(redisURL)
		if err != nil {
			t.Fatalf("Failed to parse REDIS_URL: %v", err)
		}

		// The selected database is wiped before every test
		client := goredis.NewClient(opt)
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("Failed to flush Redis database: %v", err)
		}

		return kvtest.Harness{Store: NewFromClient(client), Advance: time.Sleep}
	}

	kvtest.RunConformanceTests(t, factory)
}

func TestSetNXExSendsSingleFrame(t *testing.T) {
	store, mr := newMiniredisStore(t)
	defer store.Close()
	ctx := context.Background()

	ok, err := store.SetNXEx(ctx, "lock", "owner", 90*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := mr.Get("lock")
	require.NoError(t, err)
	assert.Equal(t, "owner", got)
	assert.Equal(t, 90*time.Second, mr.TTL("lock"))
}

func TestDoNullReply(t *testing.T) {
	store, _ := newMiniredisStore(t)
	defer store.Close()

	reply, err := store.Do(context.Background(), "GET", "missing")
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestBackendUnavailable(t *testing.T) {
	store, mr := newMiniredisStore(t)
	defer store.Close()

	mr.Close()

	_, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)

	err = store.Ping(context.Background())
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	_, err = NewWithOptions(&goredis.Options{Addr: addr, DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)
}

func TestFactoryAppliesConfig(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := kv.NewStoreFromConfig(kv.Config{
		Backend:     kv.BackendRedis,
		RedisURL:    mr.Addr(),
		DialTimeout: time.Second,
	})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(context.Background(), "k", "v"))
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendRedis})
	assert.Error(t, err)
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		addr     string
		db       int
		password string
		wantErr  bool
	}{
		{"Full URL", "redis://:secret@localhost:6380/2", "localhost:6380", 2, "secret", false},
		{"Bare address", "localhost:6379", "localhost:6379", 0, "", false},
		{"Bare address with db", "localhost:6379/3", "localhost:6379", 3, "", false},
		{"Bad db", "localhost:6379/x", "", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, err := ParseOptions(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, opt.Addr)
			assert.Equal(t, tt.db, opt.DB)
			assert.Equal(t, tt.password, opt.Password)
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"redis nil", goredis.Nil, false},
		{"canceled", context.Canceled, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"closed client", goredis.ErrClosed, true},
		{"command error", errors.New("WRONGTYPE Operation against a key"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsConnectionError(tt.err))
		})
	}
}
