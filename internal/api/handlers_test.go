package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leafsii/kvhelper/pkg/kv"
	"github.com/leafsii/kvhelper/pkg/kv/memory"
	"github.com/leafsii/kvhelper/pkg/kv/redis"
)

// Mock metrics for testing
type MockMetrics struct {
	mu    sync.Mutex
	paths []string
}

func (m *MockMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
}

func (m *MockMetrics) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

func newTestServer(t *testing.T, store kv.Store) (*httptest.Server, *MockMetrics) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	metrics := &MockMetrics{}

	handler := NewHandler(store, logger)
	router := handler.Routes(NewMiddleware(logger, metrics), []string{"http://localhost:3000"}, 60000, nil)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, metrics
}

func newMemoryServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.New(0)
	t.Cleanup(func() { store.Close() })
	srv, _ := newTestServer(t, store)
	return srv, store
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decodeBody[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestStringRoundTrip(t *testing.T) {
	srv, _ := newMemoryServer(t)

	status, _ := do(t, srv, http.MethodPut, "/v1/strings/greeting", SetRequest{Value: "hello"})
	assert.Equal(t, http.StatusNoContent, status)

	status, body := do(t, srv, http.MethodGet, "/v1/strings/greeting", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, ValueDTO{Key: "greeting", Value: "hello"}, decodeBody[ValueDTO](t, body))

	status, body = do(t, srv, http.MethodGet, "/v1/keys/greeting/ttl", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(-1), decodeBody[TTLResponse](t, body).TTLSeconds)

	status, body = do(t, srv, http.MethodDelete, "/v1/strings/greeting", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), decodeBody[CountResponse](t, body).Count)

	status, body = do(t, srv, http.MethodGet, "/v1/strings/greeting", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", decodeBody[ErrorResponse](t, body).Code)
}

func TestSetNXEndpoint(t *testing.T) {
	srv, store := newMemoryServer(t)

	status, body := do(t, srv, http.MethodPost, "/v1/strings/k1/setnx", SetRequest{Value: "v1", TTLSeconds: 100})
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, decodeBody[SetNXResponse](t, body).Acquired)

	status, body = do(t, srv, http.MethodPost, "/v1/strings/k1/setnx", SetRequest{Value: "v2", TTLSeconds: 100})
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, decodeBody[SetNXResponse](t, body).Acquired)

	value, err := store.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)

	ttl, err := store.TTL(context.Background(), "k1")
	require.NoError(t, err)
	assert.InDelta(t, float64(100*time.Second), float64(ttl), float64(time.Second))

	status, body = do(t, srv, http.MethodPost, "/v1/strings/k2/setnx", SetRequest{Value: "v", TTLSeconds: -5})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_EXPIRE", decodeBody[ErrorResponse](t, body).Code)
}

func TestMGetEndpoint(t *testing.T) {
	srv, _ := newMemoryServer(t)

	status, _ := do(t, srv, http.MethodPost, "/v1/strings/mset", MSetRequest{Values: map[string]string{"a": "1", "c": "3"}})
	require.Equal(t, http.StatusNoContent, status)

	status, body := do(t, srv, http.MethodPost, "/v1/strings/mget", MGetRequest{Keys: []string{"a", "b", "c"}})
	require.Equal(t, http.StatusOK, status)

	resp := decodeBody[MGetResponse](t, body)
	require.Len(t, resp.Values, 3)
	assert.Equal(t, "1", *resp.Values[0].Value)
	assert.Nil(t, resp.Values[1].Value)
	assert.Equal(t, "3", *resp.Values[2].Value)
}

func TestCounterEndpoints(t *testing.T) {
	srv, _ := newMemoryServer(t)

	status, body := do(t, srv, http.MethodPost, "/v1/counters/hits/incr", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), decodeBody[CounterDTO](t, body).Value)

	by := int64(10)
	_, body = do(t, srv, http.MethodPost, "/v1/counters/hits/incr", IncrRequest{By: &by})
	assert.Equal(t, int64(11), decodeBody[CounterDTO](t, body).Value)

	_, body = do(t, srv, http.MethodPost, "/v1/counters/hits/decr", nil)
	assert.Equal(t, int64(10), decodeBody[CounterDTO](t, body).Value)
}

func TestListEndpoints(t *testing.T) {
	srv, _ := newMemoryServer(t)

	status, body := do(t, srv, http.MethodPost, "/v1/lists/q/push", PushRequest{Values: []string{"a", "b", "c"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(3), decodeBody[LengthResponse](t, body).Length)

	do(t, srv, http.MethodPost, "/v1/lists/q/push", PushRequest{Values: []string{"z"}, Side: "left"})

	_, body = do(t, srv, http.MethodGet, "/v1/lists/q?start=0&stop=-1", nil)
	assert.Equal(t, []string{"z", "a", "b", "c"}, decodeBody[ValuesResponse](t, body).Values)

	_, body = do(t, srv, http.MethodPost, "/v1/lists/q/pop?side=right", nil)
	assert.Equal(t, "c", decodeBody[ValueDTO](t, body).Value)

	status, _ = do(t, srv, http.MethodPost, "/v1/lists/q/push", PushRequest{Values: []string{"x"}, Side: "middle"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, srv, http.MethodPost, "/v1/lists/empty/pop", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHashEndpoints(t *testing.T) {
	srv, _ := newMemoryServer(t)

	status, _ := do(t, srv, http.MethodPut, "/v1/hashes/user:1", HashDTO{Fields: map[string]string{"name": "ada", "lang": "go"}})
	require.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, srv, http.MethodPut, "/v1/hashes/user:1/city", SetRequest{Value: "london"})
	require.Equal(t, http.StatusNoContent, status)

	_, body := do(t, srv, http.MethodGet, "/v1/hashes/user:1/name", nil)
	assert.Equal(t, "ada", decodeBody[ValueDTO](t, body).Value)

	do(t, srv, http.MethodDelete, "/v1/hashes/user:1/lang", nil)

	_, body = do(t, srv, http.MethodGet, "/v1/hashes/user:1", nil)
	assert.Equal(t, map[string]string{"name": "ada", "city": "london"}, decodeBody[HashDTO](t, body).Fields)

	_, body = do(t, srv, http.MethodGet, "/v1/hashes/missing", nil)
	assert.Equal(t, map[string]string{}, decodeBody[HashDTO](t, body).Fields)
}

func TestSetEndpoints(t *testing.T) {
	srv, _ := newMemoryServer(t)

	_, body := do(t, srv, http.MethodPost, "/v1/sets/tags", MembersRequest{Members: []string{"go", "redis", "go"}})
	assert.Equal(t, int64(2), decodeBody[CountResponse](t, body).Count)

	_, body = do(t, srv, http.MethodGet, "/v1/sets/tags/members/go", nil)
	assert.True(t, decodeBody[IsMemberResponse](t, body).Member)

	_, body = do(t, srv, http.MethodPost, "/v1/sets/tags/remove", MembersRequest{Members: []string{"go"}})
	assert.Equal(t, int64(1), decodeBody[CountResponse](t, body).Count)

	_, body = do(t, srv, http.MethodGet, "/v1/sets/tags", nil)
	assert.Equal(t, []string{"redis"}, decodeBody[MembersResponse](t, body).Members)
}

func TestSortedSetEndpoints(t *testing.T) {
	srv, _ := newMemoryServer(t)

	_, body := do(t, srv, http.MethodPost, "/v1/zsets/board", ZAddRequest{Members: []ScoredMemberDTO{
		{Member: "a", Score: 1}, {Member: "b", Score: 2}, {Member: "c", Score: 3},
	}})
	assert.Equal(t, int64(3), decodeBody[CountResponse](t, body).Count)

	_, body = do(t, srv, http.MethodPost, "/v1/zsets/board/incr", ZIncrRequest{Member: "a", By: 5})
	assert.Equal(t, 6.0, decodeBody[ScoreResponse](t, body).Score)

	_, body = do(t, srv, http.MethodGet, "/v1/zsets/board", nil)
	assert.Equal(t, []string{"b", "c", "a"}, decodeBody[MembersResponse](t, body).Members)

	_, body = do(t, srv, http.MethodGet, "/v1/zsets/board/by-score?min=2&max=3", nil)
	assert.Equal(t, []string{"b", "c"}, decodeBody[MembersResponse](t, body).Members)

	_, body = do(t, srv, http.MethodGet, "/v1/zsets/board/by-score?offset=1&count=1", nil)
	assert.Equal(t, []string{"c"}, decodeBody[MembersResponse](t, body).Members)

	_, body = do(t, srv, http.MethodGet, "/v1/zsets/board/count?min=3", nil)
	assert.Equal(t, int64(2), decodeBody[CountResponse](t, body).Count)

	_, body = do(t, srv, http.MethodGet, "/v1/zsets/board/members/a/rank", nil)
	assert.Equal(t, int64(2), decodeBody[RankResponse](t, body).Rank)

	status, _ := do(t, srv, http.MethodGet, "/v1/zsets/board/members/zz/score", nil)
	assert.Equal(t, http.StatusNotFound, status)

	_, body = do(t, srv, http.MethodGet, "/v1/zsets/board/count?min=%283&max=%2Binf", nil)
	assert.Equal(t, int64(1), decodeBody[CountResponse](t, body).Count)

	status, _ = do(t, srv, http.MethodGet, "/v1/zsets/board/count?min=abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestOversizedTTLRejected(t *testing.T) {
	srv, store := newMemoryServer(t)
	const huge = 18446744078 // wraps to about 4s if multiplied into a Duration

	status, _ := do(t, srv, http.MethodPost, "/v1/strings/lk/setnx", SetRequest{Value: "v", TTLSeconds: huge})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, srv, http.MethodPut, "/v1/strings/lk", SetRequest{Value: "v", TTLSeconds: huge})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, srv, http.MethodPost, "/v1/locks/lk", LockRequest{TTLSeconds: huge})
	assert.Equal(t, http.StatusBadRequest, status)

	n, err := store.Exists(context.Background(), "lk")
	require.NoError(t, err)
	assert.Zero(t, n, "a rejected TTL must not create the key")

	require.NoError(t, store.Set(context.Background(), "held", "v"))
	status, _ = do(t, srv, http.MethodPost, "/v1/keys/held/expire", ExpireRequest{TTLSeconds: huge})
	assert.Equal(t, http.StatusBadRequest, status)

	ttl, err := store.TTL(context.Background(), "held")
	require.NoError(t, err)
	assert.Equal(t, kv.NoExpiry, ttl)
}

func TestLockEndpoints(t *testing.T) {
	srv, _ := newMemoryServer(t)

	status, body := do(t, srv, http.MethodPost, "/v1/locks/job", LockRequest{TTLSeconds: 30})
	require.Equal(t, http.StatusOK, status)
	first := decodeBody[LockResponse](t, body)
	assert.True(t, first.Acquired)
	assert.NotEmpty(t, first.Token)

	_, body = do(t, srv, http.MethodPost, "/v1/locks/job", LockRequest{TTLSeconds: 30})
	assert.False(t, decodeBody[LockResponse](t, body).Acquired)

	_, body = do(t, srv, http.MethodPost, "/v1/locks/job/release", UnlockRequest{Token: "wrong"})
	assert.False(t, decodeBody[UnlockResponse](t, body).Released)

	_, body = do(t, srv, http.MethodPost, "/v1/locks/job/release", UnlockRequest{Token: first.Token})
	assert.True(t, decodeBody[UnlockResponse](t, body).Released)
}

func TestInvalidJSON(t *testing.T) {
	srv, _ := newMemoryServer(t)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/v1/strings/k", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetricsLabels(t *testing.T) {
	store := memory.New(0)
	defer store.Close()
	srv, metrics := newTestServer(t, store)

	status, body := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", string(body))

	status, body = do(t, srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "READY", string(body))

	do(t, srv, http.MethodGet, "/v1/strings/secret-key-name", nil)
	assert.Eventually(t, func() bool {
		for _, p := range metrics.recorded() {
			if p == "/v1/strings/{key}" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
	assert.NotContains(t, metrics.recorded(), "/v1/strings/secret-key-name")
}

func TestBackendUnavailableMapsTo503(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := redis.New(mr.Addr())
	require.NoError(t, err)
	defer store.Close()

	srv, _ := newTestServer(t, store)

	status, _ := do(t, srv, http.MethodPut, "/v1/strings/k", SetRequest{Value: "v"})
	require.Equal(t, http.StatusNoContent, status)

	mr.Close()

	status, body := do(t, srv, http.MethodGet, "/v1/strings/k", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "BACKEND_UNAVAILABLE", decodeBody[ErrorResponse](t, body).Code)

	status, _ = do(t, srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestRequestIDPropagates(t *testing.T) {
	srv, _ := newMemoryServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}
