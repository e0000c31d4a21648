package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/kvhelper/pkg/kv"
	"github.com/leafsii/kvhelper/pkg/kv/memory"
)

func exec(t *testing.T, s kv.Store, line string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), s, strings.Fields(line), &out))
	return out.String()
}

func TestRunCommands(t *testing.T) {
	s := memory.New(0)
	defer s.Close()

	tests := []struct {
		line string
		want string
	}{
		{"set greeting hello", "OK\n"},
		{"GET greeting", "hello\n"},
		{"get missing", "(nil)\n"},
		{"setnx greeting other", "false\n"},
		{"setnx job worker-a 60", "true\n"},
		{"setnx job worker-b 60", "false\n"},
		{"ttl job", "60\n"},
		{"ttl greeting", "-1\n"},
		{"incr hits", "1\n"},
		{"incr hits 9", "10\n"},
		{"decr hits 4", "6\n"},
		{"hset user name alice age 30", "OK\n"},
		{"hgetall user", "age=30\nname=alice\n"},
		{"hget user nope", "(nil)\n"},
		{"rpush q a b c", "3\n"},
		{"lpop q", "a\n"},
		{"lrange q 0 -1", "b\nc\n"},
		{"sadd tags go redis", "2\n"},
		{"smembers tags", "go\nredis\n"},
		{"sismember tags rust", "false\n"},
		{"zadd board 3 carol 1 bob 5 alice", "3\n"},
		{"zrange board 0 -1", "bob\ncarol\nalice\n"},
		{"zrangebyscore board 2 +inf", "carol\nalice\n"},
		{"zcount board -inf 4", "2\n"},
		{"zcount board (1 +inf", "2\n"},
		{"zincrby board 2.5 bob", "3.5\n"},
		{"zrank board missing", "(nil)\n"},
		{"mget greeting missing", "hello\n(nil)\n"},
		{"del greeting missing", "1\n"},
		{"exists greeting", "0\n"},
		{"ping", "PONG\n"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, exec(t, s, tt.line), tt.line)
	}
}

func TestRunLockRoundTrip(t *testing.T) {
	s := memory.New(0)
	defer s.Close()

	token := strings.TrimSpace(exec(t, s, "lock jobs:nightly 30"))
	require.NotEmpty(t, token)
	assert.Equal(t, "(busy)\n", exec(t, s, "lock jobs:nightly 30"))

	assert.Equal(t, "false\n", exec(t, s, "unlock jobs:nightly not-the-token"))
	assert.Equal(t, "true\n", exec(t, s, "unlock jobs:nightly "+token))
}

func TestRunErrors(t *testing.T) {
	s := memory.New(0)
	defer s.Close()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no command", nil, errUsage},
		{"unknown command", []string{"flushall"}, errUsage},
		{"missing args", []string{"set", "k"}, errUsage},
		{"odd hset pairs", []string{"hset", "h", "a", "1", "b"}, errUsage},
		{"zero ttl", []string{"setex", "k", "0", "v"}, kv.ErrInvalidExpire},
		{"ttl overflows duration", []string{"setnx", "k", "v", "18446744078"}, kv.ErrInvalidExpire},
		{"expire overflows duration", []string{"expire", "k", "18446744078"}, kv.ErrInvalidExpire},
		{"malformed bound", []string{"zcount", "z", "[1", "5"}, kv.ErrInvalidBound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), s, tt.args, &bytes.Buffer{})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	err := run(context.Background(), s, []string{"incr", "k", "abc"}, &bytes.Buffer{})
	assert.Error(t, err)
}
