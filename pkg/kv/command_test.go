package kv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetIfAbsentFrameArgs(t *testing.T) {
	frame := SetIfAbsentFrame{Key: "k1", Value: "v1", TTL: 100 * time.Second}

	assert.Equal(t, []any{"SET", "k1", "v1", "NX", "EX", "100"}, frame.Args())
}

func TestSetIfAbsentFrameTruncatesSubSecond(t *testing.T) {
	frame := SetIfAbsentFrame{Key: "k", Value: "v", TTL: 2500 * time.Millisecond}

	assert.Equal(t, int64(2), frame.Seconds())
	assert.Equal(t, "2", frame.Args()[5])
}

func TestIsOK(t *testing.T) {
	tests := []struct {
		name     string
		reply    any
		expected bool
	}{
		{name: "status", reply: "OK", expected: true},
		{name: "lowercase", reply: "ok", expected: true},
		{name: "bytes", reply: []byte("OK"), expected: true},
		{name: "nil", reply: nil, expected: false},
		{name: "empty", reply: "", expected: false},
		{name: "queued", reply: "QUEUED", expected: false},
		{name: "integer", reply: int64(1), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsOK(tt.reply))
		})
	}
}

func TestParseSetIfAbsent(t *testing.T) {
	frame := SetIfAbsentFrame{Key: "lock", Value: "token", TTL: 30 * time.Second}

	parsed, ok, err := ParseSetIfAbsent(frame.Args())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, frame, parsed)
}

func TestParseSetIfAbsentRejects(t *testing.T) {
	_, ok, err := ParseSetIfAbsent([]any{"GET", "k"})
	assert.False(t, ok)
	assert.NoError(t, err)

	// option tokens are case-sensitive
	_, ok, _ = ParseSetIfAbsent([]any{"SET", "k", "v", "nx", "ex", "10"})
	assert.False(t, ok)

	_, ok, err = ParseSetIfAbsent([]any{"SET", "k", "v", "NX", "EX", "0"})
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrInvalidExpire)
}
