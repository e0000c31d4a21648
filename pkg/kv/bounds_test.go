package kv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScoreBound(t *testing.T) {
	tests := []struct {
		input string
		want  ScoreBound
		str   string
	}{
		{"5", ScoreBound{Score: 5}, "5"},
		{"(5", ScoreBound{Score: 5, Exclusive: true}, "(5"},
		{"-2.5", ScoreBound{Score: -2.5}, "-2.5"},
		{"-inf", ScoreBound{Score: math.Inf(-1)}, "-inf"},
		{"+inf", ScoreBound{Score: math.Inf(1)}, "+inf"},
		{"(+INF", ScoreBound{Score: math.Inf(1), Exclusive: true}, "(+inf"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseScoreBound(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.str, got.String())
		})
	}
}

func TestParseScoreBoundRejects(t *testing.T) {
	for _, input := range []string{"", "(", "abc", "[5", "NaN", "((5"} {
		_, err := ParseScoreBound(input)
		assert.ErrorIs(t, err, ErrInvalidBound, input)
	}
}

func TestScoreBoundCompare(t *testing.T) {
	inclusive := ScoreBound{Score: 5}
	exclusive := ScoreBound{Score: 5, Exclusive: true}

	assert.True(t, inclusive.AboveMin(5))
	assert.False(t, exclusive.AboveMin(5))
	assert.True(t, exclusive.AboveMin(5.1))
	assert.True(t, inclusive.BelowMax(5))
	assert.False(t, exclusive.BelowMax(5))
}

func TestSeconds(t *testing.T) {
	d, err := Seconds(90)
	require.NoError(t, err)
	assert.Equal(t, int64(90), int64(d.Seconds()))

	_, err = Seconds(MaxTTLSeconds)
	assert.NoError(t, err)

	for _, n := range []int64{MaxTTLSeconds + 1, 18446744078 * 1000, -MaxTTLSeconds - 1, math.MinInt64} {
		_, err := Seconds(n)
		assert.ErrorIs(t, err, ErrInvalidExpire, n)
	}
}
