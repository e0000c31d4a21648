package kv

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidBound is returned for a sorted-set score bound the store cannot parse
var ErrInvalidBound = errors.New("invalid score bound")

// ScoreBound is one end of a sorted-set score range in the store's syntax:
// "5" is inclusive, "(5" is exclusive, and "-inf"/"+inf" are open ends.
type ScoreBound struct {
	Score     float64
	Exclusive bool
}

// ParseScoreBound parses a bound written in the store's range syntax
func ParseScoreBound(s string) (ScoreBound, error) {
	raw := strings.TrimSpace(s)
	exclusive := strings.HasPrefix(raw, "(")
	if exclusive {
		raw = raw[1:]
	}

	var score float64
	switch strings.ToLower(raw) {
	case "-inf":
		score = math.Inf(-1)
	case "+inf", "inf":
		score = math.Inf(1)
	default:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return ScoreBound{}, fmt.Errorf("%w: %q", ErrInvalidBound, s)
		}
		score = f
	}
	return ScoreBound{Score: score, Exclusive: exclusive}, nil
}

// AboveMin reports whether score satisfies b as a lower bound
func (b ScoreBound) AboveMin(score float64) bool {
	if b.Exclusive {
		return score > b.Score
	}
	return score >= b.Score
}

// BelowMax reports whether score satisfies b as an upper bound
func (b ScoreBound) BelowMax(score float64) bool {
	if b.Exclusive {
		return score < b.Score
	}
	return score <= b.Score
}

// String renders b back into the store's range syntax
func (b ScoreBound) String() string {
	var s string
	switch {
	case math.IsInf(b.Score, -1):
		s = "-inf"
	case math.IsInf(b.Score, 1):
		s = "+inf"
	default:
		s = strconv.FormatFloat(b.Score, 'f', -1, 64)
	}
	if b.Exclusive {
		return "(" + s
	}
	return s
}
