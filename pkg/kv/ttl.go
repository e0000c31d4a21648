package kv

import (
	"math"
	"time"
)

// MaxTTLSeconds is the largest whole-second expiry a time.Duration can hold
const MaxTTLSeconds = math.MaxInt64 / int64(time.Second)

// Seconds converts a whole-second count into a Duration. Counts whose Duration
// would overflow are rejected with ErrInvalidExpire instead of wrapping around.
// Zero and negative counts are passed through for callers that give them meaning.
func Seconds(n int64) (time.Duration, error) {
	if n > MaxTTLSeconds || n < -MaxTTLSeconds {
		return 0, ErrInvalidExpire
	}
	return time.Duration(n) * time.Second, nil
}
