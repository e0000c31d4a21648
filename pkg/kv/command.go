package kv

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/leafsii/kvhelper/pkg/kv/textconv"
)

// Command is a store command name sent as the first frame argument
type Command string

// Param is a literal option token. Tokens are case-sensitive on the wire.
type Param string

const (
	CommandSet Command = "SET"

	// ParamNX only sets the key if it does not already exist
	ParamNX Param = "NX"
	// ParamEX sets the expiry in seconds
	ParamEX Param = "EX"
)

// ReplyOK is the status reply of a SET that took effect
const ReplyOK = "OK"

// SetIfAbsentFrame is the raw "SET key value NX EX seconds" request.
type SetIfAbsentFrame struct {
	Key   string
	Value string
	TTL   time.Duration
}

// Seconds returns the TTL in whole seconds; any sub-second remainder is dropped.
func (f SetIfAbsentFrame) Seconds() int64 {
	return int64(f.TTL / time.Second)
}

// Args returns the positional arguments of the frame, command name first.
func (f SetIfAbsentFrame) Args() []any {
	return []any{
		string(CommandSet),
		f.Key,
		f.Value,
		string(ParamNX),
		string(ParamEX),
		strconv.FormatInt(f.Seconds(), 10),
	}
}

// IsOK reports whether a raw reply is the OK status. Nil replies, numbers and
// any other text are not.
func IsOK(reply any) bool {
	switch r := reply.(type) {
	case string:
		return strings.EqualFold(r, ReplyOK)
	case []byte:
		return strings.EqualFold(textconv.Decode(r), ReplyOK)
	default:
		return false
	}
}

// ParseSetIfAbsent recognizes a SET frame carrying NX and EX options and
// returns it. ok is false for any other argument list.
func ParseSetIfAbsent(args []any) (frame SetIfAbsentFrame, ok bool, err error) {
	if len(args) != 6 {
		return frame, false, nil
	}
	tokens := make([]string, len(args))
	for i, arg := range args {
		switch a := arg.(type) {
		case string:
			tokens[i] = a
		case []byte:
			tokens[i] = textconv.Decode(a)
		default:
			return frame, false, nil
		}
	}
	if !strings.EqualFold(tokens[0], string(CommandSet)) ||
		tokens[3] != string(ParamNX) || tokens[4] != string(ParamEX) {
		return frame, false, nil
	}
	seconds, err := strconv.ParseInt(tokens[5], 10, 64)
	if err != nil || seconds <= 0 {
		return frame, true, ErrInvalidExpire
	}
	return SetIfAbsentFrame{
		Key:   tokens[1],
		Value: tokens[2],
		TTL:   time.Duration(seconds) * time.Second,
	}, true, nil
}

// Doer issues raw command frames
type Doer interface {
	Do(ctx context.Context, args ...any) (any, error)
}

// SetIfAbsent sends frame through d as a single command and reports whether
// the store applied it. A null reply means the key already existed.
func SetIfAbsent(ctx context.Context, d Doer, frame SetIfAbsentFrame) (bool, error) {
	if frame.Seconds() <= 0 {
		return false, ErrInvalidExpire
	}
	reply, err := d.Do(ctx, frame.Args()...)
	if err != nil {
		return false, err
	}
	return IsOK(reply), nil
}
