package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/leafsii/kvhelper/pkg/kv"
	"github.com/leafsii/kvhelper/pkg/kv/lock"
)

var errUsage = errors.New("usage")

type command struct {
	usage   string
	minArgs int
	run     func(ctx context.Context, s kv.Store, args []string, out io.Writer) error
}

var commands = map[string]command{
	"ping": {"ping", 0, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		if err := s.Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "PONG")
		return nil
	}},

	// Strings
	"get": {"get KEY", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		v, err := s.Get(ctx, args[0])
		return printValue(out, v, err)
	}},
	"set": {"set KEY VALUE", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printOK(out, s.Set(ctx, args[0], args[1]))
	}},
	"setex": {"setex KEY SECONDS VALUE", 3, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		ttl, err := parseSeconds(args[1])
		if err != nil {
			return err
		}
		return printOK(out, s.SetEx(ctx, args[0], args[2], ttl))
	}},
	"setnx": {"setnx KEY VALUE [SECONDS]", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		if len(args) < 3 {
			return printBool(out)(s.SetNX(ctx, args[0], args[1]))
		}
		ttl, err := parseSeconds(args[2])
		if err != nil {
			return err
		}
		return printBool(out)(s.SetNXEx(ctx, args[0], args[1], ttl))
	}},
	"mget": {"mget KEY [KEY...]", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		values, err := s.MGet(ctx, args...)
		if err != nil {
			return err
		}
		for _, v := range values {
			if v.Valid {
				fmt.Fprintln(out, v.Str)
			} else {
				fmt.Fprintln(out, "(nil)")
			}
		}
		return nil
	}},

	// Keys
	"del": {"del KEY [KEY...]", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printInt(out)(s.Del(ctx, args...))
	}},
	"exists": {"exists KEY [KEY...]", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printInt(out)(s.Exists(ctx, args...))
	}},
	"expire": {"expire KEY SECONDS", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		n, err := parseInt(args[1])
		if err != nil {
			return err
		}
		ttl, err := kv.Seconds(n)
		if err != nil {
			return err
		}
		return printBool(out)(s.Expire(ctx, args[0], ttl))
	}},
	"ttl": {"ttl KEY", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		ttl, err := s.TTL(ctx, args[0])
		if err != nil {
			return err
		}
		if ttl == kv.NoExpiry {
			fmt.Fprintln(out, -1)
			return nil
		}
		fmt.Fprintln(out, int64(ttl.Round(time.Second)/time.Second))
		return nil
	}},

	// Counters
	"incr": {"incr KEY [N]", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		if len(args) < 2 {
			return printInt(out)(s.Incr(ctx, args[0]))
		}
		n, err := parseInt(args[1])
		if err != nil {
			return err
		}
		return printInt(out)(s.IncrBy(ctx, args[0], n))
	}},
	"decr": {"decr KEY [N]", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		if len(args) < 2 {
			return printInt(out)(s.Decr(ctx, args[0]))
		}
		n, err := parseInt(args[1])
		if err != nil {
			return err
		}
		return printInt(out)(s.DecrBy(ctx, args[0], n))
	}},

	// Hashes
	"hget": {"hget KEY FIELD", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		v, err := s.HGet(ctx, args[0], args[1])
		return printValue(out, v, err)
	}},
	"hset": {"hset KEY FIELD VALUE [FIELD VALUE...]", 3, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		pairs := args[1:]
		if len(pairs)%2 != 0 {
			return fmt.Errorf("%w: hset needs FIELD VALUE pairs", errUsage)
		}
		if len(pairs) == 2 {
			return printOK(out, s.HSet(ctx, args[0], pairs[0], pairs[1]))
		}
		fields := make(map[string]string, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			fields[pairs[i]] = pairs[i+1]
		}
		return printOK(out, s.HMSet(ctx, args[0], fields))
	}},
	"hdel": {"hdel KEY FIELD [FIELD...]", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printInt(out)(s.HDel(ctx, args[0], args[1:]...))
	}},
	"hgetall": {"hgetall KEY", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		fields, err := s.HGetAll(ctx, args[0])
		if err != nil {
			return err
		}
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%s=%s\n", name, fields[name])
		}
		return nil
	}},
	"hlen": {"hlen KEY", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printInt(out)(s.HLen(ctx, args[0]))
	}},

	// Sets
	"sadd": {"sadd KEY MEMBER [MEMBER...]", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printInt(out)(s.SAdd(ctx, args[0], args[1:]...))
	}},
	"srem": {"srem KEY MEMBER [MEMBER...]", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printInt(out)(s.SRem(ctx, args[0], args[1:]...))
	}},
	"smembers": {"smembers KEY", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		members, err := s.SMembers(ctx, args[0])
		if err != nil {
			return err
		}
		sort.Strings(members)
		return printLines(out, members)
	}},
	"sismember": {"sismember KEY MEMBER", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printBool(out)(s.SIsMember(ctx, args[0], args[1]))
	}},
	"spop": {"spop KEY [COUNT]", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		if len(args) < 2 {
			v, err := s.SPop(ctx, args[0])
			return printValue(out, v, err)
		}
		n, err := parseInt(args[1])
		if err != nil {
			return err
		}
		members, err := s.SPopN(ctx, args[0], n)
		if err != nil {
			return err
		}
		return printLines(out, members)
	}},

	// Sorted sets
	"zadd": {"zadd KEY SCORE MEMBER [SCORE MEMBER...]", 3, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		pairs := args[1:]
		if len(pairs)%2 != 0 {
			return fmt.Errorf("%w: zadd needs SCORE MEMBER pairs", errUsage)
		}
		members := make([]kv.Z, 0, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			score, err := parseScore(pairs[i])
			if err != nil {
				return err
			}
			members = append(members, kv.Z{Member: pairs[i+1], Score: score})
		}
		return printInt(out)(s.ZAddMany(ctx, args[0], members...))
	}},
	"zrem": {"zrem KEY MEMBER [MEMBER...]", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printInt(out)(s.ZRem(ctx, args[0], args[1:]...))
	}},
	"zrange": {"zrange KEY START STOP", 3, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		start, stop, err := parseRange(args[1], args[2])
		if err != nil {
			return err
		}
		members, err := s.ZRange(ctx, args[0], start, stop)
		if err != nil {
			return err
		}
		return printLines(out, members)
	}},
	"zrangebyscore": {"zrangebyscore KEY MIN MAX [OFFSET COUNT]", 3, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		min, err := parseScore(args[1])
		if err != nil {
			return err
		}
		max, err := parseScore(args[2])
		if err != nil {
			return err
		}
		var members []string
		if len(args) >= 5 {
			offset, count, perr := parseRange(args[3], args[4])
			if perr != nil {
				return perr
			}
			members, err = s.ZRangeByScoreLimit(ctx, args[0], min, max, offset, count)
		} else {
			members, err = s.ZRangeByScore(ctx, args[0], min, max)
		}
		if err != nil {
			return err
		}
		return printLines(out, members)
	}},
	"zcount": {"zcount KEY MIN MAX", 3, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printInt(out)(s.ZCountBounds(ctx, args[0], args[1], args[2]))
	}},
	"zrank": {"zrank KEY MEMBER", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printInt(out)(s.ZRank(ctx, args[0], args[1]))
	}},
	"zscore": {"zscore KEY MEMBER", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printFloat(out)(s.ZScore(ctx, args[0], args[1]))
	}},
	"zincrby": {"zincrby KEY INCREMENT MEMBER", 3, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		incr, err := parseScore(args[1])
		if err != nil {
			return err
		}
		return printFloat(out)(s.ZIncrBy(ctx, args[0], incr, args[2]))
	}},

	// Lists
	"lpush": {"lpush KEY VALUE [VALUE...]", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printInt(out)(s.LPush(ctx, args[0], args[1:]...))
	}},
	"rpush": {"rpush KEY VALUE [VALUE...]", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printInt(out)(s.RPush(ctx, args[0], args[1:]...))
	}},
	"lpop": {"lpop KEY", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		v, err := s.LPop(ctx, args[0])
		return printValue(out, v, err)
	}},
	"rpop": {"rpop KEY", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		v, err := s.RPop(ctx, args[0])
		return printValue(out, v, err)
	}},
	"lrange": {"lrange KEY START STOP", 3, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		start, stop, err := parseRange(args[1], args[2])
		if err != nil {
			return err
		}
		values, err := s.LRange(ctx, args[0], start, stop)
		if err != nil {
			return err
		}
		return printLines(out, values)
	}},
	"llen": {"llen KEY", 1, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printInt(out)(s.LLen(ctx, args[0]))
	}},

	// Leases
	"lock": {"lock KEY SECONDS", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		ttl, err := parseSeconds(args[1])
		if err != nil {
			return err
		}
		m := lock.New(s, args[0], ttl)
		acquired, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if !acquired {
			fmt.Fprintln(out, "(busy)")
			return nil
		}
		fmt.Fprintln(out, m.Token())
		return nil
	}},
	"unlock": {"unlock KEY TOKEN", 2, func(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
		return printBool(out)(lock.Resume(s, args[0], args[1]).Unlock(ctx))
	}},
}

// run executes one command line against s
func run(ctx context.Context, s kv.Store, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	name := strings.ToLower(args[0])
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	if len(args)-1 < cmd.minArgs {
		return fmt.Errorf("%w: %s", errUsage, cmd.usage)
	}
	return cmd.run(ctx, s, args[1:], out)
}

func usageText() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Usage: kvctl [flags] COMMAND [ARGS...]\n\nCommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s\n", commands[name].usage)
	}
	return b.String()
}

func printValue(out io.Writer, v string, err error) error {
	if errors.Is(err, kv.ErrNotFound) {
		fmt.Fprintln(out, "(nil)")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, v)
	return nil
}

func printOK(out io.Writer, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(out, kv.ReplyOK)
	return nil
}

func printLines(out io.Writer, lines []string) error {
	if len(lines) == 0 {
		fmt.Fprintln(out, "(empty)")
		return nil
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}

func printInt(out io.Writer) func(int64, error) error {
	return func(n int64, err error) error {
		if errors.Is(err, kv.ErrNotFound) {
			fmt.Fprintln(out, "(nil)")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, n)
		return nil
	}
}

func printFloat(out io.Writer) func(float64, error) error {
	return func(f float64, err error) error {
		if errors.Is(err, kv.ErrNotFound) {
			fmt.Fprintln(out, "(nil)")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
}

func printBool(out io.Writer) func(bool, error) error {
	return func(b bool, err error) error {
		if err != nil {
			return err
		}
		fmt.Fprintln(out, b)
		return nil
	}
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func parseRange(a, b string) (int64, int64, error) {
	start, err := parseInt(a)
	if err != nil {
		return 0, 0, err
	}
	stop, err := parseInt(b)
	if err != nil {
		return 0, 0, err
	}
	return start, stop, nil
}

func parseSeconds(s string) (time.Duration, error) {
	n, err := parseInt(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, kv.ErrInvalidExpire
	}
	return kv.Seconds(n)
}

// parseScore accepts the store's "-inf" and "+inf" spellings
func parseScore(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid score %q", s)
	}
	return f, nil
}
