package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/leafsii/kvhelper/internal/config"
	kvlog "github.com/leafsii/kvhelper/internal/log"
	"github.com/leafsii/kvhelper/pkg/kv"
	_ "github.com/leafsii/kvhelper/pkg/kv/memory"
	_ "github.com/leafsii/kvhelper/pkg/kv/redis"
)

var (
	flags    = flag.NewFlagSet("kvctl", flag.ExitOnError)
	backend  = flags.String("backend", "", "store backend (redis or memory); defaults to KVH_BACKEND")
	redisURL = flags.String("redis-url", "", "redis connection URL; defaults to KVH_REDIS_URL")
	timeout  = flags.Duration("timeout", 5*time.Second, "command timeout")
	verbose  = flags.Bool("v", false, "log failed store commands")
)

func main() {
	flags.Usage = func() {
		fmt.Fprint(flags.Output(), usageText())
		fmt.Fprintln(flags.Output(), "\nFlags:")
		flags.PrintDefaults()
	}
	flags.Parse(os.Args[1:])
	args := flags.Args()

	if len(args) < 1 {
		log.Fatal(usageText())
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	kvCfg := cfg.KV()
	if *backend != "" {
		kvCfg.Backend = kv.Backend(*backend)
	}
	if *redisURL != "" {
		kvCfg.RedisURL = *redisURL
	}
	if *verbose {
		logger, err := kvlog.NewSugar("dev")
		if err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
		defer logger.Sync()
		kvCfg.Logger = kvlog.StoreLogger(logger)
	}

	store, err := kv.NewStoreFromConfig(kvCfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, store, args, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			log.Printf("%v\n\n%s", err, usageText())
		} else {
			log.Printf("%s failed: %v", args[0], err)
		}
		store.Close()
		os.Exit(1)
	}
}
