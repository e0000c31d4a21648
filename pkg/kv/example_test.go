package kv_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/leafsii/kvhelper/pkg/kv"

	// Import backends to register them
	_ "github.com/leafsii/kvhelper/pkg/kv/memory"
	_ "github.com/leafsii/kvhelper/pkg/kv/redis"
)

func ExampleNewStoreFromConfig_memory() {
	cfg := kv.Config{
		Backend:         kv.BackendMemory,
		JanitorInterval: 30 * time.Second,
	}

	store, err := kv.NewStoreFromConfig(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()

	// Basic string operations
	if err := store.Set(ctx, "user:123", "john"); err != nil {
		log.Fatal(err)
	}

	value, err := store.Get(ctx, "user:123")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(value)
	// Output: john
}

func ExampleStore_setNXEx() {
	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()

	// Only the first caller claims the key
	first, err := store.SetNXEx(ctx, "job:42:owner", "worker-a", 100*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	second, err := store.SetNXEx(ctx, "job:42:owner", "worker-b", 100*time.Second)
	if err != nil {
		log.Fatal(err)
	}

	owner, _ := store.Get(ctx, "job:42:owner")
	fmt.Println(first, second, owner)
	// Output: true false worker-a
}

func ExampleSetIfAbsentFrame_Args() {
	frame := kv.SetIfAbsentFrame{Key: "k", Value: "v", TTL: 100 * time.Second}
	fmt.Println(frame.Args()...)
	// Output: SET k v NX EX 100
}

func ExampleStore_hash() {
	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	userKey := "user:profile:123"

	store.HMSet(ctx, userKey, map[string]string{
		"name":  "John Doe",
		"email": "john@example.com",
	})

	name, err := store.HGet(ctx, userKey, "name")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Name:", name)

	fields, err := store.HMGet(ctx, userKey, "email", "phone")
	if err != nil {
		log.Fatal(err)
	}
	for _, f := range fields {
		fmt.Printf("%q %t\n", f.Str, f.Valid)
	}
	// Output:
	// Name: John Doe
	// "john@example.com" true
	// "" false
}

func ExampleStore_counter() {
	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	counterKey := "page:views"

	// Increment page views
	views, err := store.Incr(ctx, counterKey)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Page views: %d\n", views)

	// Increment by 5
	views, err = store.IncrBy(ctx, counterKey, 5)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Page views after +5: %d\n", views)
	// Output:
	// Page views: 1
	// Page views after +5: 6
}

func ExampleStore_list() {
	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	queueKey := "queue:emails"

	store.RPush(ctx, queueKey, "first", "second", "third")

	next, err := store.LPop(ctx, queueKey)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Next:", next)

	rest, err := store.LRange(ctx, queueKey, 0, -1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Remaining:", rest)
	// Output:
	// Next: first
	// Remaining: [second third]
}

func ExampleStore_sortedSet() {
	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	board := "leaderboard"

	store.ZAddMany(ctx, board,
		kv.Z{Member: "carol", Score: 30},
		kv.Z{Member: "alice", Score: 10},
		kv.Z{Member: "bob", Score: 20},
	)
	store.ZIncrBy(ctx, board, 25, "alice")

	ranking, err := store.ZRange(ctx, board, 0, -1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(ranking)
	// Output: [bob carol alice]
}
