// Package kv provides a text facade over a Redis-like key-value store, with
// Redis-backed and in-memory implementations.
//
// Each Store method forwards to one native store command and converts the
// store's byte replies to strings. The one composite command, SetNXEx, is sent
// as a raw "SET key value NX EX seconds" frame through Store.Do so that the
// presence check and the write happen atomically on the server.
//
// Backends register themselves when imported:
//
//	import _ "github.com/leafsii/kvhelper/pkg/kv/redis"
//
// Example usage:
//
//	cfg := Config{
//		Backend:  BackendRedis,
//		RedisURL: "redis://localhost:6379/0",
//	}
//	store, err := NewStoreFromConfig(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	ctx := context.Background()
//	acquired, err := store.SetNXEx(ctx, "job:lock", "worker-1", 30*time.Second)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if !acquired {
//		return
//	}
//
//	value, err := store.Get(ctx, "job:lock")
//	if err != nil {
//		if errors.Is(err, ErrNotFound) {
//			log.Println("Key not found")
//		} else {
//			log.Fatal(err)
//		}
//	}
//
// Store-access failures are returned unchanged, or wrapped around
// ErrBackendUnavailable when the connection itself failed. Nothing is retried.
package kv
