package kv

import (
	"fmt"
	"time"
)

// Backend represents the storage backend type
type Backend string

const (
	// BackendMemory uses the in-memory store
	BackendMemory Backend = "memory"
	// BackendRedis uses Redis as the backend
	BackendRedis Backend = "redis"
)

// Config holds configuration for creating a Store instance
type Config struct {
	// Backend specifies which storage backend to use
	Backend Backend

	// RedisURL is the connection string for Redis (required when Backend is "redis")
	// Format: redis://localhost:6379/0 or redis://:password@localhost:6379/1
	RedisURL string

	// Connection timeouts handed to the Redis client. Zero keeps the client default.
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// JanitorInterval controls how often the in-memory store cleans up expired keys
	// Set to 0 to disable background cleanup; expired keys are then only
	// dropped when read. internal/config defaults it to 30 seconds.
	JanitorInterval time.Duration

	// Observer receives per-command timings. If nil, the store is returned undecorated.
	Observer Observer

	// Logger is used for logging failed commands. If nil, no logging occurs.
	Logger LogFunc
}

// StoreFactory defines a function that creates a Store instance
type StoreFactory func(cfg Config) (Store, error)

// factories holds registered store factories
var factories = make(map[Backend]StoreFactory)

// RegisterBackend registers a store factory for a given backend
func RegisterBackend(backend Backend, factory StoreFactory) {
	factories[backend] = factory
}

// NewStoreFromConfig creates a new Store instance based on the provided configuration.
// A backend that cannot be reached is reported as an error; there is no fallback.
func NewStoreFromConfig(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, BackendRedis:
	default:
		return nil, fmt.Errorf("unsupported backend: %s (supported: %s, %s)",
			cfg.Backend, BackendMemory, BackendRedis)
	}

	factory, exists := factories[cfg.Backend]
	if !exists {
		return nil, fmt.Errorf("%s backend not registered", cfg.Backend)
	}

	store, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", cfg.Backend, err)
	}

	if cfg.Observer == nil && cfg.Logger == nil {
		return store, nil
	}
	return NewInstrumentedStore(store, cfg.Observer, cfg.Logger), nil
}
