// Package lock implements a single-holder lease on top of kv.Store.
//
// A lease is a string key holding a random token with a TTL. TryLock claims
// the key with SetNXEx and Unlock removes it only while it still holds the
// same token, so a holder whose lease expired cannot release someone else's.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leafsii/kvhelper/pkg/kv"
)

// ErrNotHeld is returned by Unlock when TryLock never succeeded
var ErrNotHeld = errors.New("lock not held")

// Mutex is a lease on one key. It is safe for concurrent use.
type Mutex struct {
	store kv.Store
	key   string
	ttl   time.Duration

	mu    sync.Mutex
	token string
}

// New returns a Mutex for key. ttl is sent in whole seconds and must be at least one second.
func New(store kv.Store, key string, ttl time.Duration) *Mutex {
	return &Mutex{store: store, key: key, ttl: ttl}
}

// Resume returns a Mutex that already holds the lease identified by token,
// typically one handed out by an earlier TryLock in another process.
func Resume(store kv.Store, key, token string) *Mutex {
	return &Mutex{store: store, key: key, token: token}
}

// Key returns the key the lease lives under
func (m *Mutex) Key() string {
	return m.key
}

// Token returns the token of the current lease, or "" when none is held
func (m *Mutex) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// TryLock makes one attempt to take the lease. It reports false without error
// when someone else holds it.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	token := uuid.NewString()

	acquired, err := m.store.SetNXEx(ctx, m.key, token, m.ttl)
	if err != nil || !acquired {
		return false, err
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return true, nil
}

// Unlock releases the lease if this Mutex still owns it. It reports false when
// the lease already expired or was taken over.
func (m *Mutex) Unlock(ctx context.Context) (bool, error) {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	if token == "" {
		return false, ErrNotHeld
	}

	released, err := m.store.DelIfEqual(ctx, m.key, token)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	if m.token == token {
		m.token = ""
	}
	m.mu.Unlock()
	return released, nil
}
