package ledger

import (
	"context"
	"time"

	"github.com/yourorg/tenantonboard/pkg/cache"
)

// MemoryStore keeps ledger entries in process. Entries do not survive a
// restart and are not shared between replicas.
type MemoryStore struct {
	c *cache.Cache[string]
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: cache.New[string]()}
}

// NewMemoryStoreWithClock is NewMemoryStore with an injected time source.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{c: cache.NewWithClock[string](now)}
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.c.Get(key)
	return v, ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Sweep drops expired entries.
func (m *MemoryStore) Sweep() int { return m.c.Sweep() }
