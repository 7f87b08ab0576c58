package inventory

import (
	"context"
	"sync"
	"time"
)

// Entry is one cached per-SKU inventory snapshot. Entries are owned by
// Sync: created or refreshed on every remote fetch, evicted lazily on read
// once expired, and never persisted across restarts by the memory store.
type Entry struct {
	SKU           string
	Fulfillable   int
	Total         int
	Reserved      int
	Inbound       int
	Unfulfillable int
	UpdatedAt     time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the entry's TTL has elapsed at the given time.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// CacheStore is the persistence port for inventory snapshots. Implementations
// may keep entries in memory or in an external store; expiry policy stays
// with Sync, which deletes expired entries on access.
type CacheStore interface {
	Get(ctx context.Context, sku string) (Entry, bool, error)
	Put(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, sku string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// NewMemoryStore constructs an in-memory cache store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// MemoryStore keeps entries in a process-local map.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func (s *MemoryStore) Get(ctx context.Context, sku string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[sku]
	return entry, ok, nil
}

func (s *MemoryStore) Put(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.SKU] = entry
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sku string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sku)
	return nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for sku, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, sku)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of cached entries (for testing/inspection).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
