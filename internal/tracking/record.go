package tracking

import (
	"context"
	"sync"
	"time"
)

// Record is the per-order tracking-sync state. Records are created when an
// order is registered, mutated only by Sync, and removed only explicitly.
type Record struct {
	OrderID            string
	FulfillmentOrderID string
	SyncAttempts       int
	LastAttemptAt      time.Time
	Synced             bool
	SyncedAt           time.Time
	LastError          string
}

// RecordStore is the persistence port for tracking records. The default
// memory store loses state on restart; durable callers wire a database-backed
// implementation instead.
type RecordStore interface {
	Get(ctx context.Context, orderID string) (Record, bool, error)
	Put(ctx context.Context, record Record) error
	Delete(ctx context.Context, orderID string) error
	List(ctx context.Context) ([]Record, error)
}

// NewMemoryStore constructs an in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// MemoryStore keeps records in a process-local map.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	order   []string
}

func (s *MemoryStore) Get(ctx context.Context, orderID string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[orderID]
	return record, ok, nil
}

func (s *MemoryStore) Put(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.OrderID]; !ok {
		s.order = append(s.order, record.OrderID)
	}
	s.records[record.OrderID] = record
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[orderID]; !ok {
		return nil
	}
	delete(s.records, orderID)
	for i, id := range s.order {
		if id == orderID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]Record, 0, len(s.records))
	for _, id := range s.order {
		records = append(records, s.records[id])
	}
	return records, nil
}
