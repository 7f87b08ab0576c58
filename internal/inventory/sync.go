package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopbridge/internal/fulfillment"
)

// Provider is the slice of the fulfillment client used for inventory lookups.
type Provider interface {
	GetInventorySummaries(ctx context.Context, skus []string) ([]fulfillment.InventorySummary, error)
}

// Config is the cache and threshold policy for Sync. The zero value means:
// 5 minute TTL, low-stock threshold 10, caching on, batches of 50, no
// safety stock.
type Config struct {
	CacheTTL          time.Duration
	LowStockThreshold int
	DisableCaching    bool
	BatchSize         int
	SafetyStock       int
}

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.LowStockThreshold <= 0 {
		c.LowStockThreshold = 10
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.SafetyStock < 0 {
		c.SafetyStock = 0
	}
	return c
}

// CheckResult is the outcome of one SKU sufficiency query. A non-nil Err
// means the inventory state is unknown, which callers must distinguish from
// a confirmed shortfall.
type CheckResult struct {
	SKU         string
	Requested   int
	Available   int
	Sufficient  bool
	LowStock    bool
	Cached      bool
	LastUpdated time.Time
	Err         error
}

// BatchItem is one SKU/quantity pair for a batch check.
type BatchItem struct {
	SKU      string
	Quantity int
}

// BatchResult is the complete per-item outcome of a batch check. Every input
// item has exactly one result even when lookups fail.
type BatchResult struct {
	Results []CheckResult
}

// Insufficient returns the items with a confirmed shortfall.
func (b BatchResult) Insufficient() []CheckResult {
	var out []CheckResult
	for _, r := range b.Results {
		if r.Err == nil && !r.Sufficient {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns the items whose inventory state is unknown.
func (b BatchResult) Failed() []CheckResult {
	var out []CheckResult
	for _, r := range b.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// LowStock returns the sufficient items that are running low.
func (b BatchResult) LowStock() []CheckResult {
	var out []CheckResult
	for _, r := range b.Results {
		if r.Err == nil && r.Sufficient && r.LowStock {
			out = append(out, r)
		}
	}
	return out
}

// Sync caches per-SKU fulfillable-quantity snapshots with a TTL and answers
// sufficiency queries, batching remote lookups.
type Sync struct {
	provider Provider
	store    CacheStore
	cfg      Config
	now      func() time.Time
}

// New constructs a Sync. The provider is required; a nil store falls back
// to an in-memory one.
func New(provider Provider, store CacheStore, cfg Config) (*Sync, error) {
	if provider == nil {
		return nil, errors.New("inventory: provider is required")
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Sync{
		provider: provider,
		store:    store,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}, nil
}

// CheckInventory answers whether requested units of a SKU are available,
// serving from cache when a fresh entry exists.
func (s *Sync) CheckInventory(ctx context.Context, sku string, requested int) CheckResult {
	batch := s.CheckInventoryBatch(ctx, []BatchItem{{SKU: sku, Quantity: requested}})
	return batch.Results[0]
}

// CheckInventoryBatch answers sufficiency for a set of items. Fresh cache
// entries short-circuit the remote call; misses are fetched in chunks of
// BatchSize. A chunk-level fetch failure yields an error result for every
// SKU in that chunk rather than marking them insufficient.
func (s *Sync) CheckInventoryBatch(ctx context.Context, items []BatchItem) BatchResult {
	now := s.now()
	entries := make(map[string]cachedEntry, len(items))
	var misses []string
	seen := make(map[string]bool, len(items))

	for _, item := range items {
		if seen[item.SKU] {
			continue
		}
		seen[item.SKU] = true

		if !s.cfg.DisableCaching {
			entry, ok, err := s.store.Get(ctx, item.SKU)
			if err == nil && ok {
				if entry.Expired(now) {
					_ = s.store.Delete(ctx, item.SKU)
				} else {
					entries[item.SKU] = cachedEntry{entry: entry, cached: true}
					continue
				}
			}
		}
		misses = append(misses, item.SKU)
	}

	for _, chunk := range chunkSKUs(misses, s.cfg.BatchSize) {
		fetched, err := s.fetch(ctx, chunk, now)
		if err != nil {
			for _, sku := range chunk {
				entries[sku] = cachedEntry{err: err}
			}
			continue
		}
		for sku, entry := range fetched {
			entries[sku] = cachedEntry{entry: entry}
		}
	}

	results := make([]CheckResult, 0, len(items))
	for _, item := range items {
		ce := entries[item.SKU]
		if ce.err != nil {
			results = append(results, CheckResult{
				SKU:       item.SKU,
				Requested: item.Quantity,
				Err:       fmt.Errorf("inventory lookup for %s: %w", item.SKU, ce.err),
			})
			continue
		}
		results = append(results, s.evaluate(ce.entry, item.Quantity, ce.cached))
	}
	return BatchResult{Results: results}
}

// RefreshInventory forces a remote refetch for the given SKUs regardless of
// cache state. Chunks that fail are reported in the joined error; successful
// chunks are still cached.
func (s *Sync) RefreshInventory(ctx context.Context, skus []string) ([]Entry, error) {
	now := s.now()
	var refreshed []Entry
	var errs []error
	for _, chunk := range chunkSKUs(skus, s.cfg.BatchSize) {
		fetched, err := s.fetch(ctx, chunk, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, sku := range chunk {
			refreshed = append(refreshed, fetched[sku])
		}
	}
	return refreshed, errors.Join(errs...)
}

// ClearExpiredCache sweeps expired entries. Callers may invoke it
// periodically; Sync does not schedule it itself.
func (s *Sync) ClearExpiredCache(ctx context.Context) (int, error) {
	return s.store.DeleteExpired(ctx, s.now())
}

type cachedEntry struct {
	entry  Entry
	cached bool
	err    error
}

// fetch reads summaries for up to one chunk of SKUs and caches the result.
// SKUs absent from the provider response are cached as zero inventory.
func (s *Sync) fetch(ctx context.Context, skus []string, now time.Time) (map[string]Entry, error) {
	summaries, err := s.provider.GetInventorySummaries(ctx, skus)
	if err != nil {
		return nil, err
	}

	bySKU := make(map[string]fulfillment.InventorySummary, len(summaries))
	for _, summary := range summaries {
		bySKU[summary.SKU] = summary
	}

	entries := make(map[string]Entry, len(skus))
	for _, sku := range skus {
		q := bySKU[sku].Quantities
		entry := Entry{
			SKU:           sku,
			Fulfillable:   q.Fulfillable,
			Total:         q.Total,
			Reserved:      q.Reserved,
			Inbound:       q.InboundWorking + q.InboundShipped + q.InboundReceiving,
			Unfulfillable: q.Unfulfillable,
			UpdatedAt:     now,
			ExpiresAt:     now.Add(s.cfg.CacheTTL),
		}
		entries[sku] = entry
		if !s.cfg.DisableCaching {
			if err := s.store.Put(ctx, entry); err != nil {
				// Cache write failure degrades to uncached reads.
				continue
			}
		}
	}
	return entries, nil
}

func (s *Sync) evaluate(entry Entry, requested int, cached bool) CheckResult {
	available := entry.Fulfillable - s.cfg.SafetyStock
	if available < 0 {
		available = 0
	}
	return CheckResult{
		SKU:         entry.SKU,
		Requested:   requested,
		Available:   available,
		Sufficient:  available >= requested,
		LowStock:    entry.Fulfillable <= s.cfg.LowStockThreshold,
		Cached:      cached,
		LastUpdated: entry.UpdatedAt,
	}
}

func chunkSKUs(skus []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var chunks [][]string
	for start := 0; start < len(skus); start += size {
		end := start + size
		if end > len(skus) {
			end = len(skus)
		}
		chunks = append(chunks, skus[start:end])
	}
	return chunks
}
