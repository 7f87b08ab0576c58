package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shopbridge/internal/fulfillment"
)

type stubProvider struct {
	mu        sync.Mutex
	calls     [][]string
	inventory map[string]fulfillment.Quantities
	failOn    map[string]error
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		inventory: make(map[string]fulfillment.Quantities),
		failOn:    make(map[string]error),
	}
}

func (p *stubProvider) GetInventorySummaries(_ context.Context, skus []string) ([]fulfillment.InventorySummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, append([]string(nil), skus...))

	var summaries []fulfillment.InventorySummary
	for _, sku := range skus {
		if err := p.failOn[sku]; err != nil {
			return nil, err
		}
		if quantities, ok := p.inventory[sku]; ok {
			summaries = append(summaries, fulfillment.InventorySummary{SKU: sku, Quantities: quantities})
		}
	}
	return summaries, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestSync(t *testing.T, provider *stubProvider, cfg Config) *Sync {
	t.Helper()
	svc, err := New(provider, nil, cfg)
	if err != nil {
		t.Fatalf("new sync: %v", err)
	}
	return svc
}

func TestNew_RequiresProvider(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil, Config{}); err == nil {
		t.Fatalf("expected constructor error")
	}
}

func TestCheckInventory_SufficientAndCached(t *testing.T) {
	t.Parallel()

	provider := newStubProvider()
	provider.inventory["SKU-A"] = fulfillment.Quantities{Fulfillable: 20, Total: 25}
	svc := newTestSync(t, provider, Config{})

	first := svc.CheckInventory(context.Background(), "SKU-A", 5)
	if !first.Sufficient || first.Available != 20 {
		t.Fatalf("unexpected first check: %+v", first)
	}
	if first.Cached {
		t.Fatalf("first check should be a cache miss")
	}

	second := svc.CheckInventory(context.Background(), "SKU-A", 5)
	if !second.Cached {
		t.Fatalf("second check should be served from cache")
	}
	if provider.callCount() != 1 {
		t.Fatalf("expected exactly one remote call, got %d", provider.callCount())
	}
}

func TestCheckInventory_InsufficientReportsAvailable(t *testing.T) {
	t.Parallel()

	provider := newStubProvider()
	provider.inventory["SKU-A"] = fulfillment.Quantities{Fulfillable: 3}
	svc := newTestSync(t, provider, Config{})

	result := svc.CheckInventory(context.Background(), "SKU-A", 5)
	if result.Sufficient {
		t.Fatalf("expected shortfall")
	}
	if result.Available != 3 {
		t.Fatalf("expected available 3, got %d", result.Available)
	}
	if result.Err != nil {
		t.Fatalf("shortfall is not an error: %v", result.Err)
	}
}

func TestCheckInventory_SafetyStockReducesAvailable(t *testing.T) {
	t.Parallel()

	provider := newStubProvider()
	provider.inventory["SKU-A"] = fulfillment.Quantities{Fulfillable: 4}
	svc := newTestSync(t, provider, Config{SafetyStock: 5})

	result := svc.CheckInventory(context.Background(), "SKU-A", 1)
	if result.Available != 0 {
		t.Fatalf("expected available clamped to 0, got %d", result.Available)
	}
	if result.Sufficient {
		t.Fatalf("expected insufficient with safety stock exceeding fulfillable")
	}
}

func TestCheckInventory_LowStockOnRawFulfillable(t *testing.T) {
	t.Parallel()

	provider := newStubProvider()
	provider.inventory["SKU-A"] = fulfillment.Quantities{Fulfillable: 10}
	svc := newTestSync(t, provider, Config{LowStockThreshold: 10, SafetyStock: 5})

	result := svc.CheckInventory(context.Background(), "SKU-A", 1)
	if !result.LowStock {
		t.Fatalf("expected low stock at the threshold")
	}
	if result.Available != 5 {
		t.Fatalf("expected available 5 after safety stock, got %d", result.Available)
	}
}

func TestCheckInventory_UnknownSKUIsZero(t *testing.T) {
	t.Parallel()

	provider := newStubProvider()
	svc := newTestSync(t, provider, Config{})

	result := svc.CheckInventory(context.Background(), "SKU-GHOST", 1)
	if result.Err != nil {
		t.Fatalf("absent SKU is not a lookup error: %v", result.Err)
	}
	if result.Sufficient || result.Available != 0 {
		t.Fatalf("expected zero availability, got %+v", result)
	}

	// The zero snapshot is cached too.
	svc.CheckInventory(context.Background(), "SKU-GHOST", 1)
	if provider.callCount() != 1 {
		t.Fatalf("expected absent SKU to be cached, got %d calls", provider.callCount())
	}
}

func TestCheckInventoryBatch_ChunkFailureYieldsErrorResults(t *testing.T) {
	t.Parallel()

	provider := newStubProvider()
	provider.inventory["SKU-A"] = fulfillment.Quantities{Fulfillable: 10}
	provider.inventory["SKU-B"] = fulfillment.Quantities{Fulfillable: 10}
	provider.failOn["SKU-C"] = errors.New("provider down")
	svc := newTestSync(t, provider, Config{BatchSize: 2})

	batch := svc.CheckInventoryBatch(context.Background(), []BatchItem{
		{SKU: "SKU-A", Quantity: 1},
		{SKU: "SKU-B", Quantity: 1},
		{SKU: "SKU-C", Quantity: 1},
		{SKU: "SKU-D", Quantity: 1},
	})

	if len(batch.Results) != 4 {
		t.Fatalf("expected one result per item, got %d", len(batch.Results))
	}
	for _, result := range batch.Results[:2] {
		if result.Err != nil || !result.Sufficient {
			t.Fatalf("first chunk should succeed: %+v", result)
		}
	}
	for _, result := range batch.Results[2:] {
		if result.Err == nil {
			t.Fatalf("failed chunk should yield error results: %+v", result)
		}
		if result.Sufficient {
			t.Fatalf("error results are never sufficient")
		}
	}
	if len(batch.Failed()) != 2 || len(batch.Insufficient()) != 0 {
		t.Fatalf("expected 2 failed, 0 insufficient; got %d/%d",
			len(batch.Failed()), len(batch.Insufficient()))
	}
}

func TestCheckInventoryBatch_ExpiredEntryRefetched(t *testing.T) {
	t.Parallel()

	provider := newStubProvider()
	provider.inventory["SKU-A"] = fulfillment.Quantities{Fulfillable: 10}
	svc := newTestSync(t, provider, Config{CacheTTL: time.Minute})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	svc.CheckInventory(context.Background(), "SKU-A", 1)

	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	result := svc.CheckInventory(context.Background(), "SKU-A", 1)
	if result.Cached {
		t.Fatalf("expired entry must not be served from cache")
	}
	if provider.callCount() != 2 {
		t.Fatalf("expected refetch after TTL, got %d calls", provider.callCount())
	}
}

func TestCheckInventoryBatch_DisableCachingAlwaysFetches(t *testing.T) {
	t.Parallel()

	provider := newStubProvider()
	provider.inventory["SKU-A"] = fulfillment.Quantities{Fulfillable: 10}
	svc := newTestSync(t, provider, Config{DisableCaching: true})

	svc.CheckInventory(context.Background(), "SKU-A", 1)
	svc.CheckInventory(context.Background(), "SKU-A", 1)
	if provider.callCount() != 2 {
		t.Fatalf("expected a remote call per check, got %d", provider.callCount())
	}
}

func TestCheckInventoryBatch_DuplicateSKUsFetchedOnce(t *testing.T) {
	t.Parallel()

	provider := newStubProvider()
	provider.inventory["SKU-A"] = fulfillment.Quantities{Fulfillable: 10}
	svc := newTestSync(t, provider, Config{})

	batch := svc.CheckInventoryBatch(context.Background(), []BatchItem{
		{SKU: "SKU-A", Quantity: 1},
		{SKU: "SKU-A", Quantity: 4},
	})
	if len(batch.Results) != 2 {
		t.Fatalf("expected one result per input item, got %d", len(batch.Results))
	}
	if provider.callCount() != 1 {
		t.Fatalf("expected a single fetch, got %d", provider.callCount())
	}
	if len(provider.calls[0]) != 1 {
		t.Fatalf("expected deduplicated fetch, got %v", provider.calls[0])
	}
}

func TestRefreshInventory_ForcesFetchAndJoinsErrors(t *testing.T) {
	t.Parallel()

	provider := newStubProvider()
	provider.inventory["SKU-A"] = fulfillment.Quantities{Fulfillable: 7, Total: 9}
	svc := newTestSync(t, provider, Config{})

	// Warm the cache, then refresh anyway.
	svc.CheckInventory(context.Background(), "SKU-A", 1)
	entries, err := svc.RefreshInventory(context.Background(), []string{"SKU-A"})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(entries) != 1 || entries[0].Fulfillable != 7 {
		t.Fatalf("unexpected refreshed entries: %+v", entries)
	}
	if provider.callCount() != 2 {
		t.Fatalf("refresh must bypass cache, got %d calls", provider.callCount())
	}

	provider.failOn["SKU-BAD"] = errors.New("boom")
	if _, err := svc.RefreshInventory(context.Background(), []string{"SKU-BAD"}); err == nil {
		t.Fatalf("expected joined error for failed chunk")
	}
}

func TestClearExpiredCache(t *testing.T) {
	t.Parallel()

	provider := newStubProvider()
	provider.inventory["SKU-A"] = fulfillment.Quantities{Fulfillable: 1}
	provider.inventory["SKU-B"] = fulfillment.Quantities{Fulfillable: 1}
	store := NewMemoryStore()
	svc, err := New(provider, store, Config{CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("new sync: %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	svc.CheckInventoryBatch(context.Background(), []BatchItem{
		{SKU: "SKU-A", Quantity: 1},
		{SKU: "SKU-B", Quantity: 1},
	})

	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	removed, err := svc.ClearExpiredCache(context.Background())
	if err != nil {
		t.Fatalf("clear expired: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removals, got %d", removed)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d entries", store.Len())
	}
}

func TestEntry_InboundAggregatesPipeline(t *testing.T) {
	t.Parallel()

	provider := newStubProvider()
	provider.inventory["SKU-A"] = fulfillment.Quantities{
		Fulfillable:      1,
		InboundWorking:   2,
		InboundShipped:   3,
		InboundReceiving: 4,
	}
	svc := newTestSync(t, provider, Config{})

	entries, err := svc.RefreshInventory(context.Background(), []string{"SKU-A"})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if entries[0].Inbound != 9 {
		t.Fatalf("expected inbound 9, got %d", entries[0].Inbound)
	}
}
