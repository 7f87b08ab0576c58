package tracking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"shopbridge/internal/fulfillment"
	"shopbridge/internal/marketplace"
	"shopbridge/internal/observability"
	"shopbridge/internal/reliability"
)

// ErrNotRegistered signals no tracking record exists for the order.
var ErrNotRegistered = errors.New("order not registered for tracking")

// ErrRetriesExhausted signals the record reached its attempt ceiling; no
// further attempts are made without explicit re-registration.
var ErrRetriesExhausted = errors.New("tracking sync retries exhausted")

// Config is the tracking-sync policy. The zero value means: 3 attempts,
// 1 second between orders in a batch, already-synced orders skipped,
// tracking pushed to the marketplace, 30 minute scheduler interval, and
// 10 scheduler runs per rolling minute.
type Config struct {
	MaxRetries int
	// RetryDelay is the inter-order delay in SyncOrders.
	RetryDelay time.Duration
	// ResyncSynced re-runs orders whose record is already synced. The zero
	// value skips them, making repeat calls idempotent.
	ResyncSynced bool
	// DryRun extracts tracking numbers without pushing them back to the
	// marketplace; the record is still marked synced.
	DryRun bool
	// SyncInterval is the scheduler's poll period.
	SyncInterval time.Duration
	// RateLimitPerMinute caps scheduler-triggered runs per rolling
	// 60-second window.
	RateLimitPerMinute int
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = 30 * time.Minute
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 10
	}
	return c
}

// Result is the per-order outcome of one sync attempt.
type Result struct {
	OrderID string
	Success bool
	// Skipped is set when the record was already synced before this call.
	Skipped bool
	// NotReady is set when the fulfillment order exists but has not
	// completed; it is a waiting state, not an error.
	NotReady       bool
	TrackingNumber string
	Carrier        string
	// ExtraPackages counts packages beyond the first across all shipments;
	// their tracking numbers are not pushed (first-shipment-first-package
	// simplification).
	ExtraPackages int
	Err           error
}

// BatchResult summarizes a sequential batch sync.
type BatchResult struct {
	Results  []Result
	Synced   int
	Skipped  int
	NotReady int
	Failed   int
}

// Deps are the sync service's collaborators. Marketplace and Fulfillment
// are required; a nil Store falls back to an in-memory one.
type Deps struct {
	Marketplace marketplace.Client
	Fulfillment fulfillment.Client
	Store       RecordStore
	Metrics     *observability.Metrics
	OnResult    func(Result)
	Logf        func(format string, args ...any)
}

// Sync polls the fulfillment provider for shipment status on routed orders
// and pushes tracking numbers back to the marketplace. It owns no timers;
// Scheduler drives periodic runs.
type Sync struct {
	marketplace marketplace.Client
	fulfillment fulfillment.Client
	store       RecordStore
	metrics     *observability.Metrics
	onResult    func(Result)
	logf        func(format string, args ...any)
	cfg         Config
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
}

// New constructs a Sync, failing fast when a required collaborator is
// absent.
func New(deps Deps, cfg Config) (*Sync, error) {
	if deps.Marketplace == nil {
		return nil, errors.New("tracking: marketplace client is required")
	}
	if deps.Fulfillment == nil {
		return nil, errors.New("tracking: fulfillment client is required")
	}
	store := deps.Store
	if store == nil {
		store = NewMemoryStore()
	}
	logf := deps.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Sync{
		marketplace: deps.Marketplace,
		fulfillment: deps.Fulfillment,
		store:       store,
		metrics:     deps.Metrics,
		onResult:    deps.OnResult,
		logf:        logf,
		cfg:         cfg.withDefaults(),
		now:         time.Now,
		sleep:       reliability.SleepWithContext,
	}, nil
}

// Register creates a tracking record for an order, typically right after
// successful routing. Re-registering an existing record only refreshes the
// fulfillment order id; attempts and sync state are preserved.
func (s *Sync) Register(ctx context.Context, orderID, fulfillmentOrderID string) error {
	record, ok, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !ok {
		record = Record{OrderID: orderID}
	}
	record.FulfillmentOrderID = fulfillmentOrderID
	return s.store.Put(ctx, record)
}

// Remove deletes an order's tracking record.
func (s *Sync) Remove(ctx context.Context, orderID string) error {
	return s.store.Delete(ctx, orderID)
}

// RecordFor returns the tracking record for an order, if any.
func (s *Sync) RecordFor(ctx context.Context, orderID string) (Record, bool, error) {
	return s.store.Get(ctx, orderID)
}

// SyncOrder attempts to push one order's tracking number back to the
// marketplace. Already-synced records succeed without remote calls; records
// at the attempt ceiling fail without remote calls.
func (s *Sync) SyncOrder(ctx context.Context, orderID string) Result {
	result := s.syncOrder(ctx, orderID)
	if s.onResult != nil {
		s.onResult(result)
	}
	return result
}

func (s *Sync) syncOrder(ctx context.Context, orderID string) Result {
	record, ok, err := s.store.Get(ctx, orderID)
	if err != nil {
		return Result{OrderID: orderID, Err: err}
	}
	if !ok {
		return Result{OrderID: orderID, Err: fmt.Errorf("%w: %s", ErrNotRegistered, orderID)}
	}

	if record.Synced && !s.cfg.ResyncSynced {
		return Result{OrderID: orderID, Success: true, Skipped: true}
	}
	if record.SyncAttempts >= s.cfg.MaxRetries {
		return Result{OrderID: orderID, Err: fmt.Errorf("%w after %d attempts: %s",
			ErrRetriesExhausted, record.SyncAttempts, orderID)}
	}

	// The attempt is consumed before any remote work so a crash mid-call
	// still counts against the ceiling.
	record.SyncAttempts++
	record.LastAttemptAt = s.now()
	if err := s.store.Put(ctx, record); err != nil {
		return Result{OrderID: orderID, Err: err}
	}

	span := s.metrics.Start("tracking.fetch_order")
	detail, err := s.fulfillment.GetFulfillmentOrder(ctx, record.FulfillmentOrderID)
	span.End(err)
	if err != nil {
		return s.fail(ctx, record, fmt.Errorf("fetch fulfillment order: %w", err))
	}

	if detail.Status != fulfillment.OrderComplete {
		return Result{OrderID: orderID, NotReady: true}
	}

	trackingNumber, carrier, extra, ok := firstPackage(detail)
	if !ok {
		return s.fail(ctx, record, errors.New("completed order has no tracked package"))
	}

	if !s.cfg.DryRun {
		packageID, err := s.marketplace.GetPackageID(ctx, orderID)
		if err != nil {
			// Fall back to the order id so a failed lookup does not stall
			// the pipeline.
			s.logf("tracking: package lookup for %s failed (%v), using order id", orderID, err)
			packageID = orderID
		}

		span = s.metrics.Start("tracking.push_tracking")
		err = s.marketplace.UpdateTrackingInfo(ctx, packageID, marketplace.TrackingUpdate{
			OrderID:        orderID,
			TrackingNumber: trackingNumber,
			CarrierName:    carrier,
		})
		span.End(err)
		if err != nil {
			return s.fail(ctx, record, fmt.Errorf("push tracking: %w", err))
		}
	}

	record.Synced = true
	record.SyncedAt = s.now()
	record.LastError = ""
	if err := s.store.Put(ctx, record); err != nil {
		return Result{OrderID: orderID, Err: err}
	}

	return Result{
		OrderID:        orderID,
		Success:        true,
		TrackingNumber: trackingNumber,
		Carrier:        carrier,
		ExtraPackages:  extra,
	}
}

// SyncOrders syncs sequentially with an inter-order delay, respecting the
// provider's rate limits rather than maximizing throughput.
func (s *Sync) SyncOrders(ctx context.Context, orderIDs []string) BatchResult {
	var batch BatchResult
	for i, orderID := range orderIDs {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.RetryDelay); err != nil {
				batch.Results = append(batch.Results, Result{OrderID: orderID, Err: err})
				batch.Failed++
				return batch
			}
		}

		result := s.SyncOrder(ctx, orderID)
		batch.Results = append(batch.Results, result)
		switch {
		case result.Skipped:
			batch.Skipped++
		case result.Success:
			batch.Synced++
		case result.NotReady:
			batch.NotReady++
		default:
			batch.Failed++
		}
	}
	return batch
}

// SyncAllUnsynced syncs every registered order that is neither synced nor
// past its attempt ceiling.
func (s *Sync) SyncAllUnsynced(ctx context.Context) (BatchResult, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	var orderIDs []string
	for _, record := range records {
		if record.Synced || record.SyncAttempts >= s.cfg.MaxRetries {
			continue
		}
		orderIDs = append(orderIDs, record.OrderID)
	}
	return s.SyncOrders(ctx, orderIDs), nil
}

// fail records the error on the tracking record and returns a failure
// result. Store write failures are folded into the result error.
func (s *Sync) fail(ctx context.Context, record Record, cause error) Result {
	record.LastError = cause.Error()
	if err := s.store.Put(ctx, record); err != nil {
		cause = errors.Join(cause, err)
	}
	return Result{OrderID: record.OrderID, Err: cause}
}

// firstPackage extracts the first shipment's first package and counts the
// packages that are dropped by that simplification.
func firstPackage(detail fulfillment.OrderDetail) (trackingNumber, carrier string, extra int, ok bool) {
	total := 0
	for _, shipment := range detail.Shipments {
		total += len(shipment.Packages)
	}
	for _, shipment := range detail.Shipments {
		if len(shipment.Packages) == 0 {
			continue
		}
		pkg := shipment.Packages[0]
		if pkg.TrackingNumber == "" {
			continue
		}
		return pkg.TrackingNumber, pkg.CarrierCode, total - 1, true
	}
	return "", "", 0, false
}
