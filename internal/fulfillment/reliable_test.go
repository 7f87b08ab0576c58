package fulfillment

import (
	"context"
	"errors"
	"testing"
	"time"

	"shopbridge/internal/reliability"
)

type flakyClient struct {
	errs  []error
	calls int
}

func (c *flakyClient) next() error {
	c.calls++
	if c.calls <= len(c.errs) {
		return c.errs[c.calls-1]
	}
	return nil
}

func (c *flakyClient) CreateFulfillmentOrder(_ context.Context, _ OrderRequest) error {
	return c.next()
}

func (c *flakyClient) GetFulfillmentOrder(_ context.Context, id string) (OrderDetail, error) {
	return OrderDetail{SellerFulfillmentOrderID: id, Status: OrderReceived}, c.next()
}

func (c *flakyClient) GetInventorySummaries(_ context.Context, skus []string) ([]InventorySummary, error) {
	summaries := make([]InventorySummary, 0, len(skus))
	for _, sku := range skus {
		summaries = append(summaries, InventorySummary{SKU: sku})
	}
	return summaries, c.next()
}

func noSleepPolicy(maxAttempts int) reliability.RetryPolicy {
	return reliability.RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		Jitter:      func(d time.Duration) time.Duration { return d },
		Sleep:       func(context.Context, time.Duration) error { return nil },
		ShouldRetry: func(error) bool { return true },
	}
}

func TestReliableClient_CreateRetries(t *testing.T) {
	t.Parallel()

	base := &flakyClient{errs: []error{errors.New("fail"), nil}}
	client := NewReliableClient(base, nil, nil, noSleepPolicy(2))

	if err := client.CreateFulfillmentOrder(context.Background(), OrderRequest{}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", base.calls)
	}
}

func TestReliableClient_GetOrderPassesDetailThrough(t *testing.T) {
	t.Parallel()

	base := &flakyClient{}
	client := NewReliableClient(base, nil, nil, noSleepPolicy(1))

	detail, err := client.GetFulfillmentOrder(context.Background(), "TT-ORDER-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.SellerFulfillmentOrderID != "TT-ORDER-1" {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestReliableClient_CircuitOpens(t *testing.T) {
	t.Parallel()

	base := &flakyClient{errs: []error{errors.New("fail"), errors.New("fail")}}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	breaker := reliability.NewCircuitBreaker(reliability.CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Second,
		Now:          func() time.Time { return now },
	})
	policy := reliability.RetryPolicy{
		MaxAttempts: 1,
		ShouldRetry: func(error) bool { return false },
	}
	client := NewReliableClient(base, nil, breaker, policy)

	if err := client.CreateFulfillmentOrder(context.Background(), OrderRequest{}); err == nil {
		t.Fatalf("expected failure")
	}
	if err := client.CreateFulfillmentOrder(context.Background(), OrderRequest{}); !errors.Is(err, reliability.ErrCircuitOpen) {
		t.Fatalf("expected circuit open, got %v", err)
	}
	if base.calls != 1 {
		t.Fatalf("expected 1 base call, got %d", base.calls)
	}
}

func TestReliableClient_LimiterGatesCalls(t *testing.T) {
	t.Parallel()

	base := &flakyClient{}
	limiter := reliability.NewRateLimiter(time.Hour, 1)
	client := NewReliableClient(base, limiter, nil, reliability.RetryPolicy{MaxAttempts: 1})

	if err := client.CreateFulfillmentOrder(context.Background(), OrderRequest{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.CreateFulfillmentOrder(ctx, OrderRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error while rate limited, got %v", err)
	}
	if base.calls != 1 {
		t.Fatalf("expected base untouched when limited, got %d calls", base.calls)
	}
}
