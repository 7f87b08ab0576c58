package fulfillment

import (
	"context"

	"shopbridge/internal/reliability"
)

// ReliableClient wraps a Client with retry, rate-limit, and circuit-breaker
// controls. The router deliberately owns no retries of its own; resilience
// for remote creation lives here.
type ReliableClient struct {
	base    Client
	limiter *reliability.RateLimiter
	breaker *reliability.CircuitBreaker
	retry   reliability.RetryPolicy
}

// NewReliableClient constructs a reliability-wrapped fulfillment client.
func NewReliableClient(base Client, limiter *reliability.RateLimiter, breaker *reliability.CircuitBreaker, retry reliability.RetryPolicy) *ReliableClient {
	return &ReliableClient{
		base:    base,
		limiter: limiter,
		breaker: breaker,
		retry:   retry,
	}
}

func (c *ReliableClient) CreateFulfillmentOrder(ctx context.Context, request OrderRequest) error {
	return c.do(ctx, func() error {
		return c.base.CreateFulfillmentOrder(ctx, request)
	})
}

func (c *ReliableClient) GetFulfillmentOrder(ctx context.Context, fulfillmentOrderID string) (OrderDetail, error) {
	var detail OrderDetail
	err := c.do(ctx, func() error {
		var innerErr error
		detail, innerErr = c.base.GetFulfillmentOrder(ctx, fulfillmentOrderID)
		return innerErr
	})
	return detail, err
}

func (c *ReliableClient) GetInventorySummaries(ctx context.Context, skus []string) ([]InventorySummary, error) {
	var summaries []InventorySummary
	err := c.do(ctx, func() error {
		var innerErr error
		summaries, innerErr = c.base.GetInventorySummaries(ctx, skus)
		return innerErr
	})
	return summaries, err
}

func (c *ReliableClient) do(ctx context.Context, fn func() error) error {
	attempt := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if c.breaker != nil {
			return c.breaker.Execute(fn)
		}
		return fn()
	}
	return c.retry.Do(ctx, attempt)
}
