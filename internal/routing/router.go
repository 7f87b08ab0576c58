package routing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"shopbridge/internal/fulfillment"
	"shopbridge/internal/inventory"
	"shopbridge/internal/marketplace"
	"shopbridge/internal/observability"
)

// InventoryChecker is the optional capability the router uses for the
// check_inventory stage. Supplying nil at construction skips the stage
// entirely.
type InventoryChecker interface {
	CheckInventoryBatch(ctx context.Context, items []inventory.BatchItem) inventory.BatchResult
}

// RouterConfig is the router's batch policy.
type RouterConfig struct {
	// MaxConcurrentOrders bounds per-chunk fan-out in RouteOrders.
	// Defaults to 5.
	MaxConcurrentOrders int
	// StopOnError aborts remaining chunks once a chunk produced a failure.
	// The zero value continues on error.
	StopOnError bool
	// PageSize controls marketplace listing pages in RoutePendingOrders.
	// Defaults to 50.
	PageSize int
}

func (c RouterConfig) withDefaults() RouterConfig {
	if c.MaxConcurrentOrders <= 0 {
		c.MaxConcurrentOrders = 5
	}
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	return c
}

// Deps are the router's collaborators. Marketplace, Fulfillment, and
// Transformer are required; the rest are optional capabilities.
type Deps struct {
	Marketplace marketplace.Client
	Fulfillment fulfillment.Client
	Transformer *Transformer
	Validator   *Validator
	Inventory   InventoryChecker
	Metrics     *observability.Metrics
	OnResult    func(RoutingResult)
	Logf        func(format string, args ...any)
}

// Router drives one order through fetch, validate, transform, optional
// inventory check, and remote creation. It owns orchestration only; retries
// belong to the remote clients.
type Router struct {
	marketplace marketplace.Client
	fulfillment fulfillment.Client
	validator   *Validator
	transformer *Transformer
	inventory   InventoryChecker
	metrics     *observability.Metrics
	onResult    func(RoutingResult)
	logf        func(format string, args ...any)
	cfg         RouterConfig
}

// NewRouter constructs a Router, failing fast when a required collaborator
// is absent.
func NewRouter(deps Deps, cfg RouterConfig) (*Router, error) {
	if deps.Marketplace == nil {
		return nil, errors.New("routing: marketplace client is required")
	}
	if deps.Fulfillment == nil {
		return nil, errors.New("routing: fulfillment client is required")
	}
	if deps.Transformer == nil {
		return nil, errors.New("routing: transformer is required")
	}
	validator := deps.Validator
	if validator == nil {
		validator = NewValidator()
	}
	logf := deps.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Router{
		marketplace: deps.Marketplace,
		fulfillment: deps.Fulfillment,
		validator:   validator,
		transformer: deps.Transformer,
		inventory:   deps.Inventory,
		metrics:     deps.Metrics,
		onResult:    deps.OnResult,
		logf:        logf,
		cfg:         cfg.withDefaults(),
	}, nil
}

// RouteOrder executes the full pipeline for one order and returns a
// stage-tagged result. It never panics or returns an error: expected
// failures are structured into the result.
func (r *Router) RouteOrder(ctx context.Context, orderID string) RoutingResult {
	result := r.routeOrder(ctx, orderID)
	if r.onResult != nil {
		r.onResult(result)
	}
	return result
}

func (r *Router) routeOrder(ctx context.Context, orderID string) RoutingResult {
	span := r.metrics.Start("route." + string(StageFetch))
	order, err := r.marketplace.GetOrderDetail(ctx, orderID)
	span.End(err)
	if err != nil {
		return failure(orderID, StageFetch, "order_fetch_failed",
			"could not fetch order from marketplace", nil, err)
	}

	validation := r.validator.ValidateOrder(order)
	warnings := validation.Warnings
	if !validation.Valid {
		return failure(orderID, StageValidate, "order_invalid",
			strings.Join(validation.Errors, "; "), warnings, nil)
	}

	transform := r.transformer.TransformOrder(validation.Order, validation.Address)
	warnings = append(warnings, transform.Warnings...)
	if !transform.Success {
		return failure(orderID, StageTransform, "transform_failed",
			strings.Join(transform.Errors, "; "), warnings, nil)
	}
	request := transform.Request

	if r.inventory != nil {
		items := make([]inventory.BatchItem, 0, len(request.Items))
		for _, item := range request.Items {
			items = append(items, inventory.BatchItem{SKU: item.SellerSKU, Quantity: item.Quantity})
		}

		span = r.metrics.Start("route." + string(StageCheckInventory))
		batch := r.inventory.CheckInventoryBatch(ctx, items)
		span.End(nil)

		if insufficient := batch.Insufficient(); len(insufficient) > 0 {
			var shortfalls []string
			for _, check := range insufficient {
				shortfalls = append(shortfalls, fmt.Sprintf("%s: requested %d, available %d",
					check.SKU, check.Requested, check.Available))
			}
			return failure(orderID, StageCheckInventory, "insufficient_inventory",
				strings.Join(shortfalls, "; "), warnings, nil)
		}
		// Unknown inventory state does not block routing the way a
		// confirmed shortfall does; the provider validates on creation.
		for _, check := range batch.Failed() {
			warnings = append(warnings, fmt.Sprintf("inventory state unknown for %s: %v", check.SKU, check.Err))
		}
		for _, check := range batch.LowStock() {
			warnings = append(warnings, fmt.Sprintf("low stock for %s: %d available", check.SKU, check.Available))
		}
	}

	span = r.metrics.Start("route." + string(StageCreateMCF))
	err = r.fulfillment.CreateFulfillmentOrder(ctx, *request)
	span.End(err)
	if err != nil {
		return failure(orderID, StageCreateMCF, "fulfillment_create_failed",
			"fulfillment provider rejected the order", warnings, err)
	}

	result := RoutingResult{
		OrderID:            orderID,
		Success:            true,
		FulfillmentOrderID: request.SellerFulfillmentOrderID,
		Warnings:           warnings,
	}
	if detail, err := r.fulfillment.GetFulfillmentOrder(ctx, request.SellerFulfillmentOrderID); err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("post-creation confirmation fetch failed: %v", err))
	} else {
		result.Confirmed = &detail
	}
	return result
}

// RouteOrders processes ids in chunks of MaxConcurrentOrders, each chunk
// fully concurrent. With StopOnError set, a chunk containing any failure
// aborts the remaining chunks; results gathered so far are returned.
func (r *Router) RouteOrders(ctx context.Context, orderIDs []string) []RoutingResult {
	var results []RoutingResult
	size := r.cfg.MaxConcurrentOrders

	for start := 0; start < len(orderIDs); start += size {
		end := start + size
		if end > len(orderIDs) {
			end = len(orderIDs)
		}
		chunk := orderIDs[start:end]

		chunkResults := make([]RoutingResult, len(chunk))
		var wg sync.WaitGroup
		for i, orderID := range chunk {
			wg.Add(1)
			go func(i int, orderID string) {
				defer wg.Done()
				chunkResults[i] = r.RouteOrder(ctx, orderID)
			}(i, orderID)
		}
		wg.Wait()
		results = append(results, chunkResults...)

		if r.cfg.StopOnError {
			for _, result := range chunkResults {
				if !result.Success {
					r.logf("routing: aborting after failed chunk (order %s: %v)", result.OrderID, result.Err)
					return results
				}
			}
		}
	}
	return results
}

// RoutePendingOrders discovers candidate orders by paging the marketplace
// across the routable statuses, then routes them as a batch.
func (r *Router) RoutePendingOrders(ctx context.Context) ([]RoutingResult, error) {
	var orderIDs []string
	for _, status := range []marketplace.OrderStatus{
		marketplace.StatusAwaitingShipment,
		marketplace.StatusAwaitingCollection,
	} {
		ids, err := r.listOrderIDs(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("list %s orders: %w", status, err)
		}
		orderIDs = append(orderIDs, ids...)
	}
	return r.RouteOrders(ctx, orderIDs), nil
}

func (r *Router) listOrderIDs(ctx context.Context, status marketplace.OrderStatus) ([]string, error) {
	var ids []string
	token := ""
	for {
		span := r.metrics.Start("route.list_orders")
		page, err := r.marketplace.GetOrders(ctx, marketplace.ListQuery{
			Status:    status,
			PageSize:  r.cfg.PageSize,
			PageToken: token,
		})
		span.End(err)
		if err != nil {
			return nil, err
		}
		for _, order := range page.Orders {
			ids = append(ids, order.ID)
		}
		if !page.More {
			return ids, nil
		}
		if page.NextPageToken == "" {
			// Guard against a marketplace response claiming more pages
			// without a token to reach them.
			r.logf("routing: %s listing reported more pages without a token, stopping", status)
			return ids, nil
		}
		token = page.NextPageToken
	}
}
