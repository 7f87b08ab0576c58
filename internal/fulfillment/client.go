package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrDuplicateOrder signals the provider already holds an order with the
// same seller fulfillment order id.
var ErrDuplicateOrder = errors.New("fulfillment order already exists")

// ErrUnknownOrder signals the provider has no order with the given id.
var ErrUnknownOrder = errors.New("fulfillment order not found")

// Client is the slice of the fulfillment provider this system consumes.
type Client interface {
	CreateFulfillmentOrder(ctx context.Context, request OrderRequest) error
	GetFulfillmentOrder(ctx context.Context, fulfillmentOrderID string) (OrderDetail, error)
	GetInventorySummaries(ctx context.Context, skus []string) ([]InventorySummary, error)
}

// NewInMemoryClient constructs an in-memory fulfillment client.
func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{
		orders:    make(map[string]OrderRequest),
		details:   make(map[string]OrderDetail),
		inventory: make(map[string]Quantities),
	}
}

// InMemoryClient tracks created fulfillment orders and serves inventory
// from memory.
type InMemoryClient struct {
	mu        sync.Mutex
	orders    map[string]OrderRequest
	details   map[string]OrderDetail
	inventory map[string]Quantities

	// FailCreate, when set, is returned from CreateFulfillmentOrder.
	FailCreate error
	// FailDetail, when set, is returned from GetFulfillmentOrder.
	FailDetail error
	// FailInventory, when set, is returned from GetInventorySummaries.
	FailInventory error

	createCalls    int
	inventoryCalls int
}

// SetInventory sets the quantity breakdown served for a SKU.
func (c *InMemoryClient) SetInventory(sku string, quantities Quantities) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inventory[sku] = quantities
}

// MarkShipped records a completed single-package shipment for an order so
// tracking sync can pick it up.
func (c *InMemoryClient) MarkShipped(fulfillmentOrderID, trackingNumber, carrier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.details[fulfillmentOrderID] = OrderDetail{
		SellerFulfillmentOrderID: fulfillmentOrderID,
		Status:                   OrderComplete,
		Shipments: []Shipment{{
			ShipmentID: uuid.NewString(),
			Status:     "SHIPPED",
			Packages: []Package{{
				PackageNumber:  1,
				TrackingNumber: trackingNumber,
				CarrierCode:    carrier,
			}},
		}},
	}
}

// SetOrderDetail overrides the detail served for an order.
func (c *InMemoryClient) SetOrderDetail(detail OrderDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.details[detail.SellerFulfillmentOrderID] = detail
}

func (c *InMemoryClient) CreateFulfillmentOrder(ctx context.Context, request OrderRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls++
	if c.FailCreate != nil {
		return c.FailCreate
	}
	if _, ok := c.orders[request.SellerFulfillmentOrderID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, request.SellerFulfillmentOrderID)
	}
	c.orders[request.SellerFulfillmentOrderID] = request
	if _, ok := c.details[request.SellerFulfillmentOrderID]; !ok {
		c.details[request.SellerFulfillmentOrderID] = OrderDetail{
			SellerFulfillmentOrderID: request.SellerFulfillmentOrderID,
			Status:                   OrderReceived,
		}
	}
	return nil
}

func (c *InMemoryClient) GetFulfillmentOrder(ctx context.Context, fulfillmentOrderID string) (OrderDetail, error) {
	if err := ctx.Err(); err != nil {
		return OrderDetail{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailDetail != nil {
		return OrderDetail{}, c.FailDetail
	}
	detail, ok := c.details[fulfillmentOrderID]
	if !ok {
		return OrderDetail{}, fmt.Errorf("%w: %s", ErrUnknownOrder, fulfillmentOrderID)
	}
	return detail, nil
}

func (c *InMemoryClient) GetInventorySummaries(ctx context.Context, skus []string) ([]InventorySummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inventoryCalls++
	if c.FailInventory != nil {
		return nil, c.FailInventory
	}
	var summaries []InventorySummary
	for _, sku := range skus {
		if quantities, ok := c.inventory[sku]; ok {
			summaries = append(summaries, InventorySummary{SKU: sku, Quantities: quantities})
		}
	}
	return summaries, nil
}

// CreatedOrder returns a created order request by id, if any.
func (c *InMemoryClient) CreatedOrder(fulfillmentOrderID string) (OrderRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	request, ok := c.orders[fulfillmentOrderID]
	return request, ok
}

// CreateCalls reports how many order creations were attempted.
func (c *InMemoryClient) CreateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createCalls
}

// InventoryCalls reports how many inventory lookups were made.
func (c *InMemoryClient) InventoryCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inventoryCalls
}
