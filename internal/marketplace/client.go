package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrOrderNotFound signals the marketplace has no order with the given id.
var ErrOrderNotFound = errors.New("order not found")

// Client is the slice of the source marketplace this system consumes.
type Client interface {
	GetOrderDetail(ctx context.Context, orderID string) (Order, error)
	GetOrders(ctx context.Context, query ListQuery) (Page, error)
	GetPackageID(ctx context.Context, orderID string) (string, error)
	UpdateTrackingInfo(ctx context.Context, packageID string, update TrackingUpdate) error
}

// NewInMemoryClient constructs an in-memory marketplace client.
func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{
		orders:   make(map[string]Order),
		packages: make(map[string]string),
		tracking: make(map[string]TrackingUpdate),
	}
}

// InMemoryClient serves orders from memory and records tracking pushes.
type InMemoryClient struct {
	mu       sync.Mutex
	orders   map[string]Order
	sequence []string
	packages map[string]string
	tracking map[string]TrackingUpdate

	// FailTracking, when set, is returned from UpdateTrackingInfo.
	FailTracking error
	// FailList, when set, is returned from GetOrders.
	FailList error

	trackingCalls int
}

// AddOrder registers an order so it can be fetched and listed.
func (c *InMemoryClient) AddOrder(order Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.orders[order.ID]; !ok {
		c.sequence = append(c.sequence, order.ID)
	}
	c.orders[order.ID] = order
}

// SetPackageID registers the package id for an order.
func (c *InMemoryClient) SetPackageID(orderID, packageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packages[orderID] = packageID
}

func (c *InMemoryClient) GetOrderDetail(ctx context.Context, orderID string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	order, ok := c.orders[orderID]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (c *InMemoryClient) GetOrders(ctx context.Context, query ListQuery) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailList != nil {
		return Page{}, c.FailList
	}

	var matched []Order
	for _, id := range c.sequence {
		order := c.orders[id]
		if query.Status == "" || order.Status == query.Status {
			matched = append(matched, order)
		}
	}

	size := query.PageSize
	if size <= 0 {
		size = 50
	}
	start := 0
	if query.PageToken != "" {
		if _, err := fmt.Sscanf(query.PageToken, "p%d", &start); err != nil {
			return Page{}, fmt.Errorf("bad page token %q", query.PageToken)
		}
	}
	if start >= len(matched) {
		return Page{}, nil
	}

	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	page := Page{Orders: matched[start:end], More: end < len(matched)}
	if page.More {
		page.NextPageToken = fmt.Sprintf("p%d", end)
	}
	return page, nil
}

func (c *InMemoryClient) GetPackageID(ctx context.Context, orderID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	packageID, ok := c.packages[orderID]
	if !ok {
		return "", fmt.Errorf("no package for order %s", orderID)
	}
	return packageID, nil
}

func (c *InMemoryClient) UpdateTrackingInfo(ctx context.Context, packageID string, update TrackingUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trackingCalls++
	if c.FailTracking != nil {
		return c.FailTracking
	}
	c.tracking[packageID] = update
	return nil
}

// TrackingFor returns the tracking update recorded for a package, if any.
func (c *InMemoryClient) TrackingFor(packageID string) (TrackingUpdate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	update, ok := c.tracking[packageID]
	return update, ok
}

// TrackingCalls reports how many tracking pushes were attempted.
func (c *InMemoryClient) TrackingCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trackingCalls
}
