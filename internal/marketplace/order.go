package marketplace

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the marketplace lifecycle status of an order.
type OrderStatus string

const (
	StatusUnpaid             OrderStatus = "UNPAID"
	StatusAwaitingShipment   OrderStatus = "AWAITING_SHIPMENT"
	StatusAwaitingCollection OrderStatus = "AWAITING_COLLECTION"
	StatusInTransit          OrderStatus = "IN_TRANSIT"
	StatusDelivered          OrderStatus = "DELIVERED"
	StatusCompleted          OrderStatus = "COMPLETED"
	StatusCancelled          OrderStatus = "CANCELLED"
)

// Address is the recipient address as the marketplace reports it.
type Address struct {
	Name         string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
}

// LineItem is one purchased product line on an order.
type LineItem struct {
	ProductID string
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Currency  string
}

// Payment holds the order's payment totals.
type Payment struct {
	Total    decimal.Decimal
	Currency string
}

// Order is a raw marketplace order. It is read-only input: the marketplace
// owns its lifecycle and this system never mutates it.
type Order struct {
	ID                 string
	Status             OrderStatus
	Recipient          Address
	Items              []LineItem
	Payment            Payment
	BuyerMessage       string
	SellerNote         string
	ShippingType       string
	DeliveryOptionName string
	CreatedAt          time.Time
}

// Page is one page of an order listing.
type Page struct {
	Orders        []Order
	More          bool
	NextPageToken string
}

// ListQuery selects orders for a listing call.
type ListQuery struct {
	Status    OrderStatus
	PageSize  int
	PageToken string
}

// TrackingUpdate is the tracking information pushed back to the marketplace.
type TrackingUpdate struct {
	OrderID        string
	TrackingNumber string
	CarrierName    string
}
