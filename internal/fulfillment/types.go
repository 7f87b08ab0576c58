package fulfillment

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShippingSpeed is the provider's shipping-speed category.
type ShippingSpeed string

const (
	SpeedStandard  ShippingSpeed = "Standard"
	SpeedExpedited ShippingSpeed = "Expedited"
	SpeedPriority  ShippingSpeed = "Priority"
)

// Policy controls how the provider handles partially fulfillable orders.
type Policy string

const (
	PolicyFillOrKill       Policy = "FillOrKill"
	PolicyFillAll          Policy = "FillAll"
	PolicyFillAllAvailable Policy = "FillAllAvailable"
)

// Money is a currency amount in the provider's vocabulary.
type Money struct {
	CurrencyCode string
	Amount       decimal.Decimal
}

// DestinationAddress is the delivery address in the provider's schema.
type DestinationAddress struct {
	Name          string
	AddressLine1  string
	AddressLine2  string
	City          string
	StateOrRegion string
	PostalCode    string
	CountryCode   string
	Phone         string
}

// RequestItem is one line of a fulfillment order request.
type RequestItem struct {
	SellerSKU              string
	FulfillmentOrderItemID string
	Quantity               int
	PerUnitDeclaredValue   *Money
}

// OrderRequest asks the provider to pick, pack, and ship a set of items.
// It is built once per routing attempt and never mutated; a failed creation
// requires re-transformation from scratch.
type OrderRequest struct {
	SellerFulfillmentOrderID string
	DisplayableOrderID       string
	DisplayableOrderDate     time.Time
	DisplayableOrderComment  string
	ShippingSpeedCategory    ShippingSpeed
	FulfillmentPolicy        Policy
	Destination              DestinationAddress
	Items                    []RequestItem
	NotificationEmails       []string
}

// OrderStatus is the provider-side status of a fulfillment order.
type OrderStatus string

const (
	OrderReceived      OrderStatus = "Received"
	OrderPlanning      OrderStatus = "Planning"
	OrderProcessing    OrderStatus = "Processing"
	OrderComplete      OrderStatus = "Complete"
	OrderCancelled     OrderStatus = "Cancelled"
	OrderUnfulfillable OrderStatus = "Unfulfillable"
)

// Package is one shipped parcel with its tracking number.
type Package struct {
	PackageNumber  int
	TrackingNumber string
	CarrierCode    string
}

// Shipment groups the packages shipped together for an order.
type Shipment struct {
	ShipmentID string
	Status     string
	Packages   []Package
}

// OrderDetail is the provider's view of a previously created order.
type OrderDetail struct {
	SellerFulfillmentOrderID string
	Status                   OrderStatus
	Shipments                []Shipment
}

// Quantities is the provider's per-SKU quantity breakdown.
type Quantities struct {
	Fulfillable      int
	InboundWorking   int
	InboundShipped   int
	InboundReceiving int
	Reserved         int
	Unfulfillable    int
	Total            int
}

// InventorySummary is one SKU's inventory snapshot at the provider.
type InventorySummary struct {
	SKU        string
	Quantities Quantities
}
