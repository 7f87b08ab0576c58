package routing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"shopbridge/internal/fulfillment"
	"shopbridge/internal/marketplace"
)

// NormalizedOrder is the validator's output: the same semantic fields as the
// marketplace order with address and monetary fields coerced into canonical
// shapes. Every item has a non-empty SKU and quantity > 0.
type NormalizedOrder struct {
	ID                 string
	Status             marketplace.OrderStatus
	Items              []marketplace.LineItem
	Total              decimal.Decimal
	Currency           string
	BuyerMessage       string
	SellerNote         string
	ShippingType       string
	DeliveryOptionName string
}

// ValidationResult carries the outcome of validating one order. On
// Valid=false the normalized fields are nil.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
	Order    *NormalizedOrder
	Address  *fulfillment.DestinationAddress
}

// Validator normalizes and sanity-checks raw marketplace orders before
// transformation. It is pure: no network calls, deterministic per input.
type Validator struct{}

// NewValidator constructs a Validator.
func NewValidator() *Validator { return &Validator{} }

var routableStatuses = map[marketplace.OrderStatus]bool{
	marketplace.StatusAwaitingShipment:   true,
	marketplace.StatusAwaitingCollection: true,
}

// countryCodes maps common country spellings onto ISO-3166 alpha-2 codes.
var countryCodes = map[string]string{
	"UNITED STATES":  "US",
	"USA":            "US",
	"UNITED KINGDOM": "GB",
	"GREAT BRITAIN":  "GB",
	"CANADA":         "CA",
	"AUSTRALIA":      "AU",
	"GERMANY":        "DE",
	"FRANCE":         "FR",
	"SPAIN":          "ES",
	"ITALY":          "IT",
	"MEXICO":         "MX",
	"JAPAN":          "JP",
}

// ValidateOrder checks that an order is routable and returns its normalized
// form. Violations of hard rules produce one error each; non-fatal gaps
// surface as warnings and do not block success.
func (v *Validator) ValidateOrder(order marketplace.Order) ValidationResult {
	var result ValidationResult

	if order.ID == "" {
		result.Errors = append(result.Errors, "order id is empty")
	}
	if !routableStatuses[order.Status] {
		result.Errors = append(result.Errors,
			fmt.Sprintf("order status %q is not eligible for routing", order.Status))
	}

	address, addrErrs, addrWarnings := v.normalizeAddress(order.Recipient)
	result.Errors = append(result.Errors, addrErrs...)
	result.Warnings = append(result.Warnings, addrWarnings...)

	if len(order.Items) == 0 {
		result.Errors = append(result.Errors, "order has no items")
	}
	items := make([]marketplace.LineItem, 0, len(order.Items))
	for i, item := range order.Items {
		sku := strings.TrimSpace(item.SKU)
		if sku == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("items[%d].sku is empty", i))
			continue
		}
		if item.Quantity < 1 {
			result.Errors = append(result.Errors,
				fmt.Sprintf("items[%d].quantity must be >= 1, got %d", i, item.Quantity))
			continue
		}
		item.SKU = sku
		items = append(items, item)
	}

	if order.ShippingType != "" && !knownShippingHint(order.ShippingType) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("unrecognized shipping type hint %q", order.ShippingType))
	}

	if len(result.Errors) > 0 {
		return result
	}

	result.Valid = true
	result.Address = address
	result.Order = &NormalizedOrder{
		ID:                 order.ID,
		Status:             order.Status,
		Items:              items,
		Total:              order.Payment.Total,
		Currency:           strings.ToUpper(strings.TrimSpace(order.Payment.Currency)),
		BuyerMessage:       strings.TrimSpace(order.BuyerMessage),
		SellerNote:         strings.TrimSpace(order.SellerNote),
		ShippingType:       strings.TrimSpace(order.ShippingType),
		DeliveryOptionName: strings.TrimSpace(order.DeliveryOptionName),
	}
	return result
}

func (v *Validator) normalizeAddress(addr marketplace.Address) (*fulfillment.DestinationAddress, []string, []string) {
	var errs, warnings []string

	name := strings.TrimSpace(addr.Name)
	line1 := strings.TrimSpace(addr.AddressLine1)
	city := strings.TrimSpace(addr.City)
	postal := strings.TrimSpace(addr.PostalCode)

	if name == "" {
		errs = append(errs, "recipient name is empty")
	}
	if line1 == "" {
		errs = append(errs, "recipient address line 1 is empty")
	}
	if city == "" {
		errs = append(errs, "recipient city is empty")
	}
	if postal == "" {
		errs = append(errs, "recipient postal code is empty")
	}

	country, ok := normalizeCountry(addr.Country)
	if !ok {
		errs = append(errs, fmt.Sprintf("unrecognized country %q", addr.Country))
	}

	if strings.TrimSpace(addr.Phone) == "" {
		warnings = append(warnings, "recipient phone number is absent")
	}
	if strings.TrimSpace(addr.State) == "" {
		warnings = append(warnings, "recipient state/region is absent")
	}

	if len(errs) > 0 {
		return nil, errs, warnings
	}

	return &fulfillment.DestinationAddress{
		Name:          name,
		AddressLine1:  line1,
		AddressLine2:  strings.TrimSpace(addr.AddressLine2),
		City:          city,
		StateOrRegion: strings.TrimSpace(addr.State),
		PostalCode:    postal,
		CountryCode:   country,
		Phone:         strings.TrimSpace(addr.Phone),
	}, nil, warnings
}

func normalizeCountry(raw string) (string, bool) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", false
	}
	if code, ok := countryCodes[trimmed]; ok {
		return code, true
	}
	if len(trimmed) == 2 {
		for _, r := range trimmed {
			if r < 'A' || r > 'Z' {
				return "", false
			}
		}
		return trimmed, true
	}
	return "", false
}

func knownShippingHint(hint string) bool {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "standard", "economy", "express", "expedited", "priority", "next_day", "next day":
		return true
	}
	return false
}
