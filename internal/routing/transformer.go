package routing

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"shopbridge/internal/fulfillment"
)

// fulfillmentOrderPrefix namespaces external order ids at the provider so
// they cannot collide with ids from other sales channels.
const fulfillmentOrderPrefix = "TT-"

// maxCommentLength is the provider's hard limit on the displayable order
// comment.
const maxCommentLength = 1000

// TransformerConfig is the transformer's policy, resolved once at
// construction.
type TransformerConfig struct {
	// SKUMappings maps marketplace SKUs onto provider SKUs. Unmapped SKUs
	// pass through unchanged with a warning.
	SKUMappings map[string]string
	// DefaultShippingSpeed applies when neither the shipping-type hint nor
	// the delivery option name resolves a tier. Defaults to Standard.
	DefaultShippingSpeed fulfillment.ShippingSpeed
	// DefaultFulfillmentPolicy is attached to every request when set.
	DefaultFulfillmentPolicy fulfillment.Policy
	// IncludeItemPrices attaches per-item declared values.
	IncludeItemPrices bool
	// IncludeOrderComment synthesizes a comment from buyer message and
	// seller note.
	IncludeOrderComment bool
	// NotificationEmails are attached to every created order.
	NotificationEmails []string
}

// TransformResult carries the outcome of transforming one normalized order.
type TransformResult struct {
	Success  bool
	Errors   []string
	Warnings []string
	Request  *fulfillment.OrderRequest
}

// Transformer maps normalized orders into the fulfillment provider's request
// shape. It is deterministic and side-effect-free apart from SKU-mapping
// table edits via AddSKUMapping/RemoveSKUMapping.
type Transformer struct {
	mu       sync.Mutex
	mappings map[string]string
	cfg      TransformerConfig
	now      func() time.Time
}

// NewTransformer constructs a Transformer owning a copy of the mapping table.
func NewTransformer(cfg TransformerConfig) *Transformer {
	if cfg.DefaultShippingSpeed == "" {
		cfg.DefaultShippingSpeed = fulfillment.SpeedStandard
	}
	mappings := make(map[string]string, len(cfg.SKUMappings))
	for src, dst := range cfg.SKUMappings {
		mappings[src] = dst
	}
	return &Transformer{
		mappings: mappings,
		cfg:      cfg,
		now:      time.Now,
	}
}

// AddSKUMapping adds or replaces a source-to-target SKU pair.
func (t *Transformer) AddSKUMapping(sourceSKU, targetSKU string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mappings[sourceSKU] = targetSKU
}

// RemoveSKUMapping deletes a source SKU from the table.
func (t *Transformer) RemoveSKUMapping(sourceSKU string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.mappings, sourceSKU)
}

// TransformOrder maps a normalized order and address into a provider order
// request. Zero post-mapping items is a hard failure.
func (t *Transformer) TransformOrder(order *NormalizedOrder, address *fulfillment.DestinationAddress) TransformResult {
	var result TransformResult
	if order == nil || address == nil {
		result.Errors = append(result.Errors, "normalized order and address are required")
		return result
	}

	var items []fulfillment.RequestItem
	for i, item := range order.Items {
		if item.SKU == "" || item.Quantity < 1 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("items[%d] skipped: missing sku or non-positive quantity", i))
			continue
		}

		sku, mapped := t.mapSKU(item.SKU)
		if !mapped {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("items[%d].sku %q has no mapping, passing through unchanged", i, item.SKU))
		}

		requestItem := fulfillment.RequestItem{
			SellerSKU:              sku,
			FulfillmentOrderItemID: order.ID + "-" + strconv.Itoa(i+1),
			Quantity:               item.Quantity,
		}
		if t.cfg.IncludeItemPrices && item.UnitPrice.IsPositive() {
			requestItem.PerUnitDeclaredValue = &fulfillment.Money{
				CurrencyCode: item.Currency,
				Amount:       item.UnitPrice,
			}
		}
		items = append(items, requestItem)
	}

	if len(items) == 0 {
		result.Errors = append(result.Errors, "no transformable items after SKU mapping")
		return result
	}

	speed, speedWarning := t.inferShippingSpeed(order.ShippingType, order.DeliveryOptionName)
	if speedWarning != "" {
		result.Warnings = append(result.Warnings, speedWarning)
	}

	request := &fulfillment.OrderRequest{
		SellerFulfillmentOrderID: fulfillmentOrderPrefix + order.ID,
		DisplayableOrderID:       order.ID,
		DisplayableOrderDate:     t.now().UTC(),
		ShippingSpeedCategory:    speed,
		FulfillmentPolicy:        t.cfg.DefaultFulfillmentPolicy,
		Destination:              *address,
		Items:                    items,
	}
	if t.cfg.IncludeOrderComment {
		request.DisplayableOrderComment = buildOrderComment(order.BuyerMessage, order.SellerNote)
	}
	if len(t.cfg.NotificationEmails) > 0 {
		request.NotificationEmails = append([]string(nil), t.cfg.NotificationEmails...)
	}

	result.Success = true
	result.Request = request
	return result
}

func (t *Transformer) mapSKU(sku string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if target, ok := t.mappings[sku]; ok {
		return target, true
	}
	return sku, false
}

// inferShippingSpeed resolves a shipping tier. The explicit shipping-type
// hint wins over the free-text delivery-option heuristic; absent both, the
// configured default applies.
func (t *Transformer) inferShippingSpeed(hint, deliveryOption string) (fulfillment.ShippingSpeed, string) {
	if hint != "" {
		if speed, ok := speedFromText(hint); ok {
			return speed, ""
		}
	}
	if deliveryOption != "" {
		if speed, ok := speedFromText(deliveryOption); ok {
			return speed, ""
		}
		return t.cfg.DefaultShippingSpeed,
			fmt.Sprintf("delivery option %q did not match a shipping tier, using %s",
				deliveryOption, t.cfg.DefaultShippingSpeed)
	}
	return t.cfg.DefaultShippingSpeed, ""
}

func speedFromText(text string) (fulfillment.ShippingSpeed, bool) {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "express"), strings.Contains(lowered, "expedited"):
		return fulfillment.SpeedExpedited, true
	case strings.Contains(lowered, "priority"), strings.Contains(lowered, "next"):
		return fulfillment.SpeedPriority, true
	case strings.Contains(lowered, "standard"), strings.Contains(lowered, "economy"):
		return fulfillment.SpeedStandard, true
	}
	return "", false
}

// buildOrderComment joins the buyer message and seller note, truncating to
// the provider's 1000-character contract with a trailing ellipsis.
func buildOrderComment(buyerMessage, sellerNote string) string {
	var parts []string
	if buyerMessage != "" {
		parts = append(parts, buyerMessage)
	}
	if sellerNote != "" {
		parts = append(parts, sellerNote)
	}
	comment := strings.Join(parts, " | ")
	if len(comment) > maxCommentLength {
		// Cut on a rune boundary so the result stays valid UTF-8.
		cut := maxCommentLength - 3
		for cut > 0 && !utf8.RuneStart(comment[cut]) {
			cut--
		}
		comment = comment[:cut] + "..."
	}
	return comment
}
