package main

import (
	"testing"

	"shopbridge/internal/fulfillment"
)

func TestParseSKUMappings(t *testing.T) {
	mappings := parseSKUMappings("TT-RED-L=AMZN-RED-L, TT-BLUE-M = AMZN-BLUE-M ,noequals,=dangling,")
	if len(mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %v", mappings)
	}
	if mappings["TT-RED-L"] != "AMZN-RED-L" || mappings["TT-BLUE-M"] != "AMZN-BLUE-M" {
		t.Fatalf("unexpected mappings %v", mappings)
	}
}

func TestParseSKUMappings_Empty(t *testing.T) {
	if got := parseSKUMappings(""); len(got) != 0 {
		t.Fatalf("expected no mappings, got %v", got)
	}
}

func TestLoadTransformerConfig(t *testing.T) {
	t.Setenv("SKU_MAPPINGS", "TT-A=AMZN-A")
	t.Setenv("DEFAULT_SHIPPING_SPEED", "Expedited")
	t.Setenv("DEFAULT_FULFILLMENT_POLICY", "FillAll")
	t.Setenv("INCLUDE_ITEM_PRICES", "true")
	t.Setenv("INCLUDE_ORDER_COMMENT", "1")
	t.Setenv("NOTIFICATION_EMAILS", "ops@example.com, oncall@example.com,")

	cfg := loadTransformerConfig()
	if cfg.SKUMappings["TT-A"] != "AMZN-A" {
		t.Fatalf("unexpected mappings %v", cfg.SKUMappings)
	}
	if cfg.DefaultShippingSpeed != fulfillment.SpeedExpedited {
		t.Fatalf("unexpected speed %q", cfg.DefaultShippingSpeed)
	}
	if cfg.DefaultFulfillmentPolicy != fulfillment.PolicyFillAll {
		t.Fatalf("unexpected policy %q", cfg.DefaultFulfillmentPolicy)
	}
	if !cfg.IncludeItemPrices || !cfg.IncludeOrderComment {
		t.Fatalf("expected both include flags set: %+v", cfg)
	}
	if len(cfg.NotificationEmails) != 2 || cfg.NotificationEmails[0] != "ops@example.com" {
		t.Fatalf("unexpected emails %v", cfg.NotificationEmails)
	}
}

func TestLoadTransformerConfig_InvalidValuesAreIgnored(t *testing.T) {
	t.Setenv("SKU_MAPPINGS", "")
	t.Setenv("DEFAULT_SHIPPING_SPEED", "Teleport")
	t.Setenv("DEFAULT_FULFILLMENT_POLICY", "FillMaybe")
	t.Setenv("INCLUDE_ITEM_PRICES", "not-a-bool")
	t.Setenv("INCLUDE_ORDER_COMMENT", "")
	t.Setenv("NOTIFICATION_EMAILS", "")

	cfg := loadTransformerConfig()
	if cfg.DefaultShippingSpeed != "" || cfg.DefaultFulfillmentPolicy != "" {
		t.Fatalf("expected unrecognized values dropped: %+v", cfg)
	}
	if cfg.IncludeItemPrices || cfg.IncludeOrderComment {
		t.Fatalf("expected include flags unset: %+v", cfg)
	}
	if len(cfg.NotificationEmails) != 0 {
		t.Fatalf("expected no emails, got %v", cfg.NotificationEmails)
	}
}
