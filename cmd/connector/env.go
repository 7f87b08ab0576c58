package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"shopbridge/internal/fulfillment"
	"shopbridge/internal/routing"
)

// loadTransformerConfig reads SKU mapping and transform policy from env.
// SKU_MAPPINGS is a comma-separated list of source=target pairs, e.g.
// "TT-RED-L=AMZN-RED-L,TT-BLUE-M=AMZN-BLUE-M". Malformed pairs are logged
// and skipped rather than failing startup.
func loadTransformerConfig() routing.TransformerConfig {
	cfg := routing.TransformerConfig{
		SKUMappings: parseSKUMappings(os.Getenv("SKU_MAPPINGS")),
	}

	switch speed := strings.TrimSpace(os.Getenv("DEFAULT_SHIPPING_SPEED")); speed {
	case "":
	case string(fulfillment.SpeedStandard), string(fulfillment.SpeedExpedited), string(fulfillment.SpeedPriority):
		cfg.DefaultShippingSpeed = fulfillment.ShippingSpeed(speed)
	default:
		log.Printf("DEFAULT_SHIPPING_SPEED %q not recognized, using Standard", speed)
	}

	switch policy := strings.TrimSpace(os.Getenv("DEFAULT_FULFILLMENT_POLICY")); policy {
	case "":
	case string(fulfillment.PolicyFillOrKill), string(fulfillment.PolicyFillAll), string(fulfillment.PolicyFillAllAvailable):
		cfg.DefaultFulfillmentPolicy = fulfillment.Policy(policy)
	default:
		log.Printf("DEFAULT_FULFILLMENT_POLICY %q not recognized, leaving unset", policy)
	}

	cfg.IncludeItemPrices = envBool("INCLUDE_ITEM_PRICES")
	cfg.IncludeOrderComment = envBool("INCLUDE_ORDER_COMMENT")

	if emails := strings.TrimSpace(os.Getenv("NOTIFICATION_EMAILS")); emails != "" {
		for _, email := range strings.Split(emails, ",") {
			if email = strings.TrimSpace(email); email != "" {
				cfg.NotificationEmails = append(cfg.NotificationEmails, email)
			}
		}
	}

	return cfg
}

func parseSKUMappings(raw string) map[string]string {
	mappings := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		src, dst, ok := strings.Cut(pair, "=")
		src, dst = strings.TrimSpace(src), strings.TrimSpace(dst)
		if !ok || src == "" || dst == "" {
			log.Printf("SKU_MAPPINGS entry %q malformed, skipping", pair)
			continue
		}
		mappings[src] = dst
	}
	return mappings
}

func envBool(name string) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("%s: %v", name, err)
		return false
	}
	return val
}
