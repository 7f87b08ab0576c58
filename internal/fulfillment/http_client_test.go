package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestHTTPClient_CreateFulfillmentOrder(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/fulfillmentOrders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		json.NewDecoder(r.Body).Decode(&body)
	}))
	t.Cleanup(srv.Close)

	client := NewHTTPClient(srv.URL, "secret", 0)
	amount := decimal.NewFromFloat(19.99)
	err := client.CreateFulfillmentOrder(context.Background(), OrderRequest{
		SellerFulfillmentOrderID: "TT-ORDER-1",
		DisplayableOrderID:       "ORDER-1",
		DisplayableOrderDate:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		DisplayableOrderComment:  "gift wrap",
		ShippingSpeedCategory:    SpeedExpedited,
		FulfillmentPolicy:        PolicyFillOrKill,
		Destination: DestinationAddress{
			Name:         "Jane Buyer",
			AddressLine1: "123 Main St",
			City:         "Springfield",
			PostalCode:   "62701",
			CountryCode:  "US",
		},
		Items: []RequestItem{{
			SellerSKU:              "AMZN-RED-L",
			FulfillmentOrderItemID: "ORDER-1-1",
			Quantity:               2,
			PerUnitDeclaredValue:   &Money{CurrencyCode: "USD", Amount: amount},
		}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if body["sellerFulfillmentOrderId"] != "TT-ORDER-1" {
		t.Fatalf("unexpected order id %v", body["sellerFulfillmentOrderId"])
	}
	if body["shippingSpeedCategory"] != "Expedited" || body["fulfillmentPolicy"] != "FillOrKill" {
		t.Fatalf("unexpected shipping fields: %v %v", body["shippingSpeedCategory"], body["fulfillmentPolicy"])
	}
	items := body["items"].([]any)
	item := items[0].(map[string]any)
	if item["sellerSku"] != "AMZN-RED-L" {
		t.Fatalf("unexpected item sku %v", item["sellerSku"])
	}
	value := item["perUnitDeclaredValue"].(map[string]any)
	if value["value"] != "19.99" || value["currencyCode"] != "USD" {
		t.Fatalf("unexpected declared value %v", value)
	}
}

func TestHTTPClient_CreateDuplicate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	t.Cleanup(srv.Close)

	client := NewHTTPClient(srv.URL, "secret", 0)
	err := client.CreateFulfillmentOrder(context.Background(), OrderRequest{SellerFulfillmentOrderID: "TT-DUP"})
	if !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("expected ErrDuplicateOrder, got %v", err)
	}
}

func TestHTTPClient_GetFulfillmentOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fulfillmentOrders/TT-ORDER-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"fulfillmentOrder": map[string]any{
				"sellerFulfillmentOrderId": "TT-ORDER-1",
				"fulfillmentOrderStatus":   "Complete",
			},
			"fulfillmentShipments": []map[string]any{{
				"amazonShipmentId":          "SHIP-1",
				"fulfillmentShipmentStatus": "SHIPPED",
				"fulfillmentShipmentPackage": []map[string]any{{
					"packageNumber":  1,
					"trackingNumber": "1Z999",
					"carrierCode":    "UPS",
				}},
			}},
		})
	}))
	t.Cleanup(srv.Close)

	client := NewHTTPClient(srv.URL, "secret", 0)
	detail, err := client.GetFulfillmentOrder(context.Background(), "TT-ORDER-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Status != OrderComplete {
		t.Fatalf("unexpected status %s", detail.Status)
	}
	if len(detail.Shipments) != 1 || len(detail.Shipments[0].Packages) != 1 {
		t.Fatalf("unexpected shipments %+v", detail.Shipments)
	}
	if detail.Shipments[0].Packages[0].TrackingNumber != "1Z999" {
		t.Fatalf("unexpected tracking %+v", detail.Shipments[0].Packages[0])
	}
}

func TestHTTPClient_GetFulfillmentOrderNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client := NewHTTPClient(srv.URL, "secret", 0)
	if _, err := client.GetFulfillmentOrder(context.Background(), "TT-GHOST"); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("expected ErrUnknownOrder, got %v", err)
	}
}

func TestHTTPClient_GetInventorySummaries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sellerSkus"); got != "SKU-A,SKU-B" {
			t.Errorf("unexpected skus %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"inventorySummaries": []map[string]any{{
				"sellerSku": "SKU-A",
				"inventoryDetails": map[string]any{
					"fulfillableQuantity":      7,
					"inboundWorkingQuantity":   1,
					"inboundShippedQuantity":   2,
					"inboundReceivingQuantity": 3,
					"reservedQuantity":         map[string]any{"totalReservedQuantity": 4},
					"unfulfillableQuantity":    map[string]any{"totalUnfulfillableQuantity": 5},
				},
				"totalQuantity": 22,
			}},
		})
	}))
	t.Cleanup(srv.Close)

	client := NewHTTPClient(srv.URL, "secret", 0)
	summaries, err := client.GetInventorySummaries(context.Background(), []string{"SKU-A", "SKU-B"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	q := summaries[0].Quantities
	if q.Fulfillable != 7 || q.InboundWorking != 1 || q.InboundShipped != 2 ||
		q.InboundReceiving != 3 || q.Reserved != 4 || q.Unfulfillable != 5 || q.Total != 22 {
		t.Fatalf("unexpected quantities %+v", q)
	}
}
