package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPClient talks to the fulfillment provider's API over HTTP.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient constructs an HTTP fulfillment client. A zero timeout
// falls back to 30 seconds.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type wireMoney struct {
	CurrencyCode string `json:"currencyCode"`
	Value        string `json:"value"`
}

type wireRequestItem struct {
	SellerSKU                    string     `json:"sellerSku"`
	SellerFulfillmentOrderItemID string     `json:"sellerFulfillmentOrderItemId"`
	Quantity                     int        `json:"quantity"`
	PerUnitDeclaredValue         *wireMoney `json:"perUnitDeclaredValue,omitempty"`
}

type wireDestination struct {
	Name          string `json:"name"`
	AddressLine1  string `json:"addressLine1"`
	AddressLine2  string `json:"addressLine2,omitempty"`
	City          string `json:"city"`
	StateOrRegion string `json:"stateOrRegion,omitempty"`
	PostalCode    string `json:"postalCode"`
	CountryCode   string `json:"countryCode"`
	Phone         string `json:"phone,omitempty"`
}

func (c *HTTPClient) CreateFulfillmentOrder(ctx context.Context, request OrderRequest) error {
	body := map[string]any{
		"sellerFulfillmentOrderId": request.SellerFulfillmentOrderID,
		"displayableOrderId":       request.DisplayableOrderID,
		"displayableOrderDate":     request.DisplayableOrderDate.UTC().Format(time.RFC3339),
		"shippingSpeedCategory":    string(request.ShippingSpeedCategory),
		"destinationAddress": wireDestination{
			Name:          request.Destination.Name,
			AddressLine1:  request.Destination.AddressLine1,
			AddressLine2:  request.Destination.AddressLine2,
			City:          request.Destination.City,
			StateOrRegion: request.Destination.StateOrRegion,
			PostalCode:    request.Destination.PostalCode,
			CountryCode:   request.Destination.CountryCode,
			Phone:         request.Destination.Phone,
		},
	}
	if request.DisplayableOrderComment != "" {
		body["displayableOrderComment"] = request.DisplayableOrderComment
	}
	if request.FulfillmentPolicy != "" {
		body["fulfillmentPolicy"] = string(request.FulfillmentPolicy)
	}
	if len(request.NotificationEmails) > 0 {
		body["notificationEmails"] = request.NotificationEmails
	}

	items := make([]wireRequestItem, 0, len(request.Items))
	for _, item := range request.Items {
		wi := wireRequestItem{
			SellerSKU:                    item.SellerSKU,
			SellerFulfillmentOrderItemID: item.FulfillmentOrderItemID,
			Quantity:                     item.Quantity,
		}
		if item.PerUnitDeclaredValue != nil {
			wi.PerUnitDeclaredValue = &wireMoney{
				CurrencyCode: item.PerUnitDeclaredValue.CurrencyCode,
				Value:        item.PerUnitDeclaredValue.Amount.StringFixed(2),
			}
		}
		items = append(items, wi)
	}
	body["items"] = items

	return c.post(ctx, "/fulfillmentOrders", body, nil)
}

func (c *HTTPClient) GetFulfillmentOrder(ctx context.Context, fulfillmentOrderID string) (OrderDetail, error) {
	var payload struct {
		FulfillmentOrder struct {
			SellerFulfillmentOrderID string `json:"sellerFulfillmentOrderId"`
			FulfillmentOrderStatus   string `json:"fulfillmentOrderStatus"`
		} `json:"fulfillmentOrder"`
		FulfillmentShipments []struct {
			AmazonShipmentID string `json:"amazonShipmentId"`
			Status           string `json:"fulfillmentShipmentStatus"`
			Packages         []struct {
				PackageNumber  int    `json:"packageNumber"`
				TrackingNumber string `json:"trackingNumber"`
				CarrierCode    string `json:"carrierCode"`
			} `json:"fulfillmentShipmentPackage"`
		} `json:"fulfillmentShipments"`
	}

	path := "/fulfillmentOrders/" + url.PathEscape(fulfillmentOrderID)
	if err := c.get(ctx, path, nil, &payload); err != nil {
		return OrderDetail{}, err
	}

	detail := OrderDetail{
		SellerFulfillmentOrderID: payload.FulfillmentOrder.SellerFulfillmentOrderID,
		Status:                   OrderStatus(payload.FulfillmentOrder.FulfillmentOrderStatus),
	}
	for _, ws := range payload.FulfillmentShipments {
		shipment := Shipment{ShipmentID: ws.AmazonShipmentID, Status: ws.Status}
		for _, wp := range ws.Packages {
			shipment.Packages = append(shipment.Packages, Package{
				PackageNumber:  wp.PackageNumber,
				TrackingNumber: wp.TrackingNumber,
				CarrierCode:    wp.CarrierCode,
			})
		}
		detail.Shipments = append(detail.Shipments, shipment)
	}
	return detail, nil
}

func (c *HTTPClient) GetInventorySummaries(ctx context.Context, skus []string) ([]InventorySummary, error) {
	params := url.Values{}
	params.Set("sellerSkus", strings.Join(skus, ","))

	var payload struct {
		InventorySummaries []struct {
			SellerSKU        string `json:"sellerSku"`
			InventoryDetails struct {
				FulfillableQuantity      int `json:"fulfillableQuantity"`
				InboundWorkingQuantity   int `json:"inboundWorkingQuantity"`
				InboundShippedQuantity   int `json:"inboundShippedQuantity"`
				InboundReceivingQuantity int `json:"inboundReceivingQuantity"`
				ReservedQuantity         struct {
					TotalReservedQuantity int `json:"totalReservedQuantity"`
				} `json:"reservedQuantity"`
				UnfulfillableQuantity struct {
					TotalUnfulfillableQuantity int `json:"totalUnfulfillableQuantity"`
				} `json:"unfulfillableQuantity"`
			} `json:"inventoryDetails"`
			TotalQuantity int `json:"totalQuantity"`
		} `json:"inventorySummaries"`
	}
	if err := c.get(ctx, "/inventorySummaries", params, &payload); err != nil {
		return nil, err
	}

	summaries := make([]InventorySummary, 0, len(payload.InventorySummaries))
	for _, ws := range payload.InventorySummaries {
		summaries = append(summaries, InventorySummary{
			SKU: ws.SellerSKU,
			Quantities: Quantities{
				Fulfillable:      ws.InventoryDetails.FulfillableQuantity,
				InboundWorking:   ws.InventoryDetails.InboundWorkingQuantity,
				InboundShipped:   ws.InventoryDetails.InboundShippedQuantity,
				InboundReceiving: ws.InventoryDetails.InboundReceivingQuantity,
				Reserved:         ws.InventoryDetails.ReservedQuantity.TotalReservedQuantity,
				Unfulfillable:    ws.InventoryDetails.UnfulfillableQuantity.TotalUnfulfillableQuantity,
				Total:            ws.TotalQuantity,
			},
		})
	}
	return summaries, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fulfillment request %s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w (%s)", ErrUnknownOrder, req.URL.Path)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w (%s)", ErrDuplicateOrder, req.URL.Path)
	case resp.StatusCode >= 400:
		return fmt.Errorf("fulfillment request %s: status %d", req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode fulfillment response %s: %w", req.URL.Path, err)
	}
	return nil
}
