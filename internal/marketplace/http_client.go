package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HTTPClient talks to the marketplace's seller API over HTTP.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient constructs an HTTP marketplace client. A zero timeout
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

type wireAddress struct {
	Name         string `json:"name"`
	Phone        string `json:"phone_number"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"zipcode"`
	Country      string `json:"region"`
}

type wireItem struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"seller_sku"`
	Name      string `json:"product_name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"sale_price"`
	Currency  string `json:"currency"`
}

type wireOrder struct {
	ID                 string      `json:"id"`
	Status             string      `json:"status"`
	Recipient          wireAddress `json:"recipient_address"`
	Items              []wireItem  `json:"line_items"`
	TotalAmount        string      `json:"total_amount"`
	Currency           string      `json:"currency"`
	BuyerMessage       string      `json:"buyer_message"`
	SellerNote         string      `json:"seller_note"`
	ShippingType       string      `json:"shipping_type"`
	DeliveryOptionName string      `json:"delivery_option_name"`
	CreateTime         int64       `json:"create_time"`
}

func (o wireOrder) toOrder() (Order, error) {
	order := Order{
		ID:     o.ID,
		Status: OrderStatus(o.Status),
		Recipient: Address{
			Name:         o.Recipient.Name,
			Phone:        o.Recipient.Phone,
			AddressLine1: o.Recipient.AddressLine1,
			AddressLine2: o.Recipient.AddressLine2,
			City:         o.Recipient.City,
			State:        o.Recipient.State,
			PostalCode:   o.Recipient.PostalCode,
			Country:      o.Recipient.Country,
		},
		BuyerMessage:       o.BuyerMessage,
		SellerNote:         o.SellerNote,
		ShippingType:       o.ShippingType,
		DeliveryOptionName: o.DeliveryOptionName,
	}
	if o.CreateTime > 0 {
		order.CreatedAt = time.Unix(o.CreateTime, 0).UTC()
	}
	if o.TotalAmount != "" {
		total, err := decimal.NewFromString(o.TotalAmount)
		if err != nil {
			return Order{}, fmt.Errorf("order %s total: %w", o.ID, err)
		}
		order.Payment = Payment{Total: total, Currency: o.Currency}
	}
	for _, it := range o.Items {
		item := LineItem{
			ProductID: it.ProductID,
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Currency:  it.Currency,
		}
		if it.UnitPrice != "" {
			price, err := decimal.NewFromString(it.UnitPrice)
			if err != nil {
				return Order{}, fmt.Errorf("order %s item %s price: %w", o.ID, it.SKU, err)
			}
			item.UnitPrice = price
		}
		order.Items = append(order.Items, item)
	}
	return order, nil
}

func (c *HTTPClient) GetOrderDetail(ctx context.Context, orderID string) (Order, error) {
	var payload struct {
		Order wireOrder `json:"order"`
	}
	path := "/orders/" + url.PathEscape(orderID)
	if err := c.get(ctx, path, nil, &payload); err != nil {
		return Order{}, err
	}
	return payload.Order.toOrder()
}

func (c *HTTPClient) GetOrders(ctx context.Context, query ListQuery) (Page, error) {
	params := url.Values{}
	if query.Status != "" {
		params.Set("status", string(query.Status))
	}
	if query.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(query.PageSize))
	}
	if query.PageToken != "" {
		params.Set("page_token", query.PageToken)
	}

	var payload struct {
		Orders        []wireOrder `json:"orders"`
		More          bool        `json:"more"`
		NextPageToken string      `json:"next_page_token"`
	}
	if err := c.get(ctx, "/orders", params, &payload); err != nil {
		return Page{}, err
	}

	page := Page{More: payload.More, NextPageToken: payload.NextPageToken}
	for _, wo := range payload.Orders {
		order, err := wo.toOrder()
		if err != nil {
			return Page{}, err
		}
		page.Orders = append(page.Orders, order)
	}
	return page, nil
}

func (c *HTTPClient) GetPackageID(ctx context.Context, orderID string) (string, error) {
	var payload struct {
		Packages []struct {
			ID string `json:"id"`
		} `json:"packages"`
	}
	path := "/orders/" + url.PathEscape(orderID) + "/packages"
	if err := c.get(ctx, path, nil, &payload); err != nil {
		return "", err
	}
	if len(payload.Packages) == 0 {
		return "", fmt.Errorf("no packages for order %s", orderID)
	}
	return payload.Packages[0].ID, nil
}

func (c *HTTPClient) UpdateTrackingInfo(ctx context.Context, packageID string, update TrackingUpdate) error {
	body := map[string]string{
		"order_id":        update.OrderID,
		"tracking_number": update.TrackingNumber,
		"carrier_name":    update.CarrierName,
	}
	path := "/packages/" + url.PathEscape(packageID) + "/tracking"
	return c.post(ctx, path, body, nil)
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
		return fmt.Errorf("marketplace request %s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w (%s)", ErrOrderNotFound, req.URL.Path)
	case resp.StatusCode >= 400:
		return fmt.Errorf("marketplace request %s: status %d", req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode marketplace response %s: %w", req.URL.Path, err)
	}
	return nil
}
