package marketplace

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryClient_GetOrderDetail(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	client.AddOrder(Order{ID: "ORDER-1", Status: StatusAwaitingShipment})

	order, err := client.GetOrderDetail(context.Background(), "ORDER-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if order.ID != "ORDER-1" {
		t.Fatalf("unexpected order %+v", order)
	}

	if _, err := client.GetOrderDetail(context.Background(), "GHOST"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestInMemoryClient_GetOrdersPaginates(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	for _, id := range []string{"A", "B", "C", "D", "E"} {
		client.AddOrder(Order{ID: id, Status: StatusAwaitingShipment})
	}
	client.AddOrder(Order{ID: "Z", Status: StatusCompleted})

	var ids []string
	token := ""
	pages := 0
	for {
		page, err := client.GetOrders(context.Background(), ListQuery{
			Status:    StatusAwaitingShipment,
			PageSize:  2,
			PageToken: token,
		})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		pages++
		for _, order := range page.Orders {
			ids = append(ids, order.ID)
		}
		if !page.More {
			break
		}
		token = page.NextPageToken
	}

	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
	if len(ids) != 5 {
		t.Fatalf("expected 5 filtered orders, got %v", ids)
	}
	for i, want := range []string{"A", "B", "C", "D", "E"} {
		if ids[i] != want {
			t.Fatalf("expected listing order preserved, got %v", ids)
		}
	}
}

func TestInMemoryClient_BadPageToken(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	client.AddOrder(Order{ID: "A", Status: StatusAwaitingShipment})

	if _, err := client.GetOrders(context.Background(), ListQuery{PageToken: "bogus"}); err == nil {
		t.Fatalf("expected bad token error")
	}
}

func TestInMemoryClient_TrackingRoundTrip(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	client.SetPackageID("ORDER-1", "PKG-1")

	packageID, err := client.GetPackageID(context.Background(), "ORDER-1")
	if err != nil {
		t.Fatalf("get package: %v", err)
	}

	update := TrackingUpdate{OrderID: "ORDER-1", TrackingNumber: "1Z999", CarrierName: "UPS"}
	if err := client.UpdateTrackingInfo(context.Background(), packageID, update); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, ok := client.TrackingFor("PKG-1")
	if !ok || got != update {
		t.Fatalf("unexpected recorded update %+v", got)
	}
	if client.TrackingCalls() != 1 {
		t.Fatalf("expected 1 tracking call, got %d", client.TrackingCalls())
	}
}
