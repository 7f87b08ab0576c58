package main

import (
	"encoding/json"
	"log"
	"net/http"

	"shopbridge/internal/observability"
	"shopbridge/internal/realtime"
	"shopbridge/internal/routing"
	"shopbridge/internal/tracking"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type webhookRequest struct {
	OrderID string `json:"order_id"`
}

type webhookResponse struct {
	OrderID            string   `json:"order_id"`
	Success            bool     `json:"success"`
	FulfillmentOrderID string   `json:"fulfillment_order_id,omitempty"`
	Stage              string   `json:"stage,omitempty"`
	Error              string   `json:"error,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
}

// newServerHandler builds the connector's HTTP surface: the order webhook,
// a manual tracking sweep trigger, health, metrics, and the event feed.
func newServerHandler(router *routing.Router, trackingSync *tracking.Sync, metrics *observability.Metrics, hub *realtime.Hub) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/webhooks/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req webhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
			http.Error(w, "order_id is required", http.StatusBadRequest)
			return
		}

		result := router.RouteOrder(r.Context(), req.OrderID)
		resp := webhookResponse{
			OrderID:            result.OrderID,
			Success:            result.Success,
			FulfillmentOrderID: result.FulfillmentOrderID,
			Warnings:           result.Warnings,
		}
		status := http.StatusOK
		if !result.Success {
			resp.Stage = string(result.Stage())
			resp.Error = result.Err.Error()
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, resp)
	})

	mux.HandleFunc("/tracking/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		batch, err := trackingSync.SyncAllUnsynced(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{
			"synced":    batch.Synced,
			"skipped":   batch.Skipped,
			"not_ready": batch.NotReady,
			"failed":    batch.Failed,
		})
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("/metrics", observability.Handler(metrics))

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade: %v", err)
			return
		}
		hub.Register <- conn
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
