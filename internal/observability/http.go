package observability

import (
	"encoding/json"
	"net/http"
)

// Handler serves the connector's metrics snapshot as JSON. A nil *Metrics
// yields an empty snapshot rather than a panic.
func Handler(metrics *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(metrics.Snapshot())
	})
}
