package api

import (
	"net/http"

	"github.com/Priya8975/telltide-relay/internal/store"
	"github.com/Priya8975/telltide-relay/internal/stream"
)

type MetricsHandler struct {
	store     *store.NotificationStore
	gateway   *stream.Gateway
	throttled bool
}

func NewMetricsHandler(s *store.NotificationStore, g *stream.Gateway, throttled bool) *MetricsHandler {
	return &MetricsHandler{store: s, gateway: g, throttled: throttled}
}

type metricsResponse struct {
	store.Stats
	ActiveStreams   int    `json:"active_streams"`
	DroppedMessages uint64 `json:"dropped_messages"`
	IngestThrottled bool   `json:"ingest_throttled"`
}

// Metrics returns relay counters for the dashboard.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, metricsResponse{
		Stats:           h.store.Stats(),
		ActiveStreams:   h.gateway.ActiveConnections(),
		DroppedMessages: h.gateway.DroppedMessages(),
		IngestThrottled: h.throttled,
	})
}
