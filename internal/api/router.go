package api

import (
	"log/slog"
	"net/http"

	"github.com/Priya8975/telltide-relay/internal/ratelimit"
	"github.com/Priya8975/telltide-relay/internal/store"
	"github.com/Priya8975/telltide-relay/internal/stream"
	ws "github.com/Priya8975/telltide-relay/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries the HTTP-level settings of the relay.
type RouterConfig struct {
	Version         string
	MaxBodyBytes    int64
	IngestRateLimit int
}

// NewRouter creates and configures the HTTP router. limiter may be nil, in
// which case ingest is not throttled.
func NewRouter(ns *store.NotificationStore, gateway *stream.Gateway, limiter *ratelimit.Limiter, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for the viewer
	r.Use(corsMiddleware)

	throttled := limiter != nil && cfg.IngestRateLimit > 0

	notificationHandler := NewNotificationHandler(ns, cfg.MaxBodyBytes, logger)
	metricsHandler := NewMetricsHandler(ns, gateway, throttled)
	wsHandler := ws.NewHandler(gateway, logger)

	var ingestMW []func(http.Handler) http.Handler
	if throttled {
		ingestMW = append(ingestMW, ingestThrottle(limiter, cfg.IngestRateLimit))
	}

	r.Route("/api/demo-callback", func(r chi.Router) {
		r.With(ingestMW...).Post("/", notificationHandler.Ingest)
		r.Get("/", notificationHandler.List)
		r.Get("/stream", gateway.ServeHTTP)
		r.Get("/ws", wsHandler.ServeHTTP)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(cfg.Version))
		r.Get("/metrics", metricsHandler.Metrics)
	})

	return r
}

// corsMiddleware adds CORS headers so the viewer can be served from another
// origin during development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Webhook-Signature, X-Webhook-Event, X-Webhook-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
