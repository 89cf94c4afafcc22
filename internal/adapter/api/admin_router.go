package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/log-relay/internal/adapter/api/handler"
	"github.com/V4T54L/log-relay/internal/adapter/api/middleware"
	"github.com/V4T54L/log-relay/internal/domain"
)

// NewAdminRouter creates and configures the HTTP router for relay administration.
func NewAdminRouter(status domain.StatusProvider, tail *handler.SSEBroker, reg *prometheus.Registry, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	statusHandler := handler.NewStatusHandler(status, logger)

	mux.HandleFunc("GET /health", statusHandler.HealthCheck)
	mux.HandleFunc("GET /status", statusHandler.GetStatus)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("GET /tail", tail)

	return middleware.Logging(logger.With("component", "admin_http"))(mux)
}
