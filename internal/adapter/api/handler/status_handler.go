package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/V4T54L/log-relay/internal/domain"
)

// StatusHandler serves relay health and status snapshots.
type StatusHandler struct {
	provider domain.StatusProvider
	logger   *slog.Logger
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(provider domain.StatusProvider, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{provider: provider, logger: logger}
}

// HealthCheck reports OK while the relay is accepting connections.
// GET /health
func (h *StatusHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if state := h.provider.Status().State; state != domain.StateRunning {
		http.Error(w, string(state), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// GetStatus returns the live relay snapshot.
// GET /status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, h.provider.Status())
}

func (h *StatusHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
