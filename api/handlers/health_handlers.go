package handlers

import (
	"context"
	"net/http"
	"time"

	"nearmiss-dashboard/core/utils"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	service string
	logger  *utils.Logger
}

func NewHealthHandler(db Pinger, service string, logger *utils.Logger) *HealthHandler {
	return &HealthHandler{db: db, service: service, logger: logger}
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": utils.NowUTC().Format(time.RFC3339),
		"service":   h.service,
	})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warnf("readiness: db ping failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unavailable",
			"timestamp": utils.NowUTC().Format(time.RFC3339),
			"service":   h.service,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": utils.NowUTC().Format(time.RFC3339),
		"service":   h.service,
	})
}
