package handler

import (
	"net/http"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
)

// handleHealth handles GET /healthz.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   h.clock.NowISO(),
	})
}

// handleReady handles GET /readyz. The agent is ready once the store
// answers reads.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Meta(r.Context(), domain.FamilyOrders); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		h.writeError(w, r, http.StatusServiceUnavailable, domain.ErrStorage.Code, "store not ready", nil)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":      "ready",
		"time":        h.clock.NowISO(),
		"persistence": h.store.ProbePersistence(),
	})
}
