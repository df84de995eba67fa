package api

import (
	"context"
	"net/http"
	"time"

	"chatgate/internal/models"
)

// GateStats reports gate decision counters
// GET /api/admin/gate-stats
func (h *Handlers) GateStats(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if user.Role != models.RoleAdmin {
		h.writeErrorResponse(w, http.StatusForbidden, "Admin role required", models.ErrorCodeForbidden)
		return
	}
	if h.stats == nil {
		h.writeErrorResponse(w, http.StatusServiceUnavailable, "Gate statistics are disabled", models.ErrorCodeServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snapshot, err := h.stats.Snapshot(ctx)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, snapshot)
}
