package api

import (
	"net/http"
	"time"

	respond "github.com/atriumhq/atrium/internal/api/respond"
	"github.com/atriumhq/atrium/internal/store"
)

type HealthHandler struct {
	st store.Store
}

func NewHealthHandler(st store.Store) *HealthHandler { return &HealthHandler{st: st} }

// CheckHealth GET /api/v1/health
// Always returns 200; the body reports healthy/unhealthy.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if err := h.st.HealthPing(r.Context()); err != nil {
		status = "unhealthy"
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
