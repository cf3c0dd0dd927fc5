// Package api exposes the HTTP surface of the activity pipeline: event
// ingestion and listings, memory retrieval, and health.
package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/atriumhq/atrium/internal/api/recovery"
	"github.com/atriumhq/atrium/internal/memory"
	"github.com/atriumhq/atrium/internal/pipeline"
	"github.com/atriumhq/atrium/internal/store"
)

// NewRouter wires all API routes. Dependencies are passed in explicitly;
// nothing here reaches for globals.
func NewRouter(st store.Store, pl *pipeline.Pipeline, index *memory.Index, log zerolog.Logger) *mux.Router {
	router := mux.NewRouter()

	router.Use(recovery.Middleware)
	router.Use(ActivityMiddleware(pl, log))

	healthHandler := NewHealthHandler(st)
	eventHandler := NewEventHandler(pl, st.Events())
	memoryHandler := NewMemoryHandler(index)

	router.HandleFunc("/api/v1/health", healthHandler.CheckHealth).Methods("GET")

	router.HandleFunc("/api/v1/events", eventHandler.SubmitEvent).Methods("POST")
	router.HandleFunc("/api/v1/events/recent", eventHandler.ListRecent).Methods("GET")
	router.HandleFunc("/api/v1/events/critical-alerts", eventHandler.ListCriticalAlerts).Methods("GET")

	router.HandleFunc("/api/v1/memory/search", memoryHandler.Search).Methods("POST")
	router.HandleFunc("/api/v1/memory/recent", memoryHandler.Recent).Methods("GET")

	return router
}
