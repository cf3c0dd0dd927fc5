package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	respond "github.com/atriumhq/atrium/internal/api/respond"
	"github.com/atriumhq/atrium/internal/model"
	"github.com/atriumhq/atrium/internal/pipeline"
	"github.com/atriumhq/atrium/internal/store"
)

type EventHandler struct {
	pl     *pipeline.Pipeline
	events store.Events
}

func NewEventHandler(pl *pipeline.Pipeline, events store.Events) *EventHandler {
	return &EventHandler{pl: pl, events: events}
}

// SubmitEvent POST /api/v1/events
func (h *EventHandler) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type     string          `json:"type"`
		Entity   string          `json:"entity"`
		EntityID string          `json:"entityId"`
		Actor    string          `json:"actor"`
		Payload  json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	payload, err := model.UnmarshalPayload(req.Payload)
	if err != nil {
		respond.WriteBadRequest(w, "Invalid payload: "+err.Error())
		return
	}

	ev := model.Event{
		Type:     req.Type,
		Entity:   req.Entity,
		EntityID: req.EntityID,
		Actor:    req.Actor,
		Payload:  payload,
	}
	if ev.Type == "" || ev.Entity == "" {
		respond.WriteBadRequest(w, "type and entity are required")
		return
	}

	rec, err := h.pl.Submit(r.Context(), ev)
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			respond.WriteBadRequest(w, err.Error())
			return
		}
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusCreated, rec)
}

// ListRecent GET /api/v1/events/recent
func (h *EventHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	out, err := h.events.ListRecent(r.Context(), limit)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	if out == nil {
		out = []*model.EventRecord{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"events": out, "count": len(out)})
}

// ListCriticalAlerts GET /api/v1/events/critical-alerts
func (h *EventHandler) ListCriticalAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	recs, err := h.events.ListBy(r.Context(), store.EventFilter{Type: "alert.created"}, 0)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}

	alerts := make([]map[string]interface{}, 0, limit)
	for _, rec := range recs {
		ap, ok := rec.Event.Payload.(model.AlertPayload)
		if !ok || ap.Severity != model.SeverityCritical {
			continue
		}
		alerts = append(alerts, map[string]interface{}{
			"eventId":       rec.Event.ID,
			"title":         ap.Title,
			"description":   ap.Description,
			"severity":      ap.Severity,
			"sourceEventId": ap.SourceEventID,
			"timestamp":     rec.Event.Timestamp.Format(time.RFC3339),
		})
		if len(alerts) == limit {
			break
		}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts, "count": len(alerts)})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
