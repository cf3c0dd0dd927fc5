package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable record of a domain occurrence, the atomic unit of
// the append-only activity log. Once stored it is never mutated; corrections
// are new events.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // dotted taxonomy, e.g. meeting.completed
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entityId"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// EventRecord is the durable projection of an Event: the surrogate key and
// the owner derived from the actor string.
type EventRecord struct {
	Seq     int64  `json:"seq"`
	OwnerID *int64 `json:"ownerId,omitempty"`
	Event   Event  `json:"event"`
}

// NewDomainEvent builds a validated business-action event. The id is left
// empty so the store can assign one from the surrogate key.
func NewDomainEvent(eventType, entity, entityID, actor string, p DomainPayload) (Event, error) {
	if eventType == "" {
		return Event{}, fmt.Errorf("%w: event type is required", ErrValidation)
	}
	if entity == "" {
		return Event{}, fmt.Errorf("%w: entity is required", ErrValidation)
	}
	return Event{
		Type:      eventType,
		Entity:    entity,
		EntityID:  entityID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   p,
	}, nil
}

// NewHTTPEvent builds a validated traffic-derived event.
func NewHTTPEvent(eventType, entityID, actor string, p HTTPPayload) (Event, error) {
	if eventType == "" {
		return Event{}, fmt.Errorf("%w: event type is required", ErrValidation)
	}
	if p.Method == "" || p.Path == "" {
		return Event{}, fmt.Errorf("%w: http payload requires method and path", ErrValidation)
	}
	if p.StatusCode != 0 && (p.StatusCode < 100 || p.StatusCode > 599) {
		return Event{}, fmt.Errorf("%w: invalid status code %d", ErrValidation, p.StatusCode)
	}
	return Event{
		Type:      eventType,
		Entity:    "http_request",
		EntityID:  entityID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   p,
	}, nil
}

// NewAlertEvent wraps an Alert into its durable event form. Alerts have no
// table of their own; the log is the single source of truth.
func NewAlertEvent(eventType, entity, entityID, actor string, a Alert) Event {
	return Event{
		Type:      eventType,
		Entity:    entity,
		EntityID:  entityID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload: AlertPayload{
			Severity:      a.Severity,
			Title:         a.Title,
			Description:   a.Description,
			SourceEventID: a.SourceEventID,
			Data:          a.Payload,
		},
	}
}

type eventJSON struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Entity    string          `json:"entity"`
	EntityID  string          `json:"entityId"`
	Actor     string          `json:"actor"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON encodes the payload through its tagged envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	raw, err := MarshalPayload(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventJSON{
		ID:        e.ID,
		Type:      e.Type,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Actor:     e.Actor,
		Timestamp: e.Timestamp,
		Payload:   raw,
	})
}

// UnmarshalJSON decodes the payload through its tagged envelope.
func (e *Event) UnmarshalJSON(b []byte) error {
	var aux eventJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p, err := UnmarshalPayload(aux.Payload)
	if err != nil {
		return err
	}
	e.ID = aux.ID
	e.Type = aux.Type
	e.Entity = aux.Entity
	e.EntityID = aux.EntityID
	e.Actor = aux.Actor
	e.Timestamp = aux.Timestamp
	e.Payload = p
	return nil
}

// TypePrefix returns the first dotted segment of the event type, used by
// summary dispatch.
func (e Event) TypePrefix() string {
	if i := strings.IndexByte(e.Type, '.'); i >= 0 {
		return e.Type[:i]
	}
	return e.Type
}

// newID returns a short prefixed identifier, e.g. "alt_1f2e3d4c".
func newID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + hex[:8]
}
