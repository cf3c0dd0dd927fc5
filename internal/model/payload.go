package model

import (
	"encoding/json"
	"fmt"
)

// Payload is the closed set of event payload variants. Rules and summaries
// pattern-match over these instead of probing an open map by string keys.
type Payload interface {
	Kind() string
}

// Payload kind discriminators used in the storage envelope.
const (
	PayloadKindHTTP   = "http"
	PayloadKindDomain = "domain"
	PayloadKindAlert  = "alert"
)

// HTTPPayload carries fields of a traffic-derived event.
type HTTPPayload struct {
	Method         string            `json:"method"`
	Path           string            `json:"path"`
	StatusCode     int               `json:"statusCode,omitempty"`
	ResponseTimeMs float64           `json:"responseTimeMs,omitempty"`
	QueryParams    map[string]string `json:"queryParams,omitempty"`
	UserAgent      string            `json:"userAgent,omitempty"`
	IPAddress      string            `json:"ipAddress,omitempty"`
	UserID         string            `json:"userId,omitempty"`
	Error          string            `json:"error,omitempty"`
}

func (HTTPPayload) Kind() string { return PayloadKindHTTP }

// DomainPayload carries fields of a business-action event. Fields holds
// action-specific extras that have no dedicated column.
type DomainPayload struct {
	Title       string            `json:"title,omitempty"`
	Agenda      string            `json:"agenda,omitempty"`
	Urgency     string            `json:"urgency,omitempty"`
	Area        string            `json:"area,omitempty"`
	Status      string            `json:"status,omitempty"`
	Responsible string            `json:"responsible,omitempty"`
	Message     string            `json:"message,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

func (DomainPayload) Kind() string { return PayloadKindDomain }

// AlertPayload embeds alert fields into an alert.created (or
// automation.alert_triggered) event. Data keeps the triggering event's
// payload so the causal origin stays recoverable from the log alone.
type AlertPayload struct {
	Severity      Severity `json:"severity"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	SourceEventID string   `json:"sourceEventId,omitempty"`
	Data          Payload  `json:"data,omitempty"`
}

func (AlertPayload) Kind() string { return PayloadKindAlert }

type alertPayloadJSON struct {
	Severity      Severity        `json:"severity"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	SourceEventID string          `json:"sourceEventId,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

func (p AlertPayload) MarshalJSON() ([]byte, error) {
	var data json.RawMessage
	if p.Data != nil {
		raw, err := MarshalPayload(p.Data)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return json.Marshal(alertPayloadJSON{
		Severity:      p.Severity,
		Title:         p.Title,
		Description:   p.Description,
		SourceEventID: p.SourceEventID,
		Data:          data,
	})
}

func (p *AlertPayload) UnmarshalJSON(b []byte) error {
	var aux alertPayloadJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.Severity = aux.Severity
	p.Title = aux.Title
	p.Description = aux.Description
	p.SourceEventID = aux.SourceEventID
	p.Data = nil
	if len(aux.Data) > 0 {
		data, err := UnmarshalPayload(aux.Data)
		if err != nil {
			return err
		}
		p.Data = data
	}
	return nil
}

type payloadEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalPayload wraps a payload in its tagged envelope. A nil payload
// serializes as an empty domain payload.
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		p = DomainPayload{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(payloadEnvelope{Kind: p.Kind(), Data: data})
}

// UnmarshalPayload decodes a tagged envelope back into its concrete variant.
// Unknown kinds degrade to an empty domain payload so old rows never make
// reads fail.
func UnmarshalPayload(b []byte) (Payload, error) {
	if len(b) == 0 {
		return DomainPayload{}, nil
	}
	var env payloadEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("payload envelope: %w", err)
	}
	switch env.Kind {
	case PayloadKindHTTP:
		var p HTTPPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PayloadKindDomain:
		var p DomainPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PayloadKindAlert:
		var p AlertPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return DomainPayload{}, nil
	}
}
