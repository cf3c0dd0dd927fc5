package model

import "time"

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// Alert is a derived signal of a business-rule violation. It carries a
// pointer to the event that triggered it; there is no mutable alert table,
// alerts live in the log as alert.created events.
type Alert struct {
	ID            string    `json:"id"`
	Severity      Severity  `json:"severity"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	SourceEventID string    `json:"sourceEventId"`
	Payload       Payload   `json:"payload,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewAlert constructs an Alert with an assigned id and timestamp. The
// payload is the triggering event's payload, kept for causal context.
func NewAlert(severity Severity, title, description, sourceEventID string, payload Payload) Alert {
	return Alert{
		ID:            newID("alt"),
		Severity:      severity,
		Title:         title,
		Description:   description,
		SourceEventID: sourceEventID,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
}
