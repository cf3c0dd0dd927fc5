package model

import "time"

// MemoryEntry is a derived, retrievable textual summary of an event, scoped
// to an owner. Entries are immutable after insert and never deleted in
// normal operation.
type MemoryEntry struct {
	ID         string                 `json:"id"`
	OwnerID    *int64                 `json:"ownerId,omitempty"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// NewMemoryID returns a fresh memory entry identifier.
func NewMemoryID() string { return newID("mem") }

// NewRunID returns a fresh automation run identifier.
func NewRunID() string { return newID("run") }
