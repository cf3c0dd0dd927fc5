// Package store exposes persistence over the append-only event log and the
// derived memory table. Implementations live under internal/store/<driver>/.
package store

import (
	"context"
	"time"

	"github.com/atriumhq/atrium/internal/model"
)

// Store bundles the two persisted surfaces of the pipeline.
type Store interface {
	Events() Events
	Memories() Memories
	HealthPing(ctx context.Context) error
}

// EventFilter narrows event listings. Zero-value fields are ignored.
type EventFilter struct {
	Type     string
	Entity   string
	EntityID string
}

// Events is the durable append-only event log. Save is atomic: an event is
// either fully durable or not recorded at all. Listings are ordered by
// timestamp descending with insertion order breaking ties.
type Events interface {
	Save(ctx context.Context, ev *model.Event) (*model.EventRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*model.EventRecord, error)
	ListSince(ctx context.Context, since time.Time) ([]*model.EventRecord, error)
	ListBy(ctx context.Context, f EventFilter, limit int) ([]*model.EventRecord, error)
	// CountAlertsSince reports how many alert events since the given time
	// carry the given title and, when needle is non-empty, contain needle in
	// their serialized payload. Scheduled rules use it to suppress repeat
	// alerts for the same subject and window.
	CountAlertsSince(ctx context.Context, title, needle string, since time.Time) (int, error)
}

// Memories is the derived memory table. Entries are insert-only.
type Memories interface {
	Insert(ctx context.Context, e *model.MemoryEntry) (*model.MemoryEntry, error)
	ListRecentForOwner(ctx context.Context, ownerID *int64, limit int) ([]*model.MemoryEntry, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]*model.MemoryEntry, error)
}
