// Package memory implements the derived, queryable index of human-readable
// event summaries used to assemble LLM context. Matching is deliberately
// case-insensitive substring containment, not vector similarity, so
// identical inputs always produce identical ordered output.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atriumhq/atrium/internal/model"
	"github.com/atriumhq/atrium/internal/store"
)

// DefaultWindowDays bounds recency scans when no window is configured.
const DefaultWindowDays = 90

// Index is the retrieval surface over the memory table. All query methods
// operate over a bounded recency window; the window is the unit of context
// fed downstream.
type Index struct {
	mem    store.Memories
	window time.Duration
	log    zerolog.Logger
}

// NewIndex builds an Index with the given recency window in days.
func NewIndex(mem store.Memories, windowDays int, log zerolog.Logger) *Index {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Index{
		mem:    mem,
		window: time.Duration(windowDays) * 24 * time.Hour,
		log:    log,
	}
}

// Write inserts a new memory entry and returns its id. Pure insert; fails
// only on storage error.
func (ix *Index) Write(ctx context.Context, ownerID *int64, entityType, entityID, content string, metadata map[string]interface{}) (string, error) {
	entry, err := ix.mem.Insert(ctx, &model.MemoryEntry{
		OwnerID:    ownerID,
		EntityType: entityType,
		EntityID:   entityID,
		Content:    content,
		Metadata:   metadata,
	})
	if err != nil {
		return "", err
	}
	return entry.ID, nil
}

// SearchRequest narrows a search. Nil/zero fields are ignored.
type SearchRequest struct {
	Query       string
	OwnerID     *int64
	EntityTypes []string
	EntityID    string
	Limit       int
}

// Search returns window entries whose concatenated type, entity identifiers,
// content and metadata contain the query, case-insensitively. Results are
// most-recent-first with insertion order breaking ties, so two identical
// calls against an unchanged store return identical ordered results.
func (ix *Index) Search(ctx context.Context, req SearchRequest) ([]*model.MemoryEntry, error) {
	entries, err := ix.windowEntries(ctx)
	if err != nil {
		return nil, err
	}
	query := strings.ToLower(req.Query)
	types := toSet(req.EntityTypes)

	var out []*model.MemoryEntry
	for _, e := range entries {
		if req.OwnerID != nil && (e.OwnerID == nil || *e.OwnerID != *req.OwnerID) {
			continue
		}
		if len(types) > 0 && !types[e.EntityType] {
			continue
		}
		if req.EntityID != "" && e.EntityID != req.EntityID {
			continue
		}
		if query != "" && !strings.Contains(haystack(e), query) {
			continue
		}
		out = append(out, e)
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

// RecentForOwner returns the most recent entries for an owner regardless of
// query text.
func (ix *Index) RecentForOwner(ctx context.Context, ownerID *int64, limit int) ([]*model.MemoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return ix.mem.ListRecentForOwner(ctx, ownerID, limit)
}

// FindByEntity returns window entries of the given entity type.
func (ix *Index) FindByEntity(ctx context.Context, entityType string) ([]*model.MemoryEntry, error) {
	return ix.Search(ctx, SearchRequest{EntityTypes: []string{entityType}})
}

// FindByDate returns window entries created on the given ISO date
// (e.g. "2026-01-04").
func (ix *Index) FindByDate(ctx context.Context, isoDate string) ([]*model.MemoryEntry, error) {
	entries, err := ix.windowEntries(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.MemoryEntry
	for _, e := range entries {
		if e.CreatedAt.UTC().Format("2006-01-02") == isoDate {
			out = append(out, e)
		}
	}
	return out, nil
}

// FindBetween returns window entries created in [start, end].
func (ix *Index) FindBetween(ctx context.Context, start, end time.Time) ([]*model.MemoryEntry, error) {
	entries, err := ix.windowEntries(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.MemoryEntry
	for _, e := range entries {
		if !e.CreatedAt.Before(start) && !e.CreatedAt.After(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (ix *Index) windowEntries(ctx context.Context) ([]*model.MemoryEntry, error) {
	since := time.Now().UTC().Add(-ix.window)
	return ix.mem.ListSince(ctx, since, 0)
}

// FormatForContext renders entries as one line each for LLM context
// assembly.
func FormatForContext(entries []*model.MemoryEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("[%s] %s | %s | %s",
			e.CreatedAt.UTC().Format(time.RFC3339), e.EntityType, e.EntityID, e.Content))
	}
	return strings.Join(lines, "\n")
}

func haystack(e *model.MemoryEntry) string {
	var b strings.Builder
	b.WriteString(e.EntityType)
	b.WriteByte(' ')
	b.WriteString(e.EntityID)
	b.WriteByte(' ')
	b.WriteString(e.Content)
	if len(e.Metadata) > 0 {
		// json.Marshal sorts map keys, keeping the haystack deterministic
		if raw, err := json.Marshal(e.Metadata); err == nil {
			b.WriteByte(' ')
			b.Write(raw)
		}
	}
	return strings.ToLower(b.String())
}

func toSet(ss []string) map[string]bool {
	if len(ss) == 0 {
		return nil
	}
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}
