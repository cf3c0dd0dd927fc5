package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atriumhq/atrium/internal/model"
	"github.com/atriumhq/atrium/internal/store"
)

// New constructs a SQLite-backed store from an open connection.
func New(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Events() store.Events     { return &events{db: s.db} }
func (s *sqliteStore) Memories() store.Memories { return &memories{db: s.db} }

func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Events ---

type events struct{ db *sql.DB }

func (e *events) Save(ctx context.Context, ev *model.Event) (*model.EventRecord, error) {
	out := *ev
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	owner := model.ResolveOwner(out.Actor)
	raw, err := model.MarshalPayload(out.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %v", model.ErrPersistence, err)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", model.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
        INSERT INTO events (event_id, owner_id, type, entity, entity_id, actor, timestamp, payload)
        VALUES (?,?,?,?,?,?,?,?)
    `, nullIfEmpty(out.ID), owner, out.Type, out.Entity, out.EntityID, out.Actor, out.Timestamp, string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: insert event: %v", model.ErrPersistence, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: surrogate key: %v", model.ErrPersistence, err)
	}
	if out.ID == "" {
		out.ID = fmt.Sprintf("evt_%d", seq)
		if _, err := tx.ExecContext(ctx, `UPDATE events SET event_id = ? WHERE id = ?`, out.ID, seq); err != nil {
			return nil, fmt.Errorf("%w: assign event id: %v", model.ErrPersistence, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", model.ErrPersistence, err)
	}
	return &model.EventRecord{Seq: seq, OwnerID: owner, Event: out}, nil
}

const selectEventCols = `SELECT id, event_id, owner_id, type, entity, entity_id, actor, timestamp, payload FROM events`

func (e *events) ListRecent(ctx context.Context, limit int) ([]*model.EventRecord, error) {
	rows, err := e.db.QueryContext(ctx, selectEventCols+` ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list recent: %v", model.ErrPersistence, err)
	}
	return scanEvents(rows)
}

func (e *events) ListSince(ctx context.Context, since time.Time) ([]*model.EventRecord, error) {
	rows, err := e.db.QueryContext(ctx, selectEventCols+` WHERE timestamp >= ? ORDER BY timestamp DESC, id DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("%w: list since: %v", model.ErrPersistence, err)
	}
	return scanEvents(rows)
}

func (e *events) ListBy(ctx context.Context, f store.EventFilter, limit int) ([]*model.EventRecord, error) {
	query := selectEventCols + ` WHERE 1=1`
	var args []interface{}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.Entity != "" {
		query += ` AND entity = ?`
		args = append(args, f.Entity)
	}
	if f.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, f.EntityID)
	}
	query += ` ORDER BY timestamp DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list by: %v", model.ErrPersistence, err)
	}
	return scanEvents(rows)
}

func (e *events) CountAlertsSince(ctx context.Context, title, needle string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM events
        WHERE type IN ('alert.created','automation.alert_triggered')
          AND timestamp >= ? AND payload LIKE ?`
	args := []interface{}{since, "%" + title + "%"}
	if needle != "" {
		query += ` AND payload LIKE ?`
		args = append(args, "%"+needle+"%")
	}
	var n int
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count alerts: %v", model.ErrPersistence, err)
	}
	return n, nil
}

func scanEvents(rows *sql.Rows) ([]*model.EventRecord, error) {
	defer func() { _ = rows.Close() }()
	var out []*model.EventRecord
	for rows.Next() {
		var rec model.EventRecord
		var eventID sql.NullString
		var owner sql.NullInt64
		var raw string
		if err := rows.Scan(&rec.Seq, &eventID, &owner, &rec.Event.Type, &rec.Event.Entity,
			&rec.Event.EntityID, &rec.Event.Actor, &rec.Event.Timestamp, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", model.ErrPersistence, err)
		}
		rec.Event.ID = eventID.String
		if owner.Valid {
			v := owner.Int64
			rec.OwnerID = &v
		}
		p, err := model.UnmarshalPayload([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: decode payload: %v", model.ErrPersistence, err)
		}
		rec.Event.Payload = p
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate events: %v", model.ErrPersistence, err)
	}
	return out, nil
}

// --- Memories ---

type memories struct{ db *sql.DB }

func (m *memories) Insert(ctx context.Context, entry *model.MemoryEntry) (*model.MemoryEntry, error) {
	out := *entry
	if out.ID == "" {
		out.ID = model.NewMemoryID()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	meta, err := marshalMetadata(out.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: encode metadata: %v", model.ErrPersistence, err)
	}
	_, err = m.db.ExecContext(ctx, `
        INSERT INTO memory_entries (memory_id, owner_id, entity_type, entity_id, content, metadata, created_at)
        VALUES (?,?,?,?,?,?,?)
    `, out.ID, out.OwnerID, out.EntityType, out.EntityID, out.Content, meta, out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: insert memory: %v", model.ErrPersistence, err)
	}
	return &out, nil
}

const selectMemoryCols = `SELECT memory_id, owner_id, entity_type, entity_id, content, metadata, created_at FROM memory_entries`

func (m *memories) ListRecentForOwner(ctx context.Context, ownerID *int64, limit int) ([]*model.MemoryEntry, error) {
	query := selectMemoryCols
	var args []interface{}
	if ownerID != nil {
		query += ` WHERE owner_id = ?`
		args = append(args, *ownerID)
	} else {
		query += ` WHERE owner_id IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list memories: %v", model.ErrPersistence, err)
	}
	return scanMemories(rows)
}

func (m *memories) ListSince(ctx context.Context, since time.Time, limit int) ([]*model.MemoryEntry, error) {
	query := selectMemoryCols + ` WHERE created_at >= ? ORDER BY created_at DESC, id DESC`
	args := []interface{}{since}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list memories since: %v", model.ErrPersistence, err)
	}
	return scanMemories(rows)
}

func scanMemories(rows *sql.Rows) ([]*model.MemoryEntry, error) {
	defer func() { _ = rows.Close() }()
	var out []*model.MemoryEntry
	for rows.Next() {
		var e model.MemoryEntry
		var owner sql.NullInt64
		var meta sql.NullString
		if err := rows.Scan(&e.ID, &owner, &e.EntityType, &e.EntityID, &e.Content, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan memory: %v", model.ErrPersistence, err)
		}
		if owner.Valid {
			v := owner.Int64
			e.OwnerID = &v
		}
		if meta.Valid && meta.String != "" {
			if err := unmarshalMetadata(meta.String, &e.Metadata); err != nil {
				return nil, fmt.Errorf("%w: decode metadata: %v", model.ErrPersistence, err)
			}
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate memories: %v", model.ErrPersistence, err)
	}
	return out, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
