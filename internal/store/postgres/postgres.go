package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/atriumhq/atrium/internal/model"
	"github.com/atriumhq/atrium/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the event log and memory tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
            id BIGSERIAL PRIMARY KEY,
            event_id TEXT UNIQUE,
            owner_id BIGINT,
            type TEXT NOT NULL,
            entity TEXT NOT NULL,
            entity_id TEXT NOT NULL,
            actor TEXT NOT NULL,
            timestamp TIMESTAMPTZ NOT NULL,
            payload JSONB NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS events_timestamp_idx ON events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS events_type_idx ON events(type)`,
		`CREATE TABLE IF NOT EXISTS memory_entries (
            id BIGSERIAL PRIMARY KEY,
            memory_id TEXT NOT NULL UNIQUE,
            owner_id BIGINT,
            entity_type TEXT NOT NULL,
            entity_id TEXT NOT NULL,
            content TEXT NOT NULL,
            metadata JSONB,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS memory_entries_owner_idx ON memory_entries(owner_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// New constructs a Postgres-backed store from an open connection.
func New(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Events() store.Events     { return &events{db: s.db} }
func (s *pgStore) Memories() store.Memories { return &memories{db: s.db} }

func (s *pgStore) HealthPing(ctx context.Context) error {
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

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", model.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	row := tx.QueryRowContext(ctx, `
        INSERT INTO events (event_id, owner_id, type, entity, entity_id, actor, timestamp, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id
    `, nullIfEmpty(out.ID), owner, out.Type, out.Entity, out.EntityID, out.Actor, out.Timestamp, raw)
	if err := row.Scan(&seq); err != nil {
		return nil, fmt.Errorf("%w: insert event: %v", model.ErrPersistence, err)
	}
	if out.ID == "" {
		out.ID = fmt.Sprintf("evt_%d", seq)
		if _, err := tx.ExecContext(ctx, `UPDATE events SET event_id=$1 WHERE id=$2`, out.ID, seq); err != nil {
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
	rows, err := e.db.QueryContext(ctx, selectEventCols+` ORDER BY timestamp DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list recent: %v", model.ErrPersistence, err)
	}
	return scanEvents(rows)
}

func (e *events) ListSince(ctx context.Context, since time.Time) ([]*model.EventRecord, error) {
	rows, err := e.db.QueryContext(ctx, selectEventCols+` WHERE timestamp >= $1 ORDER BY timestamp DESC, id DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("%w: list since: %v", model.ErrPersistence, err)
	}
	return scanEvents(rows)
}

func (e *events) ListBy(ctx context.Context, f store.EventFilter, limit int) ([]*model.EventRecord, error) {
	query := selectEventCols + ` WHERE 1=1`
	var args []interface{}
	if f.Type != "" {
		args = append(args, f.Type)
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	if f.Entity != "" {
		args = append(args, f.Entity)
		query += fmt.Sprintf(` AND entity = $%d`, len(args))
	}
	if f.EntityID != "" {
		args = append(args, f.EntityID)
		query += fmt.Sprintf(` AND entity_id = $%d`, len(args))
	}
	query += ` ORDER BY timestamp DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
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
          AND timestamp >= $1 AND payload::text LIKE $2`
	args := []interface{}{since, "%" + title + "%"}
	if needle != "" {
		args = append(args, "%"+needle+"%")
		query += ` AND payload::text LIKE $3`
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
		var raw []byte
		if err := rows.Scan(&rec.Seq, &eventID, &owner, &rec.Event.Type, &rec.Event.Entity,
			&rec.Event.EntityID, &rec.Event.Actor, &rec.Event.Timestamp, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", model.ErrPersistence, err)
		}
		rec.Event.ID = eventID.String
		if owner.Valid {
			v := owner.Int64
			rec.OwnerID = &v
		}
		p, err := model.UnmarshalPayload(raw)
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
	var meta interface{}
	if len(out.Metadata) > 0 {
		b, err := json.Marshal(out.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: encode metadata: %v", model.ErrPersistence, err)
		}
		meta = b
	}
	_, err := m.db.ExecContext(ctx, `
        INSERT INTO memory_entries (memory_id, owner_id, entity_type, entity_id, content, metadata, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
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
		args = append(args, *ownerID)
		query += ` WHERE owner_id = $1`
	} else {
		query += ` WHERE owner_id IS NULL`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list memories: %v", model.ErrPersistence, err)
	}
	return scanMemories(rows)
}

func (m *memories) ListSince(ctx context.Context, since time.Time, limit int) ([]*model.MemoryEntry, error) {
	query := selectMemoryCols + ` WHERE created_at >= $1 ORDER BY created_at DESC, id DESC`
	args := []interface{}{since}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
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
		var meta []byte
		if err := rows.Scan(&e.ID, &owner, &e.EntityType, &e.EntityID, &e.Content, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan memory: %v", model.ErrPersistence, err)
		}
		if owner.Valid {
			v := owner.Int64
			e.OwnerID = &v
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
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
