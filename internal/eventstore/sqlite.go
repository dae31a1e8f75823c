package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/kart/internal/foundation/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	payload BLOB NOT NULL,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_cycle ON events(cycle_id);
`

const selectEvents = `SELECT id, cycle_id, event_type, timestamp, payload, metadata FROM events`

// newestCycles selects the ids of the newest ? cycles.
const newestCycles = `SELECT cycle_id FROM events GROUP BY cycle_id ORDER BY MAX(id) DESC LIMIT ?`

// SQLiteStore is a Store backed by modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the journal at dbPath. ":memory:" gives a
// private in-memory journal.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.EventStoreError("could not open journal database").WithCause(err).
			WithContext("path", dbPath).Build()
	}
	// A single connection keeps ":memory:" alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.EventStoreError("failed to create journal schema").WithCause(err).
			WithContext("path", dbPath).Build()
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, e *Event) error {
	var meta []byte
	if len(e.Metadata) > 0 {
		meta, _ = json.Marshal(e.Metadata)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	payload := []byte(e.Payload)
	if payload == nil {
		payload = []byte("{}")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (cycle_id, event_type, timestamp, payload, metadata) VALUES (?, ?, ?, ?, ?)`,
		e.CycleID, e.Type, e.Timestamp.UnixMilli(), payload, meta)
	if err != nil {
		return errors.EventStoreError("failed to append journal event").WithCause(err).
			WithContext("cycle_id", e.CycleID).WithContext("event_type", e.Type).Build()
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (s *SQLiteStore) Cycle(ctx context.Context, cycleID string) ([]Event, error) {
	return s.query(ctx, selectEvents+` WHERE cycle_id = ? ORDER BY id`, cycleID)
}

func (s *SQLiteStore) Recent(ctx context.Context, cycles int) ([]Event, error) {
	return s.query(ctx, selectEvents+` WHERE cycle_id IN (`+newestCycles+`) ORDER BY id`, cycles)
}

func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE cycle_id NOT IN (`+newestCycles+`)`, keep)
	if err != nil {
		return 0, errors.EventStoreError("failed to prune journal").WithCause(err).Build()
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.EventStoreError("failed to query journal").WithCause(err).Build()
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			ts      int64
			payload []byte
			meta    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.CycleID, &e.Type, &ts, &payload, &meta); err != nil {
			return nil, errors.EventStoreError("failed to scan journal row").WithCause(err).Build()
		}
		e.Timestamp = time.UnixMilli(ts)
		e.Payload = payload
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				return nil, errors.EventStoreError("corrupt journal metadata").WithCause(err).
					WithContext("event_id", e.ID).Build()
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.EventStoreError("failed to read journal").WithCause(err).Build()
	}
	return events, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
