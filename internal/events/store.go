package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Event is a frontend debug event accepted by /debug/event. The payload is
// opaque to the bridge; it is archived verbatim for later inspection.
type Event struct {
	ID         int64
	Type       string
	Payload    map[string]any
	ReceivedAt time.Time
}

// Store archives debug events in SQLite. Only diagnostic data lands here;
// session images and prompts stay memory-only.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the event database and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS debug_events (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        event_type TEXT NOT NULL,
        payload TEXT NOT NULL,
        received_at TEXT NOT NULL
    )`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create event schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Append records one event.
func (s *Store) Append(ctx context.Context, eventType string, payload map[string]any) error {
	if eventType == "" {
		eventType = "event"
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO debug_events (event_type, payload, received_at) VALUES (?, ?, ?)`,
		eventType,
		string(encoded),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, event_type, payload, received_at FROM debug_events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			evt        Event
			payload    string
			receivedAt string
		)
		if err := rows.Scan(&evt.ID, &evt.Type, &payload, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &evt.Payload); err != nil {
			evt.Payload = map[string]any{"raw": payload}
		}
		if parsed, err := time.Parse(time.RFC3339Nano, receivedAt); err == nil {
			evt.ReceivedAt = parsed
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}
