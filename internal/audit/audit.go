// Package audit records run lifecycle events for operators.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Event is one recorded state-mutating action.
type Event struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	EntityID  string    `json:"entity_id"`
	Outcome   string    `json:"outcome"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Log is the SQLite-backed event trail.
type Log struct {
	db *sql.DB
}

// Open creates the event log database and runs migrations.
func Open(dbPath string) (*Log, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	// WAL mode for concurrent worker writes
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return l, nil
}

// Close closes the database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		details TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_entity_id ON events(entity_id);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Record appends an event. A nil log is a no-op so callers that run without
// an audit trail (tests, one-shot CLI use) need no guards.
func (l *Log) Record(action, entityID, outcome, details string) error {
	if l == nil {
		return nil
	}
	_, err := l.db.Exec(
		`INSERT INTO events (id, action, entity_id, outcome, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), action, entityID, outcome, details, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ForEntity returns the events recorded for one project or tool id, newest
// first.
func (l *Log) ForEntity(entityID string) ([]Event, error) {
	if l == nil {
		return nil, nil
	}
	rows, err := l.db.Query(
		`SELECT id, action, entity_id, outcome, details, created_at FROM events WHERE entity_id = ? ORDER BY created_at DESC`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityID, &e.Outcome, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if details.Valid {
			e.Details = details.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
