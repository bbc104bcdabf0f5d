package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/amasampo/mesh/internal/bus"
)

// DB wraps a SQLite database connection for the node-owned amasampo.db.
// All durable marketplace state lives here; every mutation goes through
// its methods so outbox enqueueing and change notification stay consistent
// with the stored truth.
type DB struct {
	*sql.DB
	bus *bus.Bus
}

// Open creates a new SQLite connection with WAL mode and recommended
// pragmas. Change events for mutations are published on b; a nil bus
// disables notification (used by read-only tooling).
func Open(path string, b *bus.Bus) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, bus: b}, nil
}

func (db *DB) publish(kind string, payload any) {
	if db.bus == nil {
		return
	}
	db.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// nowISO returns the current UTC time in the fixed-width ISO-8601 form used
// as a sort key throughout the store. Lexicographic comparison of these
// strings is chronological.
func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
