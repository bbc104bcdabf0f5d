package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/amasampo/mesh/internal/bus"
)

// SetMetadata stores an arbitrary scalar under key. Metadata is local
// bookkeeping and is not enqueued for sync.
func (db *DB) SetMetadata(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set metadata: %w", err)
	}
	db.publish(bus.KindMetadataUpdated, key)
	return nil
}

// GetMetadata returns the value stored under key, "" when absent.
func (db *DB) GetMetadata(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// GetCounter returns a numeric metadata value, zero when absent or empty.
func (db *DB) GetCounter(key string) (decimal.Decimal, error) {
	raw, err := db.GetMetadata(key)
	if err != nil {
		return decimal.Zero, err
	}
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse counter %q: %w", key, err)
	}
	return v, nil
}

// IncrementCounter atomically adds delta to a numeric metadata value and
// returns the new total. The read-add-write runs inside one SQL
// transaction, so concurrent increments from multiple writers cannot lose
// updates.
func (db *DB) IncrementCounter(key string, delta decimal.Decimal) (decimal.Decimal, error) {
	tx, err := db.Begin()
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&raw)
	current := decimal.Zero
	switch {
	case err != nil && err != sql.ErrNoRows:
		// A failed read must not be mistaken for a missing counter; it
		// would overwrite the stored total with just the delta.
		return decimal.Zero, fmt.Errorf("read counter %q: %w", key, err)
	case err == sql.ErrNoRows || raw == "":
		// First increment.
	default:
		current, err = decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse counter %q: %w", key, err)
		}
	}

	total := current.Add(delta)
	_, err = tx.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, total.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("write counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("commit counter: %w", err)
	}

	db.publish(bus.KindMetadataUpdated, key)
	return total, nil
}
