package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/amasampo/mesh/internal/bus"
)

// SaveTransaction records a ledger transaction. The table is append-only:
// records are never mutated after creation, but the write is still an
// idempotent upsert so replaying the same id cannot duplicate it.
func (db *DB) SaveTransaction(t *Transaction) error {
	if t.Timestamp == "" {
		t.Timestamp = nowISO()
	}
	t.SyncStatus = SyncPending

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO transactions (id, user_id, amount, type, status, provider, description, checksum, timestamp, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET sync_status = excluded.sync_status`,
		t.ID, t.UserID, t.Amount.String(), t.Type, t.Status, t.Provider, t.Description,
		t.Checksum, t.Timestamp, t.SyncStatus)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	if err := enqueueOutbox(tx, CollectionTransactions, t.ID, t, ActionPut); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	db.publish(bus.KindTransactionNew, t.ID)
	db.notifyEnqueued(CollectionTransactions)
	return nil
}

// ListTransactions returns one user's transactions newest first.
func (db *DB) ListTransactions(userID string) ([]Transaction, error) {
	rows, err := db.Query(`
		SELECT id, user_id, amount, type, status, provider, description, checksum, timestamp, sync_status
		FROM transactions WHERE user_id = ?
		ORDER BY timestamp DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		var amount string
		if err := rows.Scan(&t.ID, &t.UserID, &amount, &t.Type, &t.Status, &t.Provider,
			&t.Description, &t.Checksum, &t.Timestamp, &t.SyncStatus); err != nil {
			return nil, err
		}
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// GetTransaction returns a single transaction, or nil when absent.
func (db *DB) GetTransaction(id string) (*Transaction, error) {
	var t Transaction
	var amount string
	err := db.QueryRow(`
		SELECT id, user_id, amount, type, status, provider, description, checksum, timestamp, sync_status
		FROM transactions WHERE id = ?`, id).
		Scan(&t.ID, &t.UserID, &amount, &t.Type, &t.Status, &t.Provider,
			&t.Description, &t.Checksum, &t.Timestamp, &t.SyncStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &t, nil
}
