package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/amasampo/mesh/internal/bus"
)

// syncedTables maps outbox collections to the table and key column used
// when restamping the live record after a successful upload. Collections
// missing here (messages, stories, follows, favorites, metadata) are never
// enqueued.
var syncedTables = map[string]struct {
	table  string
	keyCol string
}{
	CollectionListings:     {"listings", "id"},
	CollectionChats:        {"chats", "id"},
	CollectionWallets:      {"wallets", "user_id"},
	CollectionTransactions: {"transactions", "id"},
	CollectionHandshakes:   {"handshakes", "id"},
	CollectionClips:        {"clips", "id"},
}

// enqueueOutbox appends a sync entry inside the caller's transaction so a
// record and its pending upload commit atomically. The payload is a deep
// copy of the record at enqueue time.
func enqueueOutbox(tx *sql.Tx, collection, recordKey string, record any, action string) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	now := time.Now().UnixMilli()
	_, err = tx.Exec(`
		INSERT INTO outbox (id, collection, record_key, payload, action, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), collection, recordKey, string(payload), action, OutboxQueued, now)
	if err != nil {
		return fmt.Errorf("enqueue outbox: %w", err)
	}
	return nil
}

// notifyEnqueued signals the flusher that new work is available. Separate
// from the per-record change event.
func (db *DB) notifyEnqueued(collection string) {
	db.publish(bus.KindOutboxEnqueued, collection)
}

// PendingOutbox returns queued entries due at or before now, oldest first.
func (db *DB) PendingOutbox(now int64) ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, collection, record_key, payload, action, status, attempts, last_error, next_attempt_at, created_at
		FROM outbox
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY created_at ASC`, OutboxQueued, now)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var payload string
		if err := rows.Scan(&e.ID, &e.Collection, &e.RecordKey, &payload, &e.Action, &e.Status, &e.Attempts, &e.LastError, &e.NextAttemptAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = []byte(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountOutbox returns the number of entries not yet successfully uploaded,
// dead letters included.
func (db *DB) CountOutbox() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&n)
	return n, err
}

// CountDeadLetters returns the number of entries abandoned after exhausting
// their retries.
func (db *DB) CountDeadLetters() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM outbox WHERE status = ?`, OutboxDead).Scan(&n)
	return n, err
}

// RequeueInFlightOutbox returns entries left in_flight by an earlier
// crash to the queue, due immediately. Replaying an entry whose upload
// actually finished is harmless since the SYNCED restamp is idempotent.
func (db *DB) RequeueInFlightOutbox() (int64, error) {
	res, err := db.Exec(`UPDATE outbox SET status = ? WHERE status = ?`, OutboxQueued, OutboxInFlight)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkOutboxInFlight moves an entry to in_flight before its upload starts.
func (db *DB) MarkOutboxInFlight(id string) error {
	_, err := db.Exec(`UPDATE outbox SET status = ? WHERE id = ?`, OutboxInFlight, id)
	return err
}

// RequeueOutbox returns a failed entry to the queue with a backoff deadline.
func (db *DB) RequeueOutbox(id string, attempts int, nextAttemptAt int64, lastError string) error {
	_, err := db.Exec(`
		UPDATE outbox SET status = ?, attempts = ?, next_attempt_at = ?, last_error = ?
		WHERE id = ?`,
		OutboxQueued, attempts, nextAttemptAt, lastError, id)
	return err
}

// MarkOutboxDead parks an entry after its retries are exhausted. Dead
// letters stay visible to the operator instead of being dropped.
func (db *DB) MarkOutboxDead(id string, attempts int, lastError string) error {
	_, err := db.Exec(`
		UPDATE outbox SET status = ?, attempts = ?, last_error = ? WHERE id = ?`,
		OutboxDead, attempts, lastError, id)
	return err
}

// DeleteOutbox removes a fully processed entry. Deleting an absent entry is
// a no-op.
func (db *DB) DeleteOutbox(id string) error {
	_, err := db.Exec(`DELETE FROM outbox WHERE id = ?`, id)
	return err
}

// MarkRecordSynced re-reads the live record for an uploaded entry and
// stamps it SYNCED. Returns false when the record no longer exists.
// Restamping an already-synced record is a safe no-op, so replaying an
// entry after a crash cannot corrupt state.
func (db *DB) MarkRecordSynced(collection, recordKey string) (bool, error) {
	t, ok := syncedTables[collection]
	if !ok {
		return false, fmt.Errorf("collection %q is not synced", collection)
	}
	res, err := db.Exec(
		fmt.Sprintf(`UPDATE %s SET sync_status = ? WHERE %s = ?`, t.table, t.keyCol),
		SyncSynced, recordKey)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
