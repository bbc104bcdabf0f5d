package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/amasampo/mesh/internal/bus"
)

// SaveHandshake upserts a handshake record. The store does not enforce
// one handshake per chat; GetHandshakeByChat resolves the ambiguity by
// returning the most recent record.
func (db *DB) SaveHandshake(h *Handshake) error {
	if h.Timestamp == "" {
		h.Timestamp = nowISO()
	}
	if h.Status == "" {
		h.Status = HandshakePending
	}
	h.SyncStatus = SyncPending

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO handshakes (id, chat_id, seller_id, buyer_id, listing_id, agreed_price, status, timestamp, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			agreed_price = excluded.agreed_price,
			status = excluded.status,
			sync_status = excluded.sync_status`,
		h.ID, h.ChatID, h.SellerID, h.BuyerID, h.ListingID, h.AgreedPrice.String(),
		h.Status, h.Timestamp, h.SyncStatus)
	if err != nil {
		return fmt.Errorf("upsert handshake: %w", err)
	}

	if err := enqueueOutbox(tx, CollectionHandshakes, h.ID, h, ActionPut); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit handshake: %w", err)
	}

	db.publish(bus.KindHandshakeUpdated, h.ID)
	db.notifyEnqueued(CollectionHandshakes)
	return nil
}

// GetHandshake returns a handshake by id, or nil when absent.
func (db *DB) GetHandshake(id string) (*Handshake, error) {
	row := db.QueryRow(selectHandshake+` WHERE id = ?`, id)
	return scanHandshake(row)
}

// GetHandshakeByChat returns the most recent handshake for a chat, or nil
// when the chat has none.
func (db *DB) GetHandshakeByChat(chatID string) (*Handshake, error) {
	row := db.QueryRow(selectHandshake+` WHERE chat_id = ? ORDER BY timestamp DESC LIMIT 1`, chatID)
	return scanHandshake(row)
}

const selectHandshake = `
	SELECT id, chat_id, seller_id, buyer_id, listing_id, agreed_price, status, timestamp, sync_status
	FROM handshakes`

func scanHandshake(row rowScanner) (*Handshake, error) {
	var h Handshake
	var price string
	err := row.Scan(&h.ID, &h.ChatID, &h.SellerID, &h.BuyerID, &h.ListingID, &price,
		&h.Status, &h.Timestamp, &h.SyncStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h.AgreedPrice, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse agreed price %q: %w", price, err)
	}
	return &h, nil
}
