package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/amasampo/mesh/internal/bus"
)

// SaveChatSession upserts a chat session keyed by id.
func (db *DB) SaveChatSession(c *ChatSession) error {
	c.SyncStatus = SyncPending

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO chats (id, partner_id, partner_name, last_message, last_timestamp, listing_id, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			partner_name = excluded.partner_name,
			last_message = excluded.last_message,
			last_timestamp = excluded.last_timestamp,
			listing_id = excluded.listing_id,
			sync_status = excluded.sync_status`,
		c.ID, c.PartnerID, c.PartnerName, c.LastMessage, c.LastTimestamp, c.ListingID, c.SyncStatus)
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}

	if err := enqueueOutbox(tx, CollectionChats, c.ID, c, ActionPut); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chat: %w", err)
	}

	db.publish(bus.KindChatNew, c.ID)
	db.notifyEnqueued(CollectionChats)
	return nil
}

// ListChatSessions returns all chat sessions, most recent activity first.
func (db *DB) ListChatSessions() ([]ChatSession, error) {
	rows, err := db.Query(`
		SELECT id, partner_id, partner_name, last_message, last_timestamp, listing_id, sync_status
		FROM chats ORDER BY last_timestamp DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []ChatSession
	for rows.Next() {
		var c ChatSession
		if err := rows.Scan(&c.ID, &c.PartnerID, &c.PartnerName, &c.LastMessage,
			&c.LastTimestamp, &c.ListingID, &c.SyncStatus); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChatSession returns a chat session, or nil when absent.
func (db *DB) GetChatSession(id string) (*ChatSession, error) {
	var c ChatSession
	err := db.QueryRow(`
		SELECT id, partner_id, partner_name, last_message, last_timestamp, listing_id, sync_status
		FROM chats WHERE id = ?`, id).
		Scan(&c.ID, &c.PartnerID, &c.PartnerName, &c.LastMessage, &c.LastTimestamp, &c.ListingID, &c.SyncStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveMessage stores a chat message. Messages are local-only (no outbox
// entry); the chat session carries the synced summary.
func (db *DB) SaveMessage(m *Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp == "" {
		m.Timestamp = nowISO()
	}
	_, err := db.Exec(`
		INSERT INTO messages (id, chat_id, sender_id, body, timestamp)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body`,
		m.ID, m.ChatID, m.SenderID, m.Body, m.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	db.publish(bus.KindMessageNew, m.ChatID)
	return nil
}

// ListMessages returns a chat's messages oldest first.
func (db *DB) ListMessages(chatID string) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, chat_id, sender_id, body, timestamp
		FROM messages WHERE chat_id = ?
		ORDER BY timestamp ASC, id ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Body, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
