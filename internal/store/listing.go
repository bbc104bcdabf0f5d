package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/amasampo/mesh/internal/bus"
)

// SaveListing upserts a listing keyed by id, stamps it PENDING, enqueues a
// sync entry in the same transaction and notifies the change bus. Putting
// the same id twice overwrites.
func (db *DB) SaveListing(l *Listing) error {
	if l.CreatedAt == "" {
		l.CreatedAt = nowISO()
	}
	if l.Images == nil {
		l.Images = []string{}
	}
	l.SyncStatus = SyncPending

	images, err := json.Marshal(l.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO listings (id, owner_id, owner_name, type, category, title, short_description, description,
			price, negotiable, images, location, created_at, is_boosted, views, whatsapp, in_app_chat, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			owner_name = excluded.owner_name,
			type = excluded.type,
			category = excluded.category,
			title = excluded.title,
			short_description = excluded.short_description,
			description = excluded.description,
			price = excluded.price,
			negotiable = excluded.negotiable,
			images = excluded.images,
			location = excluded.location,
			created_at = excluded.created_at,
			is_boosted = excluded.is_boosted,
			views = excluded.views,
			whatsapp = excluded.whatsapp,
			in_app_chat = excluded.in_app_chat,
			sync_status = excluded.sync_status`,
		l.ID, l.OwnerID, l.OwnerName, l.Type, l.Category, l.Title, l.ShortDescription, l.Description,
		l.Price.String(), l.Negotiable, string(images), l.Location, l.CreatedAt, l.IsBoosted, l.Views,
		l.WhatsApp, l.InAppChat, l.SyncStatus)
	if err != nil {
		return fmt.Errorf("upsert listing: %w", err)
	}

	if err := enqueueOutbox(tx, CollectionListings, l.ID, l, ActionPut); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit listing: %w", err)
	}

	db.publish(bus.KindListingUpdated, l.ID)
	db.notifyEnqueued(CollectionListings)
	return nil
}

// ListListings returns all listings newest first. The created_at column is
// fixed-width ISO-8601, so the string sort is chronological.
func (db *DB) ListListings() ([]Listing, error) {
	rows, err := db.Query(selectListing + ` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanListings(rows)
}

// ListListingsByOwner returns one owner's listings newest first.
func (db *DB) ListListingsByOwner(ownerID string) ([]Listing, error) {
	rows, err := db.Query(selectListing+` WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanListings(rows)
}

// GetListing returns a single listing, or nil when absent.
func (db *DB) GetListing(id string) (*Listing, error) {
	row := db.QueryRow(selectListing+` WHERE id = ?`, id)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// IncrementViews bumps a listing's view counter in place. This is the fast
// read-side path: no PENDING stamp, no outbox entry, no change event. The
// new count is visible on the next read.
func (db *DB) IncrementViews(id string) error {
	_, err := db.Exec(`UPDATE listings SET views = views + 1 WHERE id = ?`, id)
	return err
}

const selectListing = `
	SELECT id, owner_id, owner_name, type, category, title, short_description, description,
		price, negotiable, images, location, created_at, is_boosted, views, whatsapp, in_app_chat, sync_status
	FROM listings`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*Listing, error) {
	var l Listing
	var price, images string
	err := row.Scan(&l.ID, &l.OwnerID, &l.OwnerName, &l.Type, &l.Category, &l.Title,
		&l.ShortDescription, &l.Description, &price, &l.Negotiable, &images, &l.Location,
		&l.CreatedAt, &l.IsBoosted, &l.Views, &l.WhatsApp, &l.InAppChat, &l.SyncStatus)
	if err != nil {
		return nil, err
	}
	l.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	if err := json.Unmarshal([]byte(images), &l.Images); err != nil {
		return nil, fmt.Errorf("parse images: %w", err)
	}
	return &l, nil
}

func scanListings(rows *sql.Rows) ([]Listing, error) {
	var listings []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}
