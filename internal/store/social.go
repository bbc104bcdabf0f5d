package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/amasampo/mesh/internal/bus"
)

// SaveClip upserts a clip and enqueues it for sync.
func (db *DB) SaveClip(c *Clip) error {
	if c.CreatedAt == "" {
		c.CreatedAt = nowISO()
	}
	c.SyncStatus = SyncPending

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO clips (id, owner_id, owner_name, video_url, caption, listing_id, likes, views, created_at, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			caption = excluded.caption,
			likes = excluded.likes,
			views = excluded.views,
			sync_status = excluded.sync_status`,
		c.ID, c.OwnerID, c.OwnerName, c.VideoURL, c.Caption, c.ListingID, c.Likes, c.Views,
		c.CreatedAt, c.SyncStatus)
	if err != nil {
		return fmt.Errorf("upsert clip: %w", err)
	}

	if err := enqueueOutbox(tx, CollectionClips, c.ID, c, ActionPut); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clip: %w", err)
	}

	db.publish(bus.KindClipNew, c.ID)
	db.notifyEnqueued(CollectionClips)
	return nil
}

// ListClips returns all clips newest first.
func (db *DB) ListClips() ([]Clip, error) {
	rows, err := db.Query(`
		SELECT id, owner_id, owner_name, video_url, caption, listing_id, likes, views, created_at, sync_status
		FROM clips ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var clips []Clip
	for rows.Next() {
		var c Clip
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.OwnerName, &c.VideoURL, &c.Caption,
			&c.ListingID, &c.Likes, &c.Views, &c.CreatedAt, &c.SyncStatus); err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

// SaveStory stores a story. Stories stay local: no sync entry is enqueued.
func (db *DB) SaveStory(s *Story) error {
	if s.CreatedAt == "" {
		s.CreatedAt = nowISO()
	}
	_, err := db.Exec(`
		INSERT INTO stories (id, owner_id, owner_name, image_url, created_at, is_live)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			image_url = excluded.image_url,
			is_live = excluded.is_live`,
		s.ID, s.OwnerID, s.OwnerName, s.ImageURL, s.CreatedAt, s.IsLive)
	if err != nil {
		return fmt.Errorf("upsert story: %w", err)
	}
	db.publish(bus.KindStoryNew, s.ID)
	return nil
}

// ListStories returns all stories newest first. Expiry is a presentation
// concern, not enforced here.
func (db *DB) ListStories() ([]Story, error) {
	rows, err := db.Query(`
		SELECT id, owner_id, owner_name, image_url, created_at, is_live
		FROM stories ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var stories []Story
	for rows.Next() {
		var s Story
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.OwnerName, &s.ImageURL, &s.CreatedAt, &s.IsLive); err != nil {
			return nil, err
		}
		stories = append(stories, s)
	}
	return stories, rows.Err()
}

// ToggleFollow follows the target when not followed and unfollows it
// otherwise. Returns the new state: true when now following.
func (db *DB) ToggleFollow(targetID string) (bool, error) {
	res, err := db.Exec(`DELETE FROM follows WHERE target_id = ?`, targetID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	following := false
	if n == 0 {
		_, err = db.Exec(`INSERT INTO follows (target_id, created_at) VALUES (?, ?)`,
			targetID, time.Now().UnixMilli())
		if err != nil {
			return false, err
		}
		following = true
	}
	db.publish(bus.KindFollowUpdated, targetID)
	return following, nil
}

// ListFollows returns the followed seller ids.
func (db *DB) ListFollows() ([]string, error) {
	rows, err := db.Query(`SELECT target_id FROM follows ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ToggleFavorite saves a snapshot of the listing when not yet favorited and
// removes it otherwise. Returns true when the listing is now a favorite.
func (db *DB) ToggleFavorite(l *Listing) (bool, error) {
	res, err := db.Exec(`DELETE FROM favorites WHERE listing_id = ?`, l.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	favorited := false
	if n == 0 {
		payload, err := json.Marshal(l)
		if err != nil {
			return false, fmt.Errorf("marshal favorite: %w", err)
		}
		_, err = db.Exec(`INSERT INTO favorites (listing_id, payload, created_at) VALUES (?, ?, ?)`,
			l.ID, string(payload), time.Now().UnixMilli())
		if err != nil {
			return false, err
		}
		favorited = true
	}
	db.publish(bus.KindFavoriteUpdated, l.ID)
	return favorited, nil
}

// ListFavorites returns the favorited listings as saved at favorite time.
func (db *DB) ListFavorites() ([]Listing, error) {
	rows, err := db.Query(`SELECT payload FROM favorites ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var listings []Listing
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var l Listing
		if err := json.Unmarshal([]byte(payload), &l); err != nil {
			return nil, fmt.Errorf("parse favorite: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
