package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/amasampo/mesh/internal/bus"
)

// ErrVersionConflict is returned when a compare-and-swap balance write lost
// a race with another writer. Callers re-read and retry.
var ErrVersionConflict = errors.New("wallet version conflict")

// GetWallet returns a user's wallet, or nil when none exists yet.
func (db *DB) GetWallet(userID string) (*Wallet, error) {
	var w Wallet
	var balance string
	err := db.QueryRow(`
		SELECT user_id, balance, version, last_updated, sync_status
		FROM wallets WHERE user_id = ?`, userID).
		Scan(&w.UserID, &balance, &w.Version, &w.LastUpdated, &w.SyncStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	return &w, nil
}

// GetBalance returns a user's balance, zero when no wallet exists.
func (db *DB) GetBalance(userID string) (decimal.Decimal, error) {
	w, err := db.GetWallet(userID)
	if err != nil {
		return decimal.Zero, err
	}
	if w == nil {
		return decimal.Zero, nil
	}
	return w.Balance, nil
}

// UpdateBalance writes a new balance guarded by the wallet's version.
// expectedVersion 0 asserts the wallet does not exist yet and creates it.
// On a lost race it returns ErrVersionConflict and writes nothing. The
// write stamps the wallet PENDING and enqueues a sync entry atomically.
func (db *DB) UpdateBalance(userID string, newBalance decimal.Decimal, expectedVersion int64) error {
	now := time.Now().UnixMilli()
	w := &Wallet{
		UserID:      userID,
		Balance:     newBalance,
		Version:     expectedVersion + 1,
		LastUpdated: now,
		SyncStatus:  SyncPending,
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var res sql.Result
	if expectedVersion == 0 {
		res, err = tx.Exec(`
			INSERT INTO wallets (user_id, balance, version, last_updated, sync_status)
			VALUES (?, ?, 1, ?, ?)
			ON CONFLICT(user_id) DO NOTHING`,
			userID, newBalance.String(), now, SyncPending)
		w.Version = 1
	} else {
		res, err = tx.Exec(`
			UPDATE wallets SET balance = ?, version = version + 1, last_updated = ?, sync_status = ?
			WHERE user_id = ? AND version = ?`,
			newBalance.String(), now, SyncPending, userID, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}

	if err := enqueueOutbox(tx, CollectionWallets, userID, w, ActionPut); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wallet: %w", err)
	}

	db.publish(bus.KindWalletUpdated, userID)
	db.notifyEnqueued(CollectionWallets)
	return nil
}
