// Package ledger enforces the marketplace's monetary rules on top of the
// store. Each operation is a read-validate-write sequence that must look
// atomic to the rest of the app even though the store has no multi-key
// transactions: a per-user lock serializes same-process writers and the
// wallet version check catches everything else.
package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/amasampo/mesh/internal/bus"
	"github.com/amasampo/mesh/internal/store"
)

const casRetries = 5

// Service is the payment engine.
type Service struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	policy Policy

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewService creates a ledger service with the given policy.
func NewService(db *store.DB, b *bus.Bus, logger *zap.Logger, policy Policy) *Service {
	return &Service{
		db:        db,
		bus:       b,
		logger:    logger,
		policy:    policy,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// Policy returns the active monetary rules.
func (s *Service) Policy() Policy {
	return s.policy
}

func (s *Service) lockUser(userID string) func() {
	s.mu.Lock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// adjustBalance applies delta to a user's balance after check passes
// against the freshest read, retrying on version conflicts. No transaction
// record or counter is written here; callers do that after the balance
// write succeeds.
func (s *Service) adjustBalance(userID string, delta decimal.Decimal, check func(balance decimal.Decimal) error) (decimal.Decimal, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		w, err := s.db.GetWallet(userID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("read wallet: %w", err)
		}
		balance := decimal.Zero
		var version int64
		if w != nil {
			balance = w.Balance
			version = w.Version
		}
		if check != nil {
			if err := check(balance); err != nil {
				return decimal.Zero, err
			}
		}
		next := balance.Add(delta)
		err = s.db.UpdateBalance(userID, next, version)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("write balance: %w", err)
		}
		return next, nil
	}
	return decimal.Zero, ErrWalletBusy
}

// Deposit credits amount to the user's wallet and records a DEPOSIT
// transaction. Fails with ErrInvalidAmount before any write when amount is
// not positive.
func (s *Service) Deposit(_ context.Context, userID string, amount decimal.Decimal, provider string) (*store.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	unlock := s.lockUser(userID)
	defer unlock()

	newBalance, err := s.adjustBalance(userID, amount, nil)
	if err != nil {
		return nil, err
	}

	tx := &store.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Amount:      amount,
		Type:        store.TxDeposit,
		Status:      store.TxStatusSuccess,
		Provider:    provider,
		Description: fmt.Sprintf("Mobile Money Top-up (%s)", provider),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	tx.Checksum = checksum(tx)
	if err := s.db.SaveTransaction(tx); err != nil {
		return nil, fmt.Errorf("record deposit: %w", err)
	}

	s.logger.Info("deposit processed",
		zap.String("user_id", userID),
		zap.String("amount", amount.String()),
		zap.String("new_balance", newBalance.String()))
	s.alert(fmt.Sprintf("Vault sync: +%s", amount), bus.AlertSuccess)
	return tx, nil
}

// Withdraw debits amount plus the flat fee. Fails with an
// InsufficientFundsError stating the exact total needed when the balance
// cannot cover it; on failure nothing is written.
func (s *Service) Withdraw(_ context.Context, userID string, amount decimal.Decimal, provider string) (*store.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	unlock := s.lockUser(userID)
	defer unlock()

	total := amount.Add(s.policy.WithdrawalFee)
	_, err := s.adjustBalance(userID, total.Neg(), func(balance decimal.Decimal) error {
		if balance.LessThan(total) {
			return &InsufficientFundsError{Needed: total, Fee: s.policy.WithdrawalFee, Available: balance}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tx := &store.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Amount:      total,
		Type:        store.TxWithdrawal,
		Status:      store.TxStatusSuccess,
		Provider:    provider,
		Description: fmt.Sprintf("Withdrawal (incl. %s service fee)", s.policy.WithdrawalFee),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	tx.Checksum = checksum(tx)
	if err := s.db.SaveTransaction(tx); err != nil {
		return nil, fmt.Errorf("record withdrawal: %w", err)
	}

	if _, err := s.db.IncrementCounter(store.MetaPlatformRevenue, s.policy.WithdrawalFee); err != nil {
		return nil, fmt.Errorf("track fee revenue: %w", err)
	}

	s.logger.Info("withdrawal processed",
		zap.String("user_id", userID),
		zap.String("amount", amount.String()),
		zap.String("fee", s.policy.WithdrawalFee.String()))
	return tx, nil
}

// PayForBoost charges the boost price, flags the listing as boosted and
// books the price as platform revenue. Fails with an
// InsufficientFundsError before any mutation when the balance is short.
func (s *Service) PayForBoost(_ context.Context, userID, listingID string) (*store.Transaction, error) {
	listing, err := s.db.GetListing(listingID)
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	if listing == nil {
		return nil, ErrListingNotFound
	}

	unlock := s.lockUser(userID)
	defer unlock()

	price := s.policy.BoostPrice
	_, err = s.adjustBalance(userID, price.Neg(), func(balance decimal.Decimal) error {
		if balance.LessThan(price) {
			return &InsufficientFundsError{Needed: price, Fee: decimal.Zero, Available: balance}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tx := &store.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Amount:      price,
		Type:        store.TxBoost,
		Status:      store.TxStatusSuccess,
		Provider:    ProviderWallet,
		Description: "Mesh visibility upgrade (24h)",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	tx.Checksum = checksum(tx)
	if err := s.db.SaveTransaction(tx); err != nil {
		return nil, fmt.Errorf("record boost: %w", err)
	}

	listing.IsBoosted = true
	if err := s.db.SaveListing(listing); err != nil {
		return nil, fmt.Errorf("flag listing boosted: %w", err)
	}

	if _, err := s.db.IncrementCounter(store.MetaPlatformRevenue, price); err != nil {
		return nil, fmt.Errorf("track boost revenue: %w", err)
	}

	s.logger.Info("boost processed",
		zap.String("user_id", userID),
		zap.String("listing_id", listingID))
	s.alert("Node boosted! Visibility increased.", bus.AlertSuccess)
	return tx, nil
}

// FinalizeHandshake books the platform commission on a completed deal: a
// PAYMENT transaction attributed to the seller plus a platform-revenue
// increment. The seller's balance never gates this (soft accounting); the
// principal settles out of band between buyer and seller.
func (s *Service) FinalizeHandshake(_ context.Context, buyerID, sellerID string, agreedPrice decimal.Decimal) (*store.Transaction, error) {
	if !agreedPrice.IsPositive() {
		return nil, ErrInvalidAmount
	}

	commission := agreedPrice.Mul(s.policy.CommissionRate)

	tx := &store.Transaction{
		ID:          uuid.New().String(),
		UserID:      sellerID,
		Amount:      commission,
		Type:        store.TxPayment,
		Status:      store.TxStatusSuccess,
		Provider:    ProviderWallet,
		Description: fmt.Sprintf("Deal commission (%s%%) - handshake", s.policy.CommissionRate.Mul(decimal.NewFromInt(100))),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	tx.Checksum = checksum(tx)
	if err := s.db.SaveTransaction(tx); err != nil {
		return nil, fmt.Errorf("record commission: %w", err)
	}

	if _, err := s.db.IncrementCounter(store.MetaPlatformRevenue, commission); err != nil {
		return nil, fmt.Errorf("track commission revenue: %w", err)
	}

	s.logger.Info("handshake finalized",
		zap.String("buyer_id", buyerID),
		zap.String("seller_id", sellerID),
		zap.String("agreed_price", agreedPrice.String()),
		zap.String("commission", commission.String()))
	return tx, nil
}

func (s *Service) alert(message, alertType string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      bus.KindGlobalAlert,
		Timestamp: time.Now(),
		Payload:   bus.Alert{Message: message, Type: alertType},
	})
}

// checksum derives a short integrity fingerprint for a transaction record.
func checksum(t *store.Transaction) string {
	raw := fmt.Sprintf("%s-%s-%s-%s", t.ID, t.UserID, t.Amount, t.Timestamp)
	enc := []byte(base64.StdEncoding.EncodeToString([]byte(raw)))
	for i, j := 0, len(enc)-1; i < j; i, j = i+1, j-1 {
		enc[i], enc[j] = enc[j], enc[i]
	}
	return string(enc)
}
