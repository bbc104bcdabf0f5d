package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amasampo/mesh/internal/bus"
	"github.com/amasampo/mesh/internal/store"
)

func testService(t *testing.T) (*Service, *store.DB) {
	t.Helper()
	b := bus.New()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"), b)
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger, _ := zap.NewDevelopment()
	return NewService(db, b, logger, DefaultPolicy()), db
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestDepositCreditsBalanceAndRecordsTransaction(t *testing.T) {
	s, db := testService(t)
	ctx := context.Background()

	tx, err := s.Deposit(ctx, "u1", dec(100), ProviderMTN)
	require.NoError(t, err)
	assert.Equal(t, store.TxDeposit, tx.Type)
	assert.Equal(t, store.TxStatusSuccess, tx.Status)
	assert.True(t, tx.Amount.Equal(dec(100)))
	assert.NotEmpty(t, tx.Checksum)

	bal, err := db.GetBalance("u1")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec(100)), "balance = %s", bal)

	txs, err := db.ListTransactions("u1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	s, db := testService(t)
	ctx := context.Background()

	for _, amount := range []decimal.Decimal{decimal.Zero, dec(-10)} {
		_, err := s.Deposit(ctx, "u1", amount, ProviderMTN)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	// Nothing was written.
	bal, err := db.GetBalance("u1")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
	txs, err := db.ListTransactions("u1")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestWithdrawDeductsAmountPlusFee(t *testing.T) {
	s, db := testService(t)
	ctx := context.Background()

	_, err := s.Deposit(ctx, "u1", dec(100), ProviderMTN)
	require.NoError(t, err)

	tx, err := s.Withdraw(ctx, "u1", dec(40), ProviderAirtel)
	require.NoError(t, err)
	assert.Equal(t, store.TxWithdrawal, tx.Type)
	assert.True(t, tx.Amount.Equal(dec(45)), "transaction covers amount + fee")

	bal, _ := db.GetBalance("u1")
	assert.True(t, bal.Equal(dec(55)), "balance = %s, want 55", bal)

	revenue, err := db.GetCounter(store.MetaPlatformRevenue)
	require.NoError(t, err)
	assert.True(t, revenue.Equal(dec(5)), "revenue = %s, want the 5 fee", revenue)
}

func TestWithdrawInsufficientFundsLeavesStateUntouched(t *testing.T) {
	s, db := testService(t)
	ctx := context.Background()

	_, err := s.Deposit(ctx, "u1", dec(10), ProviderMTN)
	require.NoError(t, err)

	// Balance 10, requesting 10: needs 15 including the 5 fee.
	_, err = s.Withdraw(ctx, "u1", dec(10), ProviderMTN)
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Needed.Equal(dec(15)), "error must state the exact total incl. fee")
	assert.Contains(t, err.Error(), "15")

	bal, _ := db.GetBalance("u1")
	assert.True(t, bal.Equal(dec(10)), "balance unchanged on failure")

	txs, _ := db.ListTransactions("u1")
	assert.Len(t, txs, 1, "only the deposit transaction exists")

	revenue, _ := db.GetCounter(store.MetaPlatformRevenue)
	assert.True(t, revenue.IsZero(), "no fee booked on failure")
}

func TestBoostSucceedsAtExactPrice(t *testing.T) {
	s, db := testService(t)
	ctx := context.Background()

	require.NoError(t, db.SaveListing(&store.Listing{
		ID: "l1", OwnerID: "u1", Type: store.ListingBuySell, Title: "Sofa", Price: dec(900),
	}))
	_, err := s.Deposit(ctx, "u1", dec(25), ProviderMTN)
	require.NoError(t, err)

	tx, err := s.PayForBoost(ctx, "u1", "l1")
	require.NoError(t, err)
	assert.Equal(t, store.TxBoost, tx.Type)

	bal, _ := db.GetBalance("u1")
	assert.True(t, bal.IsZero(), "balance = %s, want 0", bal)

	l, _ := db.GetListing("l1")
	assert.True(t, l.IsBoosted)

	revenue, _ := db.GetCounter(store.MetaPlatformRevenue)
	assert.True(t, revenue.Equal(dec(25)))
}

func TestBoostInsufficientFunds(t *testing.T) {
	s, db := testService(t)
	ctx := context.Background()

	require.NoError(t, db.SaveListing(&store.Listing{
		ID: "l1", OwnerID: "u1", Type: store.ListingBuySell, Title: "Sofa", Price: dec(900),
	}))
	_, err := s.Deposit(ctx, "u1", dec(24), ProviderMTN)
	require.NoError(t, err)

	_, err = s.PayForBoost(ctx, "u1", "l1")
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)

	bal, _ := db.GetBalance("u1")
	assert.True(t, bal.Equal(dec(24)), "balance unchanged")
	l, _ := db.GetListing("l1")
	assert.False(t, l.IsBoosted, "listing stays unboosted on failure")
	revenue, _ := db.GetCounter(store.MetaPlatformRevenue)
	assert.True(t, revenue.IsZero())
}

func TestBoostUnknownListing(t *testing.T) {
	s, _ := testService(t)
	_, err := s.PayForBoost(context.Background(), "u1", "ghost")
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestHandshakeCommissionMath(t *testing.T) {
	s, db := testService(t)
	ctx := context.Background()

	// Seller has no wallet at all: commission is still booked (soft
	// accounting), the balance never gates it.
	tx, err := s.FinalizeHandshake(ctx, "buyer", "seller", dec(1000))
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(dec(20)), "commission = %s, want exactly 20", tx.Amount)
	assert.Equal(t, store.TxPayment, tx.Type)
	assert.Equal(t, "seller", tx.UserID)

	revenue, _ := db.GetCounter(store.MetaPlatformRevenue)
	assert.True(t, revenue.Equal(dec(20)))

	bal, _ := db.GetBalance("seller")
	assert.True(t, bal.IsZero(), "handshake never moves the principal or debits the seller")
}

func TestConcurrentDepositsDoNotLoseUpdates(t *testing.T) {
	s, db := testService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Deposit(ctx, "u1", dec(100), ProviderMTN)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	bal, err := db.GetBalance("u1")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec(200)), "balance = %s, want 200 (lost update)", bal)

	txs, err := db.ListTransactions("u1")
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestConcurrentMixedOperationsSerialize(t *testing.T) {
	s, db := testService(t)
	ctx := context.Background()

	_, err := s.Deposit(ctx, "u1", dec(1000), ProviderMTN)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Withdraw(ctx, "u1", dec(45), ProviderMTN)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 1000 - 4*(45+5) = 800
	bal, _ := db.GetBalance("u1")
	assert.True(t, bal.Equal(dec(800)), "balance = %s, want 800", bal)
	revenue, _ := db.GetCounter(store.MetaPlatformRevenue)
	assert.True(t, revenue.Equal(dec(20)), "revenue = %s, want 4 fees", revenue)
}

func TestChecksumIsStablePerRecord(t *testing.T) {
	tx := &store.Transaction{ID: "t1", UserID: "u1", Amount: dec(10), Timestamp: "2026-01-01T00:00:00Z"}
	first := checksum(tx)
	second := checksum(tx)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)

	other := &store.Transaction{ID: "t2", UserID: "u1", Amount: dec(10), Timestamp: "2026-01-01T00:00:00Z"}
	assert.NotEqual(t, first, checksum(other))
}
