package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validation failures raised before any write.
var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrListingNotFound = errors.New("listing not found")
	ErrWalletBusy      = errors.New("wallet busy: concurrent update retries exhausted")
)

// InsufficientFundsError reports the exact total a debit operation needed,
// fee included. Raised before any balance mutation.
type InsufficientFundsError struct {
	Needed    decimal.Decimal
	Fee       decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	if e.Fee.IsPositive() {
		return fmt.Sprintf("insufficient funds: need %s (incl. %s fee), have %s",
			e.Needed, e.Fee, e.Available)
	}
	return fmt.Sprintf("insufficient funds: need %s, have %s", e.Needed, e.Available)
}

// IsValidation reports whether err is a precondition failure the caller
// should surface to the user rather than treat as a system fault.
func IsValidation(err error) bool {
	var insufficient *InsufficientFundsError
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrListingNotFound) ||
		errors.As(err, &insufficient)
}
