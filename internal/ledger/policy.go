package ledger

import "github.com/shopspring/decimal"

// Policy holds the marketplace's monetary rules. All amounts are in the
// base currency unit; presentation conversion happens elsewhere.
type Policy struct {
	CommissionRate decimal.Decimal // share of agreed price on a completed handshake
	WithdrawalFee  decimal.Decimal // flat fee per withdrawal
	BoostPrice     decimal.Decimal // flat price for a listing boost
}

// DefaultPolicy returns the platform defaults: 2% deal commission, 5 unit
// withdrawal fee, 25 unit boost price.
func DefaultPolicy() Policy {
	return Policy{
		CommissionRate: decimal.NewFromFloat(0.02),
		WithdrawalFee:  decimal.NewFromInt(5),
		BoostPrice:     decimal.NewFromInt(25),
	}
}

// Payment providers.
const (
	ProviderMTN    = "MTN"
	ProviderAirtel = "AIRTEL"
	ProviderWallet = "WALLET"
)
