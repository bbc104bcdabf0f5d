// Package currency formats ledger amounts for display. All storage
// and arithmetic stay in the base unit (Zambian Kwacha); conversion
// happens only at the presentation edge with a static rate table.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Base is the unit every stored amount is denominated in.
const Base = "ZMW"

var symbols = map[string]string{
	"ZMW": "ZK",
	"USD": "$",
	"GHS": "₵",
	"NGN": "₦",
	"KES": "KSh",
	"ZAR": "R",
}

var rates = map[string]decimal.Decimal{
	"ZMW": decimal.NewFromInt(1),
	"USD": decimal.NewFromFloat(0.038),
	"GHS": decimal.NewFromFloat(0.5),
	"NGN": decimal.NewFromFloat(0.02),
	"KES": decimal.NewFromFloat(0.2),
}

// Symbol returns the display symbol for a currency code, defaulting to
// the base symbol for unknown codes.
func Symbol(code string) string {
	if s, ok := symbols[code]; ok {
		return s
	}
	return symbols[Base]
}

// Convert translates a base-unit amount into the target currency.
// Unknown codes pass through at rate 1.
func Convert(amount decimal.Decimal, code string) decimal.Decimal {
	if rate, ok := rates[code]; ok {
		return amount.Mul(rate)
	}
	return amount
}

// Format renders a base-unit amount in the target currency with its
// symbol. USD shows cents; everything else rounds to whole units.
func Format(amount decimal.Decimal, code string) string {
	converted := Convert(amount, code)
	places := int32(0)
	if code == "USD" {
		places = 2
	}
	return Symbol(code) + groupThousands(converted.StringFixed(places))
}

// groupThousands inserts commas into the integer part of a fixed
// decimal string.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if hasFrac {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
