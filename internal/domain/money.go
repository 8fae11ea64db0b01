package domain

import "github.com/shopspring/decimal"

// Round2 rounds a money amount to 2 decimal places, half up.
// decimal.Round is half-away-from-zero, which is identical to half-up for
// the non-negative amounts handled here (10.005 -> 10.01).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
