package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY MATH - The bit-exact rounding contract
// =============================================================================

var sixty = decimal.NewFromInt(60)

// WorkAmount computes the billable amount for one work unit:
// ratePerHour * (durationMinutes / 60), rounded half-up to the nearest whole
// currency unit. Every amount in the system goes through this function so the
// rounding behaves identically everywhere.
func WorkAmount(ratePerHour decimal.Decimal, durationMinutes int) decimal.Decimal {
	raw := ratePerHour.Mul(decimal.NewFromInt(int64(durationMinutes))).Div(sixty)
	// decimal.Round ties away from zero; rates and durations are
	// non-negative, so this is exactly half-up.
	return raw.Round(0)
}

// ValidateRate rejects negative rates before any store access.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return ErrInvalidRate
	}
	return nil
}

// MustParseDecimal parses s, returning zero on malformed input. Store scan
// helper; persisted values are always engine-formatted.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
