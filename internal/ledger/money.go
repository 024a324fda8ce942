package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance used when comparing monetary sums.
var Epsilon = decimal.New(1, -2)

// MaxAmount is the largest amount a single line or entry may carry. Stored
// cents must fit in an int64 with room for summing many lines.
var MaxAmount = decimal.New(1, 13)

// Round rounds an amount to cents, half to even.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// CheckAmount rejects amounts larger than MaxAmount.
func CheckAmount(d decimal.Decimal) error {
	if d.Abs().GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: %s exceeds %s", ErrInvalidAmount, d.String(), MaxAmount.StringFixed(2))
	}
	return nil
}

// Equal reports whether two amounts agree to the cent.
func Equal(a, b decimal.Decimal) bool {
	return Round(a).Equal(Round(b))
}

// WithinEpsilon reports whether |a-b| <= Epsilon.
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Epsilon)
}

// ToMinorUnits converts an amount to integer cents for storage.
func ToMinorUnits(d decimal.Decimal) int64 {
	return Round(d).Shift(2).IntPart()
}

// FromMinorUnits converts stored cents back to an amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ParseAmount parses a decimal string like "180.00". Negative amounts are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	return Round(d), nil
}

// FormatAmount renders an amount with two decimals. E.g. 1050.5 -> "1050.50".
func FormatAmount(d decimal.Decimal) string {
	return Round(d).StringFixed(2)
}
