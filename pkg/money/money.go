package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every formatted amount
const CurrencySymbol = "R"

const minorUnitExp int32 = -2 // amounts are stored in cents

// ToDecimal converts an amount in cents to a decimal in major units
func ToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, minorUnitExp)
}

// FromDecimal converts major units to cents, rounding half away from zero
func FromDecimal(d decimal.Decimal) int64 {
	return d.Shift(-minorUnitExp).Round(0).IntPart()
}

// Parse reads a major-unit amount such as "110.50" into cents
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// Format renders an amount in cents for display, e.g. "R 110.00"
func Format(cents int64) string {
	return fmt.Sprintf("%s %s", CurrencySymbol, ToDecimal(cents).StringFixed(2))
}
