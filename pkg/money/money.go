// Package money converts between decimal amounts and gateway minor units.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const minorUnitExp = 2

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts an amount into minor units (halalas, cents),
// rounding half away from zero at the second decimal place.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(minorUnitExp).Mul(hundred).IntPart()
}

// FromMinorUnits converts minor units back into a decimal amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorUnitExp)
}

// Parse reads a decimal amount and rejects more than two fractional digits.
func Parse(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if !d.Equal(d.Round(minorUnitExp)) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", raw, minorUnitExp)
	}
	return d, nil
}
