// Package money holds the rounding policy shared by every billing computation.
//
// Amounts are shopspring decimals. Intermediate products (units times rate)
// are rounded to cents; invoice totals are rounded to whole currency units.
// Both stages round half away from zero.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// CentPlaces is the scale of intermediate line amounts.
	CentPlaces int32 = 2
	// UnitPlaces is the scale of invoice totals.
	UnitPlaces int32 = 0
	// RatePlaces is the stored scale of utility rates.
	RatePlaces int32 = 4
	// ColumnDigits is the precision of every stored amount, unit and rate.
	ColumnDigits int32 = 12
)

// Round2 rounds an intermediate amount to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(CentPlaces)
}

// RoundUnit rounds a total to whole currency units.
func RoundUnit(d decimal.Decimal) decimal.Decimal {
	return d.Round(UnitPlaces)
}

// Max0 clamps negative amounts to zero.
func Max0(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Sum adds the provided amounts without rounding.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total
}

// Fits reports whether d can be stored in a numeric(ColumnDigits, places)
// column without rounding or overflow.
func Fits(d decimal.Decimal, places int32) bool {
	if !d.Truncate(places).Equal(d) {
		return false
	}
	return d.Abs().LessThan(decimal.New(1, ColumnDigits-places))
}

// Parse converts caller supplied text into a decimal amount.
func Parse(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return d, nil
}

// ParseOptional returns nil for blank input.
func ParseOptional(raw string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	d, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Format renders an amount with cent precision for display and logs.
func Format(d decimal.Decimal) string {
	return d.StringFixed(CentPlaces)
}
