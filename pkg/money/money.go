package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is an exact monetary amount in the smallest currency unit. All
// arithmetic inside the engine happens on this type; conversion to a
// decimal major-unit representation happens only at the system boundary.
type Cents int64

// Zero is the additive identity.
const Zero Cents = 0

// FromDecimal converts a major-unit decimal amount (e.g. 45.00) to cents.
// Amounts with sub-cent precision are rejected rather than rounded: the
// boundary never supplies fractional cents.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	scaled := d.Mul(decimal.NewFromInt(100))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-cent precision", d.String())
	}
	return Cents(scaled.IntPart()), nil
}

// FromDecimalString parses a major-unit decimal string like "45.00".
func FromDecimalString(value string) (Cents, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return FromDecimal(d)
}

// Decimal returns the major-unit decimal representation.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount as a fixed two-place decimal ("45.00").
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Int64 returns the raw cent count.
func (c Cents) Int64() int64 {
	return int64(c)
}

// Add is exact integer addition; summation is order independent.
func (c Cents) Add(other Cents) Cents {
	return c + other
}

// Sub is exact integer subtraction.
func (c Cents) Sub(other Cents) Cents {
	return c - other
}

// MulInt scales by a whole quantity; exact.
func (c Cents) MulInt(qty int64) Cents {
	return c * Cents(qty)
}

// MulRatio multiplies by num/den and rounds to the nearest cent in a
// single step, half rounded away from zero. Multiply-then-round as one
// operation so no intermediate rounding can compound.
func (c Cents) MulRatio(num, den int64) Cents {
	if den == 0 {
		panic("money: zero denominator")
	}
	if den < 0 {
		num, den = -num, -den
	}
	product := int64(c) * num
	if product >= 0 {
		return Cents((2*product + den) / (2 * den))
	}
	return -Cents((-2*product + den) / (2 * den))
}

// ApplyBasisPoints applies a rate expressed in basis points (600 = 6%),
// rounding once per the MulRatio contract.
func (c Cents) ApplyBasisPoints(bps int64) Cents {
	return c.MulRatio(bps, 10000)
}

// Sum adds a sequence of amounts exactly.
func Sum(amounts ...Cents) Cents {
	var total Cents
	for _, amount := range amounts {
		total += amount
	}
	return total
}
