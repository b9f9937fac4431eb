// Package money holds currency helpers. Amounts are decimal and rounded half away from zero to cents.
package money

import "github.com/shopspring/decimal"

// Round2 rounds d to 2 decimal places, half away from zero (2.025 -> 2.03, -2.025 -> -2.03).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromFloat converts a stored float to a decimal using its shortest representation, so 10.125
// becomes exactly 10.125 rather than its binary approximation.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Float converts d for storage.
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Percent returns round2(amount * rate / 100).
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(rate).Div(decimal.NewFromInt(100)))
}
