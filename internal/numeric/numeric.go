// Package numeric holds the small price and quantity helpers shared by the
// position, hedge and simulation code. Every helper returns a defined zero
// value on degenerate input instead of failing.
package numeric

import (
	"math"

	"github.com/shopspring/decimal"
)

// Tolerance is the absolute epsilon used for quantity and ratio comparisons.
const Tolerance = 1e-9

// WeightedAverage returns Σ(price·qty)/Σ(qty). Pairs with a non-positive
// price or quantity are ignored; an empty or zero-weight input yields 0.
func WeightedAverage(prices, quantities []float64) float64 {
	n := len(prices)
	if len(quantities) < n {
		n = len(quantities)
	}

	var notional, qty float64
	for i := 0; i < n; i++ {
		if prices[i] <= 0 || quantities[i] <= 0 {
			continue
		}
		notional += prices[i] * quantities[i]
		qty += quantities[i]
	}
	if qty <= 0 {
		return 0
	}
	return notional / qty
}

// QuantityFromInvestment converts a margin amount into contract quantity.
func QuantityFromInvestment(investment, price, leverage float64) float64 {
	if investment <= 0 || price <= 0 || leverage <= 0 {
		return 0
	}
	return investment * leverage / price
}

// InvestmentFromQuantity is the margin required to hold qty at price.
func InvestmentFromQuantity(qty, price, leverage float64) float64 {
	if qty <= 0 || price <= 0 || leverage <= 0 {
		return 0
	}
	return qty * price / leverage
}

// RoundDownToStep floors qty to a multiple of step. A non-positive step
// leaves the quantity untouched.
func RoundDownToStep(qty, step float64) float64 {
	if qty <= 0 {
		return 0
	}
	if step <= 0 {
		return qty
	}
	d := decimal.NewFromFloat(qty)
	s := decimal.NewFromFloat(step)
	out, _ := d.Div(s).Floor().Mul(s).Float64()
	return out
}

// ApplyPercent moves price by pct percent in the direction of sign (+1 up, -1 down).
func ApplyPercent(price, pct, sign float64) float64 {
	if price <= 0 {
		return 0
	}
	return price * (1 + sign*pct/100)
}

// ApproxEqual compares within Tolerance.
func ApproxEqual(a, b float64) bool {
	return math.Abs(a-b) <= Tolerance
}

// IsZero reports whether v is within Tolerance of zero.
func IsZero(v float64) bool {
	return math.Abs(v) <= Tolerance
}

// ClampNonNegative drops float noise below zero.
func ClampNonNegative(v float64) float64 {
	if v < Tolerance {
		return 0
	}
	return v
}
