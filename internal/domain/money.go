package domain

import "github.com/shopspring/decimal"

// PriceFloor is the lowest price any instrument may reach.
const PriceFloor = 0.01

// RoundPrice rounds a price to cents for display and persistence.
// In-memory prices keep full precision so the model does not drift.
func RoundPrice(p float64) float64 {
	f, _ := decimal.NewFromFloat(p).Round(2).Float64()
	return f
}

// RoundPercent rounds a percentage to four decimal places.
func RoundPercent(p float64) float64 {
	f, _ := decimal.NewFromFloat(p).Round(4).Float64()
	return f
}

// Midpoint returns the average of two prices computed in decimal so that
// e.g. 101 and 99 yield exactly 100.
func Midpoint(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Div(decimal.NewFromInt(2)).Float64()
	return f
}
