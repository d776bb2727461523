package shared

import "math"

// RoundCents rounds an amount to two decimals, half away from zero.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cents converts an amount to integer cents.
func Cents(v float64) int64 {
	return int64(math.Round(v * 100))
}
