// Package pricing holds the arithmetic shared by carts, orders and invoices.
package pricing

import "math"

// Policy describes tax and delivery rules applied to a subtotal.
type Policy struct {
	TaxRate               float64
	FreeDeliveryThreshold float64
	DeliveryFee           float64
}

// DefaultPolicy is the storefront policy: 19% tax, 300 delivery fee waived above 5000.
var DefaultPolicy = Policy{
	TaxRate:               0.19,
	FreeDeliveryThreshold: 5000,
	DeliveryFee:           300,
}

// Totals is the breakdown displayed on carts, orders and invoices.
type Totals struct {
	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	DeliveryFee float64 `json:"delivery_fee"`
	Total       float64 `json:"total"`
}

// Line is a priced quantity.
type Line struct {
	Quantity  int
	UnitPrice float64
}

// LineTotal returns quantity * unit price rounded to cents.
func LineTotal(quantity int, unitPrice float64) float64 {
	return math.Round(float64(quantity)*unitPrice*100) / 100
}

// Subtotal sums line totals.
func Subtotal(lines []Line) float64 {
	var sum float64
	for _, l := range lines {
		sum += LineTotal(l.Quantity, l.UnitPrice)
	}
	return math.Round(sum*100) / 100
}

// Compute applies the policy to subtotal. Tax is rounded to whole units.
func (p Policy) Compute(subtotal float64) Totals {
	tax := math.Round(subtotal * p.TaxRate)
	fee := p.DeliveryFee
	if subtotal > p.FreeDeliveryThreshold {
		fee = 0
	}
	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		Total:       subtotal + tax + fee,
	}
}

// Compute applies DefaultPolicy.
func Compute(subtotal float64) Totals {
	return DefaultPolicy.Compute(subtotal)
}

// ComputeLines sums lines and applies DefaultPolicy.
func ComputeLines(lines []Line) Totals {
	return DefaultPolicy.Compute(Subtotal(lines))
}
