package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeAppliesTaxAndDeliveryFee(t *testing.T) {
	cases := []struct {
		name     string
		subtotal float64
		want     Totals
	}{
		{"small order pays delivery", 1000, Totals{Subtotal: 1000, Tax: 190, DeliveryFee: 300, Total: 1490}},
		{"threshold is exclusive", 5000, Totals{Subtotal: 5000, Tax: 950, DeliveryFee: 300, Total: 6250}},
		{"above threshold ships free", 5000.5, Totals{Subtotal: 5000.5, Tax: 950, DeliveryFee: 0, Total: 5950.5}},
		{"tax rounds half away from zero", 50, Totals{Subtotal: 50, Tax: 10, DeliveryFee: 300, Total: 360}},
		{"empty", 0, Totals{Subtotal: 0, Tax: 0, DeliveryFee: 300, Total: 300}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Compute(tc.subtotal))
		})
	}
}

func TestComputeTotalIsSumOfParts(t *testing.T) {
	for subtotal := 0.0; subtotal <= 12000; subtotal += 37.25 {
		got := Compute(subtotal)
		fee := 300.0
		if subtotal > 5000 {
			fee = 0
		}
		want := subtotal + math.Round(subtotal*0.19) + fee
		assert.InDelta(t, want, got.Total, 1e-9, "subtotal %.2f", subtotal)
	}
}

func TestComputeLines(t *testing.T) {
	got := ComputeLines([]Line{{Quantity: 3, UnitPrice: 120.5}, {Quantity: 2, UnitPrice: 99.99}})
	assert.InDelta(t, 561.48, got.Subtotal, 1e-9)
	assert.Equal(t, 107.0, got.Tax)
	assert.Equal(t, 300.0, got.DeliveryFee)
}
