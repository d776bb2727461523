package retailers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierFor(t *testing.T) {
	cases := []struct {
		name    string
		balance float64
		limit   float64
		want    Tier
	}{
		{"credit in hand", 500, 10000, TierGood},
		{"just below half", -4999, 10000, TierGood},
		{"half", -5000, 10000, TierLow},
		{"just below seventy", -6999.99, 10000, TierLow},
		{"seventy", -7000, 10000, TierMedium},
		{"eighty nine", -8999, 10000, TierMedium},
		{"ninety", -9000, 10000, TierHigh},
		{"at limit", -10000, 10000, TierHigh},
		{"over limit", -10000.01, 10000, TierOver},
		{"no limit no debt", 0, 0, TierGood},
		{"no limit with debt", -1, 0, TierOver},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TierFor(tc.balance, tc.limit))
		})
	}
}

func TestUtilizationDoesNotDivideByZero(t *testing.T) {
	assert.Equal(t, 0.0, Utilization(100, 0))
	assert.Equal(t, 0.0, Utilization(100, -5))
	assert.Equal(t, 150.0, Utilization(1500, 1000))
}

func TestCreditOf(t *testing.T) {
	c := CreditOf(-2500, 10000)
	assert.Equal(t, Credit{Used: 2500, Available: 7500, Utilization: 25, Tier: TierGood}, c)

	c = CreditOf(-12000, 10000)
	assert.Equal(t, 12000.0, c.Used)
	assert.Equal(t, 0.0, c.Available)
	assert.Equal(t, 120.0, c.Utilization)
	assert.Equal(t, TierOver, c.Tier)

	c = CreditOf(300, 1000)
	assert.Equal(t, 0.0, c.Used)
	assert.Equal(t, 1000.0, c.Available)
}

func TestParseTier(t *testing.T) {
	tier, ok := ParseTier(" High ")
	assert.True(t, ok)
	assert.Equal(t, TierHigh, tier)
	_, ok = ParseTier("critical")
	assert.False(t, ok)
}
