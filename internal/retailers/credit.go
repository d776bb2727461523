package retailers

import (
	"math"
	"strings"
)

// Tier is the credit badge shown next to a retailer.
type Tier string

const (
	TierGood   Tier = "good"
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
	TierOver   Tier = "over"
)

// Tiers lists badges from healthiest to worst.
func Tiers() []Tier {
	return []Tier{TierGood, TierLow, TierMedium, TierHigh, TierOver}
}

// ParseTier returns the tier named by s, or false.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tiers() {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Credit is the derived credit position of a retailer.
type Credit struct {
	Used        float64 `json:"used"`
	Available   float64 `json:"available"`
	Utilization float64 `json:"utilization"`
	Tier        Tier    `json:"tier"`
}

// CreditUsed is the amount currently drawn: the owed part of the balance.
func CreditUsed(balance float64) float64 {
	return math.Max(0, -balance)
}

// Utilization returns used/limit as a percentage, 0 when there is no limit.
func Utilization(used, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return math.Max(0, used/limit*100)
}

// TierFor classifies a position. Over-limit wins over the percentage bands.
func TierFor(balance, limit float64) Tier {
	if balance < -limit {
		return TierOver
	}
	u := Utilization(CreditUsed(balance), limit)
	switch {
	case u >= 90:
		return TierHigh
	case u >= 70:
		return TierMedium
	case u >= 50:
		return TierLow
	default:
		return TierGood
	}
}

// CreditOf derives the credit view for a balance and limit.
func CreditOf(balance, limit float64) Credit {
	used := CreditUsed(balance)
	return Credit{
		Used:        round2(used),
		Available:   round2(math.Max(0, limit-used)),
		Utilization: round2(Utilization(used, limit)),
		Tier:        TierFor(balance, limit),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// utilizationSQL mirrors Utilization over the retailers table.
const utilizationSQL = `(CASE WHEN credit_limit > 0 THEN GREATEST(0, -balance) / credit_limit * 100 ELSE 0 END)`

// tierSQL returns a predicate selecting retailers in tier t.
func tierSQL(t Tier) string {
	notOver := `balance >= -credit_limit`
	switch t {
	case TierOver:
		return `balance < -credit_limit`
	case TierHigh:
		return notOver + ` AND ` + utilizationSQL + ` >= 90`
	case TierMedium:
		return notOver + ` AND ` + utilizationSQL + ` >= 70 AND ` + utilizationSQL + ` < 90`
	case TierLow:
		return notOver + ` AND ` + utilizationSQL + ` >= 50 AND ` + utilizationSQL + ` < 70`
	default:
		return notOver + ` AND ` + utilizationSQL + ` < 50`
	}
}
