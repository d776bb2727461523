package payments

import (
	"fmt"
	"math"
	"time"

	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

const (
	dateLayout     = "2006-01-02"
	maxReportRange = 92
)

// Discrepancy returns actual-expected rounded to cents and whether it is
// material. The comparison runs on integer cents so float noise below a cent
// never flags a day.
func Discrepancy(expected, actual float64) (float64, bool) {
	diff := shared.Cents(actual) - shared.Cents(expected)
	return float64(diff) / 100, diff != 0
}

// ParseDay parses a YYYY-MM-DD calendar day in UTC.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", shared.ErrValidation, s)
	}
	return t, nil
}

// ParsePeriod validates an inclusive day range of at most 92 days.
func ParsePeriod(from, to string) (Period, error) {
	f, err := ParseDay(from)
	if err != nil {
		return Period{}, err
	}
	t, err := ParseDay(to)
	if err != nil {
		return Period{}, err
	}
	if f.After(t) {
		return Period{}, fmt.Errorf("%w: from must not be after to", shared.ErrValidation)
	}
	if days := int(math.Round(t.Sub(f).Hours()/24)) + 1; days > maxReportRange {
		return Period{}, fmt.Errorf("%w: range may not exceed %d days", shared.ErrValidation, maxReportRange)
	}
	return Period{From: f, To: t}, nil
}

// End is the exclusive upper bound of the period.
func (p Period) End() time.Time {
	return p.To.AddDate(0, 0, 1)
}

// MonthToDate is the default summary period ending on now.
func MonthToDate(now time.Time) Period {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Period{From: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), To: day}
}
