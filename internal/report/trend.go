package report

import (
	"time"

	"teampulse/internal/domain"
)

const (
	TrendImproving = "Improving"
	TrendStable    = "Stable"
	TrendDeclining = "Declining"
)

// trendBand is the hysteresis width in percentage points. Movements inside
// the band read as Stable so low completion volume does not flap the signal.
const trendBand = 5

// Trend compares a current-period completion rate against a prior-period
// baseline. Rates are percentages in [0,100].
func Trend(currentRate, baselineRate float64) string {
	switch {
	case currentRate > baselineRate+trendBand:
		return TrendImproving
	case currentRate < baselineRate-trendBand:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// CompletionRateForMonth is the percentage of tasks completed during the
// given calendar month (UTC) out of tasks created on or before its end.
// Tasks with unparseable creation timestamps leave the denominator;
// 0 when nothing qualifies.
func CompletionRateForMonth(tasks []domain.Task, year int, month time.Month) float64 {
	monthEnd := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	completed, existing := 0, 0
	for _, t := range tasks {
		created, ok := parseTime(&t.CreatedAt)
		if !ok || !created.UTC().Before(monthEnd) {
			continue
		}
		existing++
		if c, ok := parseTime(t.CompletedAt); ok {
			cu := c.UTC()
			if cu.Year() == year && cu.Month() == month {
				completed++
			}
		}
	}
	return percentage(completed, existing)
}
