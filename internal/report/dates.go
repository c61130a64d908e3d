package report

import (
	"math"
	"time"
)

// parseTime reads a stored timestamp. Entities carry RFC3339 strings but
// imported snapshots sometimes hold bare dates, so both are accepted.
// A nil, empty or unparseable value reports ok=false and the caller falls
// back to its documented default.
func parseTime(s *string) (time.Time, bool) {
	if s == nil || *s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, *s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", *s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// pastDay reports whether now is strictly after deadline at day
// granularity. A deadline earlier today is not yet past.
func pastDay(now, deadline time.Time) bool {
	return dayStart(now).After(dayStart(deadline))
}

// daysBetween is the whole number of day boundaries between a and b.
func daysBetween(a, b time.Time) int {
	return int(dayStart(b).Sub(dayStart(a)).Hours() / 24)
}

// round1 rounds to one decimal place, resolving any numeric instability
// to 0 so report documents never carry NaN or Inf.
func round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10) / 10
}

// percentage computes round(count/total*100, 1), 0 when total is 0.
func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(count) / float64(total) * 100)
}
