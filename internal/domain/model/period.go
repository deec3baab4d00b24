package model

import "time"

// CanonicalZone is the single time zone every day and month boundary is computed in.
var CanonicalZone = time.UTC

type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// ShouldReset reports whether a counter last reset at lastResetAt has crossed
// its period boundary by now. A zero lastResetAt always resets.
func ShouldReset(lastResetAt, now time.Time, g Granularity) bool {
	if lastResetAt.IsZero() {
		return true
	}
	ly, lm, ld := lastResetAt.In(CanonicalZone).Date()
	ny, nm, nd := now.In(CanonicalZone).Date()
	switch g {
	case GranularityMonth:
		return ly != ny || lm != nm
	default:
		return ly != ny || lm != nm || ld != nd
	}
}

// CalendarDay truncates t to midnight of its day in CanonicalZone.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.In(CanonicalZone).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, CanonicalZone)
}

// DaysBetween returns the number of calendar days from a to b (negative when b is earlier).
func DaysBetween(a, b time.Time) int {
	return int(CalendarDay(b).Sub(CalendarDay(a)).Hours() / 24)
}
