package utils

import "time"

// DayKey returns the calendar-date key for t in local time. The circuit
// breaker's daily loss accumulator is keyed by this value, so it rolls
// over naturally at local midnight.
func DayKey(t time.Time) string {
	return t.Local().Format("2006-01-02")
}
