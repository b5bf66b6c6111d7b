package utils

import (
	"time"
)

// DateLayout is the ISO calendar date layout used on the wire and in archives.
const DateLayout = "2006-01-02"

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TodayUTC returns today's calendar date in UTC.
func TodayUTC() time.Time {
	return DateOnly(time.Now().UTC())
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate formats t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
