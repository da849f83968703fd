package utils

import (
	"strings"
	"time"
)

const (
	layoutDate     = "2006-01-02"
	layoutDateTime = "2006-01-02 15:04:05"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// NowUTC returns current time in UTC, truncated to the precision the store keeps.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// ParseDate parses YYYY-MM-DD in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(layoutDate, strings.TrimSpace(s), time.UTC)
}

// ParseDateOrDateTime accepts YYYY-MM-DD, "YYYY-MM-DD HH:MM:SS" or RFC3339.
func ParseDateOrDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(layoutDateTime, s, time.UTC); err == nil {
		return t, nil
	}
	return ParseDate(s)
}

// FormatDate formats time to YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(layoutDate)
}

// FormatDateTime formats time to "YYYY-MM-DD HH:MM:SS" in UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(layoutDateTime)
}
