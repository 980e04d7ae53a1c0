// Package utils provides utility functions for the application.
package utils

import (
	"strings"
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// UTCNowAdd returns the current UTC time plus the given duration
func UTCNowAdd(d time.Duration) time.Time {
	return UTCNow().Add(d)
}

// IsExpired checks if the given time is in the past (expired)
func IsExpired(t time.Time) bool {
	return UTCNow().After(t)
}

// TodayUTC returns midnight of the current UTC day
func TodayUTC() time.Time {
	return StartOfDay(UTCNow())
}

// StartOfDay truncates t to midnight in UTC
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string (or an RFC3339 timestamp) into a UTC day
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(t), nil
}

// ParseDatePtr returns nil for blank or malformed input
func ParseDatePtr(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil
	}
	return &t
}

// FormatDatePtr renders a nullable date as YYYY-MM-DD
func FormatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(DateLayout)
}
