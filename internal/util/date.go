// Package util holds small date helpers shared by form validation.
package util

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage and HTML date-input format.
const DateLayout = "2006-01-02"

// startOfDay returns 00:00:00 of t's calendar day in the local timezone.
func startOfDay(t time.Time) time.Time {
	localTime := t.Local()
	return time.Date(localTime.Year(), localTime.Month(), localTime.Day(), 0, 0, 0, 0, time.Local)
}

// ParseDateLocal parses a YYYY-MM-DD string as the start of that day in local time.
func ParseDateLocal(dateStr string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(dateStr), time.Local)
}

// ValidateNotFutureDate compares calendar days only; today is allowed.
func ValidateNotFutureDate(d time.Time) error {
	// Compare at midnight so any time today passes
	if startOfDay(d).After(startOfDay(time.Now())) {
		return fmt.Errorf("date cannot be in the future")
	}
	return nil
}
