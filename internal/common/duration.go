package common

import (
	"fmt"
	"strings"
	"time"
)

// FormatDurationRemaining formats a duration in human readable format (1 day, 2 hours, 3 minutes, 4 seconds)
func FormatDurationRemaining(d time.Duration) string {
	if d <= 0 {
		return "0 seconds"
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	parts = appendUnit(parts, days, "day")
	parts = appendUnit(parts, hours, "hour")
	parts = appendUnit(parts, minutes, "minute")
	parts = appendUnit(parts, seconds, "second")

	if len(parts) == 0 {
		return "0 seconds"
	}

	return strings.Join(parts, ", ")
}

func appendUnit(parts []string, value int, unit string) []string {
	switch {
	case value == 1:
		return append(parts, "1 "+unit)
	case value > 1:
		return append(parts, fmt.Sprintf("%d %ss", value, unit))
	}
	return parts
}
