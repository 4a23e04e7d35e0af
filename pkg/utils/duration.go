package utils

import (
	"fmt"
	"time"
)

// FormatHoursMinutes renders a duration as "Xh Ym", flooring to whole
// minutes. Negative durations render as "0h 0m".
func FormatHoursMinutes(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	totalMinutes := int(d / time.Minute)
	hours := totalMinutes / 60
	minutes := totalMinutes % 60

	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// TruncateString shortens s to at most maxLen runes, appending an ellipsis
// when truncation occurred.
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	if maxLen <= 3 {
		return string(runes[:maxLen])
	}

	return string(runes[:maxLen-3]) + "..."
}
