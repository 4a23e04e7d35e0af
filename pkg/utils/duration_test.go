package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatHoursMinutes(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"full lockout", 3 * time.Hour, "3h 0m"},
		{"hours and minutes", 2*time.Hour + 15*time.Minute, "2h 15m"},
		{"floors seconds", 1*time.Hour + 59*time.Minute + 59*time.Second, "1h 59m"},
		{"minutes only", 5 * time.Minute, "0h 5m"},
		{"zero", 0, "0h 0m"},
		{"negative clamps to zero", -time.Minute, "0h 0m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatHoursMinutes(tt.duration))
		})
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "exact", TruncateString("exact", 5))
	assert.Equal(t, "trunca...", TruncateString("truncated text", 9))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
}
