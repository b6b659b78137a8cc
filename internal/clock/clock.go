// Package clock converts between the textual clock values stored on time
// entries ("HH:MM" / "HH:MM:SS", naive local time) and minutes/hours.
package clock

import (
	"fmt"
	"strconv"
	"strings"
)

// ToMinutes parses an "HH:MM" or "HH:MM:SS" clock value into minutes since
// midnight. The second return value is false for empty or malformed input;
// callers must check it before using the minutes.
func ToMinutes(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	if h < 0 || m < 0 || m >= 60 {
		return 0, false
	}
	return h*60 + m, true
}

// MinutesToHours converts minutes to fractional hours.
func MinutesToHours(min int) float64 {
	return float64(min) / 60.0
}

// FormatDisplay truncates an "HH:MM:SS" value to "HH:MM" for display.
// Empty input yields an empty string.
func FormatDisplay(s string) string {
	if len(s) < 5 {
		return s
	}
	return s[:5]
}

// Stamp renders minutes since midnight as a stored "HH:MM:SS" value.
func Stamp(min int) string {
	return fmt.Sprintf("%02d:%02d:00", min/60, min%60)
}
