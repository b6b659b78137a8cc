package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatHours(t *testing.T) {
	assert.Equal(t, "0h 00m", formatHours(0))
	assert.Equal(t, "1h 30m", formatHours(1.5))
	assert.Equal(t, "0h 05m", formatHours(5.0/60.0))
	assert.Equal(t, "8h 00m", formatHours(7.9999))
	assert.Equal(t, "25h 15m", formatHours(25.25))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "exact", truncateString("exact", 5))
	assert.Equal(t, "long st...", truncateString("long string here", 10))
	assert.Equal(t, "ab", truncateString("abcdef", 2))
}

func TestFormatTable(t *testing.T) {
	out := formatTable(
		[]string{"Name", "Hours"},
		[][]string{
			{"Development", "1h 30m"},
			{"QA", "0h 45m"},
		},
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Name"))
	assert.Contains(t, lines[1], "----")
	// Columns line up: "Hours" starts at the same offset in every row.
	col := strings.Index(lines[0], "Hours")
	assert.Equal(t, "1h 30m", lines[2][col:col+6])
	assert.Equal(t, "0h 45m", lines[3][col:col+6])
}
