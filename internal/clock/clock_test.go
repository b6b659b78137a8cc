package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"00:00", 0, true},
		{"09:00", 540, true},
		{"12:30", 750, true},
		{"12:30:45", 750, true},
		{"23:59", 1439, true},
		{"", 0, false},
		{"9", 0, false},
		{"ab:cd", 0, false},
		{"09:xx", 0, false},
		{"09:75", 0, false},
		{"-1:30", 0, false},
	}

	for _, tt := range tests {
		got, ok := ToMinutes(tt.in)
		assert.Equal(t, tt.ok, ok, "ok for %q", tt.in)
		assert.Equal(t, tt.want, got, "minutes for %q", tt.in)
	}
}

func TestMinutesToHours(t *testing.T) {
	assert.Equal(t, 3.5, MinutesToHours(210))
	assert.Equal(t, 0.0, MinutesToHours(0))
	assert.InDelta(t, 0.25, MinutesToHours(15), 1e-9)
}

func TestFormatDisplay(t *testing.T) {
	assert.Equal(t, "09:15", FormatDisplay("09:15:00"))
	assert.Equal(t, "09:15", FormatDisplay("09:15"))
	assert.Equal(t, "", FormatDisplay(""))
}

func TestStamp(t *testing.T) {
	assert.Equal(t, "09:05:00", Stamp(545))
	assert.Equal(t, "00:00:00", Stamp(0))
}
