package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestResolveDay(t *testing.T) {
	r, err := Resolve(ModeDay, date(2024, time.June, 13))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.June, 13), r.From)
	assert.Equal(t, date(2024, time.June, 13), r.To)
}

func TestResolveWeek(t *testing.T) {
	// 2024-06-13 is a Thursday; the week runs Monday through Sunday.
	r, err := Resolve(ModeWeek, date(2024, time.June, 13))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.June, 10), r.From)
	assert.Equal(t, date(2024, time.June, 16), r.To)
}

func TestResolveWeekSundayAnchor(t *testing.T) {
	// Sunday belongs to the end of the week, not the start of the next.
	r, err := Resolve(ModeWeek, date(2024, time.June, 16))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.June, 10), r.From)
	assert.Equal(t, date(2024, time.June, 16), r.To)
}

func TestResolveMonth(t *testing.T) {
	r, err := Resolve(ModeMonth, date(2024, time.February, 10))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.February, 1), r.From)
	assert.Equal(t, date(2024, time.February, 29), r.To, "2024 is a leap year")

	r, err = Resolve(ModeMonth, date(2023, time.February, 10))
	require.NoError(t, err)
	assert.Equal(t, date(2023, time.February, 28), r.To)
}

func TestResolveYear(t *testing.T) {
	r, err := Resolve(ModeYear, date(2024, time.June, 13))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 1), r.From)
	assert.Equal(t, date(2024, time.December, 31), r.To)
}

func TestResolveUnknownMode(t *testing.T) {
	_, err := Resolve(Mode("fortnight"), date(2024, time.June, 13))
	assert.Error(t, err)
}
