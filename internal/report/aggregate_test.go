package report

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"timeclock/internal/db/models"
)

func strptr(s string) *string       { return &s }
func f64ptr(f float64) *float64     { return &f }
func uuidptr(u uuid.UUID) *uuid.UUID { return &u }

func entry(activity, start string, end *string) *models.TimeEntry {
	return &models.TimeEntry{
		ID:         uuid.New(),
		EmployeeID: uuid.New(),
		Date:       time.Date(2024, time.June, 13, 0, 0, 0, 0, time.Local),
		Start:      start,
		End:        end,
		Activity:   activity,
	}
}

func TestTotalsByActivityDerivesDuration(t *testing.T) {
	entries := []*models.TimeEntry{
		entry("Build", "09:00", strptr("12:30")),
	}

	totals := TotalsByActivity(entries)
	assert.Equal(t, map[string]float64{"Build": 3.5}, totals)
}

func TestTotalsByActivityExplicitDurationWins(t *testing.T) {
	e := entry("Build", "09:00", strptr("12:30"))
	e.DurationHours = f64ptr(2.0)

	totals := TotalsByActivity([]*models.TimeEntry{e})
	assert.Equal(t, map[string]float64{"Build": 2.0}, totals)
}

func TestTotalsByActivityExcludesInvalid(t *testing.T) {
	entries := []*models.TimeEntry{
		entry("Build", "09:00", strptr("08:00")), // end before start
		entry("Build", "09:00", nil),             // still open
		entry("Docs", "13:00", strptr("14:00")),
	}

	totals := TotalsByActivity(entries)
	assert.Equal(t, map[string]float64{"Docs": 1.0}, totals)
	assert.NotContains(t, totals, "Build")
}

func TestTotalsByActivityAccumulates(t *testing.T) {
	entries := []*models.TimeEntry{
		entry("Build", "09:00", strptr("10:00")),
		entry("Build", "10:30", strptr("12:00")),
		entry(models.ActivityBreak, "10:00", strptr("10:30")),
		entry("", "13:00", strptr("13:30")),
	}

	totals := TotalsByActivity(entries)
	assert.InDelta(t, 2.5, totals["Build"], 1e-9)
	assert.InDelta(t, 0.5, totals[models.ActivityBreak], 1e-9)
	assert.InDelta(t, 0.5, totals["-"], 1e-9, "empty activity falls into the \"-\" bucket")
}

func TestTotalsByProjectActivity(t *testing.T) {
	projA := uuid.New()
	withProject := entry("Build", "09:00", strptr("11:00"))
	withProject.ProjectID = uuidptr(projA)
	without := entry("Build", "11:00", strptr("12:00"))

	totals := TotalsByProjectActivity([]*models.TimeEntry{withProject, without})

	assert.Equal(t, 2.0, totals[Bucket{Project: projA.String(), Activity: "Build"}])
	assert.Equal(t, 1.0, totals[Bucket{Project: "none", Activity: "Build"}])
}

func TestTotalsOmitZeroBuckets(t *testing.T) {
	zero := entry("Idle", "09:00", strptr("09:00"))

	totals := TotalsByActivity([]*models.TimeEntry{zero})
	assert.Empty(t, totals)
}
