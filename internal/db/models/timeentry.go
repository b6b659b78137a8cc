package models

import (
	"time"

	"github.com/google/uuid"

	"timeclock/internal/clock"
)

// ActivityBreak is the sentinel activity label marking a break interval.
const ActivityBreak = "Pause"

// TimeEntry is a single work or break interval. A nil End marks the entry as
// open; at most one open entry may exist per employee, enforced by the store.
type TimeEntry struct {
	ID         uuid.UUID  `db:"id"`
	EmployeeID uuid.UUID  `db:"employee_id"`
	CustomerID *uuid.UUID `db:"customer_id"`
	ProjectID  *uuid.UUID `db:"project_id"`

	Date  time.Time `db:"date"`  // calendar date, no time-of-day meaning
	Start string    `db:"start"` // "HH:MM:SS"
	End   *string   `db:"end_time"`

	BreakMin      *int     `db:"break_min"`
	DurationHours *float64 `db:"duration_hours"`

	Activity string `db:"activity"`
	Details  string `db:"details"`

	Source    string    `db:"source"` // "live", "declare", "csv", ...
	Submitted bool      `db:"submitted"`
	CreatedAt time.Time `db:"created_at"`
}

// OpenEntryInfo pairs an open entry with its employee's name for the
// status overview.
type OpenEntryInfo struct {
	Entry    *TimeEntry
	Username string
}

// IsOpen reports whether the entry has no end time yet.
func (e *TimeEntry) IsOpen() bool {
	return e.End == nil
}

// IsBreak reports whether the entry records a break rather than work.
func (e *TimeEntry) IsBreak() bool {
	return e.Activity == ActivityBreak
}

// Hours returns the entry's duration in hours and whether one could be
// determined. An explicit DurationHours wins; otherwise the duration is
// derived from start and end when both parse and end is not before start.
// Open or malformed entries yield (0, false).
func (e *TimeEntry) Hours() (float64, bool) {
	if e.DurationHours != nil {
		return *e.DurationHours, true
	}
	if e.End == nil {
		return 0, false
	}
	startMin, ok := clock.ToMinutes(e.Start)
	if !ok {
		return 0, false
	}
	endMin, ok := clock.ToMinutes(*e.End)
	if !ok || endMin < startMin {
		return 0, false
	}
	return clock.MinutesToHours(endMin - startMin), true
}
