// Package report computes reporting windows and folds closed time entries
// into per-bucket hour totals.
package report

import (
	"fmt"
	"time"
)

// Mode selects the width of a reporting window.
type Mode string

const (
	ModeDay   Mode = "day"
	ModeWeek  Mode = "week"
	ModeMonth Mode = "month"
	ModeYear  Mode = "year"
)

// Range is an inclusive calendar date range.
type Range struct {
	From time.Time
	To   time.Time
}

// Resolve returns the inclusive date range for mode around the anchor date.
// Weeks run Monday through Sunday regardless of locale; the anchor is treated
// as a calendar date, never converted to an instant.
func Resolve(mode Mode, anchor time.Time) (Range, error) {
	y, m, d := anchor.Date()
	loc := anchor.Location()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch mode {
	case ModeDay:
		return Range{From: day, To: day}, nil
	case ModeWeek:
		// Sunday is weekday 0 but ends the week.
		diffToMonday := (int(day.Weekday()) + 6) % 7
		monday := day.AddDate(0, 0, -diffToMonday)
		return Range{From: monday, To: monday.AddDate(0, 0, 6)}, nil
	case ModeMonth:
		first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		// Day 0 of the following month is the last day of this one.
		last := time.Date(y, m+1, 0, 0, 0, 0, 0, loc)
		return Range{From: first, To: last}, nil
	case ModeYear:
		return Range{
			From: time.Date(y, time.January, 1, 0, 0, 0, 0, loc),
			To:   time.Date(y, time.December, 31, 0, 0, 0, 0, loc),
		}, nil
	default:
		return Range{}, fmt.Errorf("unknown report mode %q", mode)
	}
}
