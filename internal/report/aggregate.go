package report

import (
	"github.com/google/uuid"

	"timeclock/internal/db/models"
)

// Bucket keys a (project, activity) total. Project is "none" for entries
// without a project, Activity is "-" when the label is empty.
type Bucket struct {
	Project  string
	Activity string
}

const (
	noProject  = "none"
	noActivity = "-"
)

// TotalsByActivity sums entry hours per activity label. Entries whose
// duration cannot be determined (open, or end before start with no explicit
// duration) contribute nothing; buckets that would total zero are omitted.
func TotalsByActivity(entries []*models.TimeEntry) map[string]float64 {
	totals := make(map[string]float64)
	for _, e := range entries {
		hours, ok := e.Hours()
		if !ok || hours == 0 {
			continue
		}
		totals[activityKey(e.Activity)] += hours
	}
	return totals
}

// TotalsByProjectActivity sums entry hours per (project, activity) pair,
// with the same exclusion rules as TotalsByActivity.
func TotalsByProjectActivity(entries []*models.TimeEntry) map[Bucket]float64 {
	totals := make(map[Bucket]float64)
	for _, e := range entries {
		hours, ok := e.Hours()
		if !ok || hours == 0 {
			continue
		}
		totals[Bucket{
			Project:  projectKey(e.ProjectID),
			Activity: activityKey(e.Activity),
		}] += hours
	}
	return totals
}

func activityKey(activity string) string {
	if activity == "" {
		return noActivity
	}
	return activity
}

func projectKey(id *uuid.UUID) string {
	if id == nil {
		return noProject
	}
	return id.String()
}
