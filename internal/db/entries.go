package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timeclock/internal/clock"
	"timeclock/internal/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const entryColumns = `id, employee_id, customer_id, project_id, date, start, end_time,
	break_min, duration_hours, activity, details, source, submitted, created_at`

// computeDuration derives duration_hours from start/end minus break minutes.
// No-op when either clock value is missing or malformed.
func computeDuration(e *models.TimeEntry) {
	if e.End == nil {
		return
	}
	startMin, ok := clock.ToMinutes(e.Start)
	if !ok {
		return
	}
	endMin, ok := clock.ToMinutes(*e.End)
	if !ok {
		return
	}
	diff := endMin - startMin
	if diff < 0 {
		diff = 0
	}
	if e.BreakMin != nil {
		diff -= *e.BreakMin
		if diff < 0 {
			diff = 0
		}
	}
	hours := clock.MinutesToHours(diff)
	e.DurationHours = &hours
}

// hasOverlap reports whether a closed interval would overlap another closed
// entry of the same employee on the same date.
func (db *DB) hasOverlap(ctx context.Context, employeeID uuid.UUID, date time.Time, start, end string, excludeID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM time_entries
			WHERE employee_id = $1
			AND date = $2
			AND id <> $3
			AND end_time IS NOT NULL
			AND start < $4
			AND end_time > $5
		)`

	var exists bool
	err := db.QueryRow(ctx, query,
		employeeID.String(), date, excludeID.String(), end, start).Scan(&exists)
	return exists, err
}

// CreateEntry inserts a time entry and returns it with generated fields set.
// Closed entries are checked for overlaps and get their duration derived
// from start/end; a second open entry for the employee is rejected by the
// store's unique index and surfaced as ErrOpenConflict.
func (db *DB) CreateEntry(ctx context.Context, e *models.TimeEntry) (*models.TimeEntry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Source == "" {
		e.Source = "api"
	}

	if e.Start != "" && e.End != nil {
		overlap, err := db.hasOverlap(ctx, e.EmployeeID, e.Date, e.Start, *e.End, e.ID)
		if err != nil {
			return nil, err
		}
		if overlap {
			return nil, ErrOverlap
		}
		if e.DurationHours == nil {
			computeDuration(e)
		}
	}

	query := `
		INSERT INTO time_entries (id, employee_id, customer_id, project_id, date,
			start, end_time, break_min, duration_hours, activity, details, source,
			submitted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := db.Exec(ctx, query,
		e.ID.String(),
		e.EmployeeID.String(),
		uuidOrNil(e.CustomerID),
		uuidOrNil(e.ProjectID),
		e.Date,
		e.Start,
		e.End,
		e.BreakMin,
		e.DurationHours,
		e.Activity,
		e.Details,
		e.Source,
		e.Submitted,
		e.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrOpenConflict
		}
		return nil, err
	}
	return e, nil
}

// CloseEntry sets the end time of an open entry and recomputes its duration.
func (db *DB) CloseEntry(ctx context.Context, id uuid.UUID, end string) (*models.TimeEntry, error) {
	e, err := db.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil || e.End != nil {
		return nil, fmt.Errorf("open entry %s: %w", id, ErrNotFound)
	}

	// Never close before the recorded start.
	if startMin, ok := clock.ToMinutes(e.Start); ok {
		if endMin, okEnd := clock.ToMinutes(end); okEnd && endMin < startMin {
			end = e.Start
		}
	}

	overlap, err := db.hasOverlap(ctx, e.EmployeeID, e.Date, e.Start, end, e.ID)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, ErrOverlap
	}

	e.End = &end
	computeDuration(e)

	query := `
		UPDATE time_entries
		SET end_time = $1, duration_hours = $2
		WHERE id = $3 AND end_time IS NULL`

	tag, err := db.Exec(ctx, query, e.End, e.DurationHours, id.String())
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("open entry %s: %w", id, ErrNotFound)
	}
	return e, nil
}

// OpenEntry returns the employee's open, unsubmitted entry, or nil.
func (db *DB) OpenEntry(ctx context.Context, employeeID uuid.UUID) (*models.TimeEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM time_entries
		WHERE employee_id = $1 AND end_time IS NULL AND submitted = FALSE
		ORDER BY date DESC, start DESC
		LIMIT 1`

	e := &models.TimeEntry{}
	err := db.QueryRow(ctx, query, employeeID.String()).Scan(
		&e.ID, &e.EmployeeID, &e.CustomerID, &e.ProjectID, &e.Date, &e.Start,
		&e.End, &e.BreakMin, &e.DurationHours, &e.Activity, &e.Details,
		&e.Source, &e.Submitted, &e.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListOpenEntries returns every open, unsubmitted entry together with the
// employee's name, for the status overview.
func (db *DB) ListOpenEntries(ctx context.Context) ([]*models.OpenEntryInfo, error) {
	query := `
		SELECT t.id, t.employee_id, t.customer_id, t.project_id, t.date, t.start,
			t.end_time, t.break_min, t.duration_hours, t.activity, t.details,
			t.source, t.submitted, t.created_at, e.username
		FROM time_entries t
		JOIN employees e ON t.employee_id = e.id
		WHERE t.end_time IS NULL AND t.submitted = FALSE
		ORDER BY e.username`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []*models.OpenEntryInfo
	for rows.Next() {
		info := &models.OpenEntryInfo{Entry: &models.TimeEntry{}}
		e := info.Entry
		err := rows.Scan(
			&e.ID, &e.EmployeeID, &e.CustomerID, &e.ProjectID, &e.Date, &e.Start,
			&e.End, &e.BreakMin, &e.DurationHours, &e.Activity, &e.Details,
			&e.Source, &e.Submitted, &e.CreatedAt, &info.Username,
		)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// GetEntry retrieves an entry by id, or nil when absent.
func (db *DB) GetEntry(ctx context.Context, id uuid.UUID) (*models.TimeEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM time_entries
		WHERE id = $1`

	e := &models.TimeEntry{}
	err := db.QueryRow(ctx, query, id.String()).Scan(
		&e.ID, &e.EmployeeID, &e.CustomerID, &e.ProjectID, &e.Date, &e.Start,
		&e.End, &e.BreakMin, &e.DurationHours, &e.Activity, &e.Details,
		&e.Source, &e.Submitted, &e.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// EntryFilter narrows EntriesInRange. Nil fields match everything.
type EntryFilter struct {
	EmployeeID *uuid.UUID
	CustomerID *uuid.UUID
	ProjectID  *uuid.UUID
}

// EntriesInRange returns entries whose date falls inside the inclusive
// range, ordered by date then start time for stable report output.
func (db *DB) EntriesInRange(ctx context.Context, from, to time.Time, filter EntryFilter) ([]*models.TimeEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM time_entries
		WHERE date >= $1 AND date <= $2`
	args := []any{from, to}

	if filter.EmployeeID != nil {
		args = append(args, filter.EmployeeID.String())
		query += fmt.Sprintf(" AND employee_id = $%d", len(args))
	}
	if filter.CustomerID != nil {
		args = append(args, filter.CustomerID.String())
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if filter.ProjectID != nil {
		args = append(args, filter.ProjectID.String())
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	query += " ORDER BY date ASC, start ASC"

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.TimeEntry
	for rows.Next() {
		e := &models.TimeEntry{}
		err := rows.Scan(
			&e.ID, &e.EmployeeID, &e.CustomerID, &e.ProjectID, &e.Date, &e.Start,
			&e.End, &e.BreakMin, &e.DurationHours, &e.Activity, &e.Details,
			&e.Source, &e.Submitted, &e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteEntry removes a time entry.
func (db *DB) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Exec(ctx, `DELETE FROM time_entries WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// SubmitOpenEntries locks all of the employee's finished, unsubmitted
// entries and returns how many were affected. Submitted entries no longer
// appear as open candidates and are excluded from further edits upstream.
func (db *DB) SubmitOpenEntries(ctx context.Context, employeeID uuid.UUID) (int, error) {
	tag, err := db.Exec(ctx, `
		UPDATE time_entries
		SET submitted = TRUE, submitted_at = $1
		WHERE employee_id = $2 AND end_time IS NOT NULL AND submitted = FALSE`,
		time.Now(), employeeID.String())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func uuidOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
