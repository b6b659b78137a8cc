// Package session is the live-stamping state machine. A controller mediates
// every start/pause/stop transition through the store, which is the only
// place the one-open-entry-per-employee invariant is actually enforced. The
// controller's local belief about the open entry is rebuilt from the store
// before every transition; it is never trusted on its own.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"timeclock/internal/db/models"
)

var (
	// ErrSessionAlreadyOpen is returned by Start when the store already
	// holds an open entry for the employee. Stop or pause it first.
	ErrSessionAlreadyOpen = errors.New("an entry is already running for this employee")

	// ErrNoOpenSession is returned by Pause and Stop when nothing is open.
	ErrNoOpenSession = errors.New("no running entry for this employee")

	// ErrInvalidInput is returned for local validation failures before any
	// store call is made.
	ErrInvalidInput = errors.New("invalid input")
)

// State is the controller's view of an employee's clock.
type State int

const (
	StateNoSession State = iota
	StateWorking
	StateOnBreak
)

func (s State) String() string {
	switch s {
	case StateWorking:
		return "working"
	case StateOnBreak:
		return "on break"
	default:
		return "no session"
	}
}

// Belief is the controller's reconstruction of the employee's open entry.
// It is ephemeral and always subordinate to what the store reports.
type Belief struct {
	EntryID    uuid.UUID
	EmployeeID uuid.UUID
	ProjectID  *uuid.UUID
	Date       time.Time
	Start      string
	Activity   string
	IsBreak    bool
}

func beliefFromEntry(e *models.TimeEntry) *Belief {
	return &Belief{
		EntryID:    e.ID,
		EmployeeID: e.EmployeeID,
		ProjectID:  e.ProjectID,
		Date:       e.Date,
		Start:      e.Start,
		Activity:   e.Activity,
		IsBreak:    e.IsBreak(),
	}
}

func (b *Belief) state() State {
	if b == nil {
		return StateNoSession
	}
	if b.IsBreak {
		return StateOnBreak
	}
	return StateWorking
}
