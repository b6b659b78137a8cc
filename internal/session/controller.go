package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"timeclock/internal/clock"
	"timeclock/internal/db/models"
)

// Store is the slice of the record store the controller needs. Entries are
// created open (nil end) and closed by setting an end time; OpenEntry returns
// nil without error when the employee has no open entry.
type Store interface {
	CreateEntry(ctx context.Context, entry *models.TimeEntry) (*models.TimeEntry, error)
	CloseEntry(ctx context.Context, id uuid.UUID, end string) (*models.TimeEntry, error)
	OpenEntry(ctx context.Context, employeeID uuid.UUID) (*models.TimeEntry, error)
}

// Controller serializes the session transitions of one client. It holds no
// durable state: every transition re-reads the store first, so a stale tab or
// a reload converges on the store's truth instead of duplicating open
// entries. A mutex keeps concurrent callers from interleaving the close/open
// pair of a pause; the store still has the final word on the one-open-entry
// invariant.
type Controller struct {
	store Store
	now   func() time.Time

	mu     sync.Mutex
	belief *Belief
}

// Option configures a Controller.
type Option func(*Controller)

// WithNow replaces the wall clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(store Store, opts ...Option) *Controller {
	c := &Controller{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the state derived from the last reconciled belief.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.belief.state()
}

// Belief returns a copy of the current belief, or nil when no entry is
// believed open.
func (c *Controller) Belief() *Belief {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.belief == nil {
		return nil
	}
	b := *c.belief
	return &b
}

// Reconcile re-derives the belief from the store. It is called internally
// before every transition and should also be called on load and whenever the
// client regains focus or switches employees. A store failure leaves the
// previous belief in place; the caller must retry before trusting it.
func (c *Controller) Reconcile(ctx context.Context, employeeID uuid.UUID) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconcile(ctx, employeeID)
}

func (c *Controller) reconcile(ctx context.Context, employeeID uuid.UUID) (State, error) {
	if employeeID == uuid.Nil {
		return c.belief.state(), fmt.Errorf("%w: employee is required", ErrInvalidInput)
	}
	open, err := c.store.OpenEntry(ctx, employeeID)
	if err != nil {
		return c.belief.state(), fmt.Errorf("querying open entry: %w", err)
	}
	if open == nil {
		c.belief = nil
	} else {
		c.belief = beliefFromEntry(open)
	}
	return c.belief.state(), nil
}

// StartParams are the inputs to Start. Start time and date default to the
// current clock; customer is expected to be resolved from the project by the
// caller.
type StartParams struct {
	EmployeeID uuid.UUID
	ProjectID  *uuid.UUID
	CustomerID *uuid.UUID
	Activity   string
	StartAt    string // optional "HH:MM"
	Date       time.Time
	Details    string
}

// Start opens a new work entry. It fails with ErrSessionAlreadyOpen when the
// store reports an open entry for the employee; the caller must stop or
// pause first. Auto-closing the previous entry was considered and rejected:
// an explicit conflict is one keystroke to fix, a silent close is not.
func (c *Controller) Start(ctx context.Context, p StartParams) (*Belief, error) {
	if p.EmployeeID == uuid.Nil {
		return nil, fmt.Errorf("%w: employee is required", ErrInvalidInput)
	}

	start := p.StartAt
	if start == "" {
		start = c.nowStamp()
	} else {
		min, ok := clock.ToMinutes(start)
		if !ok {
			return nil, fmt.Errorf("%w: start time %q is not HH:MM", ErrInvalidInput, p.StartAt)
		}
		start = clock.Stamp(min)
	}

	date := p.Date
	if date.IsZero() {
		date = c.today()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.reconcile(ctx, p.EmployeeID); err != nil {
		return nil, err
	}
	if c.belief != nil {
		return nil, ErrSessionAlreadyOpen
	}

	created, err := c.store.CreateEntry(ctx, &models.TimeEntry{
		EmployeeID: p.EmployeeID,
		CustomerID: p.CustomerID,
		ProjectID:  p.ProjectID,
		Date:       date,
		Start:      start,
		Activity:   p.Activity,
		Details:    p.Details,
		Source:     "live",
	})
	if err != nil {
		return nil, fmt.Errorf("creating entry: %w", err)
	}

	c.belief = beliefFromEntry(created)
	b := *c.belief
	return &b, nil
}

// Pause toggles between work and break. While working it closes the open
// entry and immediately opens a break entry; while on break it closes the
// break and leaves the employee with no session (resuming work takes an
// explicit Start). With nothing open it fails with ErrNoOpenSession.
//
// If the close succeeds but opening the break fails, the belief is cleared
// and the error reported: the employee then has no open entry, which the
// next Reconcile will confirm. No state is ever invented locally.
func (c *Controller) Pause(ctx context.Context, employeeID uuid.UUID) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.reconcile(ctx, employeeID); err != nil {
		return c.belief.state(), err
	}
	if c.belief == nil {
		return StateNoSession, ErrNoOpenSession
	}

	now := c.nowStamp()

	if c.belief.IsBreak {
		if _, err := c.store.CloseEntry(ctx, c.belief.EntryID, now); err != nil {
			return c.belief.state(), fmt.Errorf("closing break: %w", err)
		}
		c.belief = nil
		return StateNoSession, nil
	}

	if _, err := c.store.CloseEntry(ctx, c.belief.EntryID, now); err != nil {
		return c.belief.state(), fmt.Errorf("closing entry: %w", err)
	}
	c.belief = nil

	created, err := c.store.CreateEntry(ctx, &models.TimeEntry{
		EmployeeID: employeeID,
		Date:       c.today(),
		Start:      now,
		Activity:   models.ActivityBreak,
		Source:     "live",
	})
	if err != nil {
		return StateNoSession, fmt.Errorf("opening break: %w", err)
	}

	c.belief = beliefFromEntry(created)
	return StateOnBreak, nil
}

// Stop closes whichever entry is open, work or break. It fails with
// ErrNoOpenSession when reconciliation shows nothing open.
func (c *Controller) Stop(ctx context.Context, employeeID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.reconcile(ctx, employeeID); err != nil {
		return err
	}
	if c.belief == nil {
		return ErrNoOpenSession
	}

	if _, err := c.store.CloseEntry(ctx, c.belief.EntryID, c.nowStamp()); err != nil {
		return fmt.Errorf("closing entry: %w", err)
	}
	c.belief = nil
	return nil
}

func (c *Controller) nowStamp() string {
	now := c.now()
	return clock.Stamp(now.Hour()*60 + now.Minute())
}

func (c *Controller) today() time.Time {
	y, m, d := c.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.now().Location())
}
