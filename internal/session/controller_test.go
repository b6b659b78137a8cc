package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeclock/internal/db/models"
)

// fakeStore keeps entries in memory and, like the real store's partial
// unique index, refuses a second open entry for the same employee.
type fakeStore struct {
	entries map[uuid.UUID]*models.TimeEntry
	order   []uuid.UUID
}

var errOpenConflict = errors.New("duplicate open entry for employee")

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[uuid.UUID]*models.TimeEntry)}
}

func (s *fakeStore) CreateEntry(_ context.Context, entry *models.TimeEntry) (*models.TimeEntry, error) {
	if entry.End == nil {
		for _, e := range s.entries {
			if e.EmployeeID == entry.EmployeeID && e.End == nil {
				return nil, errOpenConflict
			}
		}
	}
	stored := *entry
	stored.ID = uuid.New()
	s.entries[stored.ID] = &stored
	s.order = append(s.order, stored.ID)
	out := stored
	return &out, nil
}

func (s *fakeStore) CloseEntry(_ context.Context, id uuid.UUID, end string) (*models.TimeEntry, error) {
	e, ok := s.entries[id]
	if !ok || e.End != nil {
		return nil, fmt.Errorf("no open entry %s", id)
	}
	endCopy := end
	e.End = &endCopy
	out := *e
	return &out, nil
}

func (s *fakeStore) OpenEntry(_ context.Context, employeeID uuid.UUID) (*models.TimeEntry, error) {
	for _, id := range s.order {
		e := s.entries[id]
		if e.EmployeeID == employeeID && e.End == nil {
			out := *e
			return &out, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) openCount(employeeID uuid.UUID) int {
	n := 0
	for _, e := range s.entries {
		if e.EmployeeID == employeeID && e.End == nil {
			n++
		}
	}
	return n
}

func (s *fakeStore) byStart(start string) *models.TimeEntry {
	for _, e := range s.entries {
		if e.Start == start {
			return e
		}
	}
	return nil
}

// failingStore injects errors into selected operations.
type failingStore struct {
	*fakeStore
	failCreate bool
	failClose  bool
	failOpen   bool
}

var errStoreDown = errors.New("store unavailable")

func (s *failingStore) CreateEntry(ctx context.Context, e *models.TimeEntry) (*models.TimeEntry, error) {
	if s.failCreate {
		return nil, errStoreDown
	}
	return s.fakeStore.CreateEntry(ctx, e)
}

func (s *failingStore) CloseEntry(ctx context.Context, id uuid.UUID, end string) (*models.TimeEntry, error) {
	if s.failClose {
		return nil, errStoreDown
	}
	return s.fakeStore.CloseEntry(ctx, id, end)
}

func (s *failingStore) OpenEntry(ctx context.Context, employeeID uuid.UUID) (*models.TimeEntry, error) {
	if s.failOpen {
		return nil, errStoreDown
	}
	return s.fakeStore.OpenEntry(ctx, employeeID)
}

func fixedClock(hour, min int) func() time.Time {
	return func() time.Time {
		return time.Date(2024, time.June, 13, hour, min, 0, 0, time.Local)
	}
}

func TestStartOpensWorkEntry(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store, WithNow(fixedClock(9, 0)))
	emp := uuid.New()
	ctx := context.Background()

	belief, err := ctrl.Start(ctx, StartParams{EmployeeID: emp, Activity: "Build"})
	require.NoError(t, err)

	assert.Equal(t, StateWorking, ctrl.State())
	assert.Equal(t, "09:00:00", belief.Start)
	assert.Equal(t, "Build", belief.Activity)
	assert.False(t, belief.IsBreak)
	assert.Equal(t, 1, store.openCount(emp))
}

func TestStartRejectsWhenAlreadyOpen(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store, WithNow(fixedClock(9, 0)))
	emp := uuid.New()
	ctx := context.Background()

	_, err := ctrl.Start(ctx, StartParams{EmployeeID: emp, Activity: "Build"})
	require.NoError(t, err)

	_, err = ctrl.Start(ctx, StartParams{EmployeeID: emp, Activity: "Docs"})
	assert.ErrorIs(t, err, ErrSessionAlreadyOpen)
	assert.Equal(t, 1, store.openCount(emp), "failed start must not create entries")
}

func TestStartRejectsStaleLocalBelief(t *testing.T) {
	// A second tab stopped the entry behind this controller's back; Start
	// must trust the store, not the cached belief.
	store := newFakeStore()
	ctrl := NewController(store, WithNow(fixedClock(9, 0)))
	emp := uuid.New()
	ctx := context.Background()

	belief, err := ctrl.Start(ctx, StartParams{EmployeeID: emp, Activity: "Build"})
	require.NoError(t, err)

	// Other tab closes the entry directly in the store.
	_, err = store.CloseEntry(ctx, belief.EntryID, "10:00:00")
	require.NoError(t, err)

	_, err = ctrl.Start(ctx, StartParams{EmployeeID: emp, Activity: "Docs"})
	assert.NoError(t, err, "store shows nothing open, start must succeed")
	assert.Equal(t, 1, store.openCount(emp))
}

func TestStartValidatesInput(t *testing.T) {
	ctrl := NewController(newFakeStore())
	ctx := context.Background()

	_, err := ctrl.Start(ctx, StartParams{Activity: "Build"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ctrl.Start(ctx, StartParams{EmployeeID: uuid.New(), StartAt: "9 o'clock"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStartExplicitTimeAndDate(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store, WithNow(fixedClock(14, 45)))
	emp := uuid.New()
	day := time.Date(2024, time.June, 12, 0, 0, 0, 0, time.Local)

	belief, err := ctrl.Start(context.Background(), StartParams{
		EmployeeID: emp,
		Activity:   "Build",
		StartAt:    "08:30",
		Date:       day,
	})
	require.NoError(t, err)
	assert.Equal(t, "08:30:00", belief.Start)
	assert.Equal(t, day, belief.Date)
}

func TestPauseToggleScenario(t *testing.T) {
	store := newFakeStore()
	now := fixedClock(9, 0)
	current := &now
	ctrl := NewController(store, WithNow(func() time.Time { return (*current)() }))
	emp := uuid.New()
	ctx := context.Background()

	// Start(Build) at 09:00.
	_, err := ctrl.Start(ctx, StartParams{EmployeeID: emp, Activity: "Build"})
	require.NoError(t, err)
	assert.Equal(t, StateWorking, ctrl.State())

	// Pause at 10:00: work closed, break opened.
	at10 := fixedClock(10, 0)
	current = &at10
	state, err := ctrl.Pause(ctx, emp)
	require.NoError(t, err)
	assert.Equal(t, StateOnBreak, state)

	work := store.byStart("09:00:00")
	require.NotNil(t, work)
	require.NotNil(t, work.End)
	assert.Equal(t, "10:00:00", *work.End)

	brk := store.byStart("10:00:00")
	require.NotNil(t, brk)
	assert.Equal(t, models.ActivityBreak, brk.Activity)
	assert.Nil(t, brk.End)
	assert.Nil(t, brk.ProjectID, "breaks carry no project")

	// Pause again at 10:15: break closed, no session left.
	at1015 := fixedClock(10, 15)
	current = &at1015
	state, err = ctrl.Pause(ctx, emp)
	require.NoError(t, err)
	assert.Equal(t, StateNoSession, state)
	require.NotNil(t, brk.End)
	assert.Equal(t, "10:15:00", *brk.End)
	assert.Equal(t, 0, store.openCount(emp))
}

func TestPauseWithoutSession(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store)
	emp := uuid.New()

	_, err := ctrl.Pause(context.Background(), emp)
	assert.ErrorIs(t, err, ErrNoOpenSession)
	assert.Empty(t, store.entries, "store must be left unchanged")
}

func TestStopWithoutSession(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store)
	emp := uuid.New()

	err := ctrl.Stop(context.Background(), emp)
	assert.ErrorIs(t, err, ErrNoOpenSession)
	assert.Empty(t, store.entries, "store must be left unchanged")
}

func TestStopClosesBreakToo(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store, WithNow(fixedClock(9, 0)))
	emp := uuid.New()
	ctx := context.Background()

	_, err := ctrl.Start(ctx, StartParams{EmployeeID: emp, Activity: "Build"})
	require.NoError(t, err)
	_, err = ctrl.Pause(ctx, emp)
	require.NoError(t, err)
	require.Equal(t, StateOnBreak, ctrl.State())

	require.NoError(t, ctrl.Stop(ctx, emp))
	assert.Equal(t, StateNoSession, ctrl.State())
	assert.Equal(t, 0, store.openCount(emp))
}

func TestPausePartialFailureClearsBelief(t *testing.T) {
	store := &failingStore{fakeStore: newFakeStore()}
	ctrl := NewController(store, WithNow(fixedClock(9, 0)))
	emp := uuid.New()
	ctx := context.Background()

	_, err := ctrl.Start(ctx, StartParams{EmployeeID: emp, Activity: "Build"})
	require.NoError(t, err)

	// Close succeeds, opening the break fails.
	store.failCreate = true
	state, err := ctrl.Pause(ctx, emp)
	require.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, StateNoSession, state)
	assert.Nil(t, ctrl.Belief(), "belief must not point at a closed entry")
	assert.Equal(t, 0, store.openCount(emp), "no duplicated open state")

	// The next reconcile confirms NO_SESSION.
	store.failCreate = false
	recState, err := ctrl.Reconcile(ctx, emp)
	require.NoError(t, err)
	assert.Equal(t, StateNoSession, recState)
}

func TestFailedCloseLeavesBeliefIntact(t *testing.T) {
	store := &failingStore{fakeStore: newFakeStore()}
	ctrl := NewController(store, WithNow(fixedClock(9, 0)))
	emp := uuid.New()
	ctx := context.Background()

	belief, err := ctrl.Start(ctx, StartParams{EmployeeID: emp, Activity: "Build"})
	require.NoError(t, err)

	store.failClose = true
	err = ctrl.Stop(ctx, emp)
	require.ErrorIs(t, err, errStoreDown)

	got := ctrl.Belief()
	require.NotNil(t, got)
	assert.Equal(t, belief.EntryID, got.EntryID, "belief unchanged after failed close")
	assert.Equal(t, 1, store.openCount(emp))
}

func TestReconcileIdempotent(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store, WithNow(fixedClock(9, 0)))
	emp := uuid.New()
	ctx := context.Background()

	_, err := ctrl.Start(ctx, StartParams{EmployeeID: emp, Activity: "Build"})
	require.NoError(t, err)

	s1, err := ctrl.Reconcile(ctx, emp)
	require.NoError(t, err)
	b1 := ctrl.Belief()

	s2, err := ctrl.Reconcile(ctx, emp)
	require.NoError(t, err)
	b2 := ctrl.Belief()

	assert.Equal(t, s1, s2)
	assert.Equal(t, b1, b2)
}

func TestReconcileDiscardsStaleBelief(t *testing.T) {
	store := newFakeStore()
	ctrl := NewController(store, WithNow(fixedClock(9, 0)))
	emp := uuid.New()
	ctx := context.Background()

	belief, err := ctrl.Start(ctx, StartParams{EmployeeID: emp, Activity: "Build"})
	require.NoError(t, err)

	_, err = store.CloseEntry(ctx, belief.EntryID, "10:00:00")
	require.NoError(t, err)

	state, err := ctrl.Reconcile(ctx, emp)
	require.NoError(t, err)
	assert.Equal(t, StateNoSession, state)
	assert.Nil(t, ctrl.Belief())
}

func TestReconcileFailureKeepsBelief(t *testing.T) {
	store := &failingStore{fakeStore: newFakeStore()}
	ctrl := NewController(store, WithNow(fixedClock(9, 0)))
	emp := uuid.New()
	ctx := context.Background()

	_, err := ctrl.Start(ctx, StartParams{EmployeeID: emp, Activity: "Build"})
	require.NoError(t, err)

	store.failOpen = true
	_, err = ctrl.Reconcile(ctx, emp)
	require.ErrorIs(t, err, errStoreDown)
	assert.NotNil(t, ctrl.Belief(), "failed reconcile must not clear belief")
}

func TestInvariantHoldsAcrossSequences(t *testing.T) {
	// Arbitrary transition sequences never leave two open entries behind,
	// even with a second controller racing on the same employee.
	store := newFakeStore()
	emp := uuid.New()
	ctx := context.Background()

	a := NewController(store, WithNow(fixedClock(9, 0)))
	b := NewController(store, WithNow(fixedClock(9, 30)))

	steps := []func() error{
		func() error { _, err := a.Start(ctx, StartParams{EmployeeID: emp, Activity: "Build"}); return err },
		func() error { _, err := b.Start(ctx, StartParams{EmployeeID: emp, Activity: "Docs"}); return err },
		func() error { _, err := b.Pause(ctx, emp); return err },
		func() error { _, err := a.Pause(ctx, emp); return err },
		func() error { return a.Stop(ctx, emp) },
		func() error { _, err := b.Start(ctx, StartParams{EmployeeID: emp, Activity: "Docs"}); return err },
		func() error { return b.Stop(ctx, emp) },
		func() error { return a.Stop(ctx, emp) },
	}

	for i, step := range steps {
		_ = step() // conflicts are expected, duplicates are not
		assert.LessOrEqual(t, store.openCount(emp), 1, "after step %d", i)
	}
}
