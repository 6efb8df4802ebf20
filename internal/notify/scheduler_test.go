package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"kopilka/internal/events"
	"kopilka/internal/models"
	"kopilka/internal/writequeue"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeState struct {
	mu        sync.Mutex
	state     models.ReminderState
	loadErr   error
	markErr   error
	marked    bool
	markedAt  time.Time
	markedDay string
}

func (f *fakeState) GetReminderState(ctx context.Context) (*models.ReminderState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	s := f.state
	return &s, nil
}

func (f *fakeState) MarkReminderDelivered(ctx context.Context, at time.Time, localDate string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = true
	f.markedAt = at
	f.markedDay = localDate
	f.state.LastDeliveredAt = &at
	f.state.LastDeliveredLocalDate = localDate
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	err    error
	bodies []string
}

func (f *fakeNotifier) Notify(ctx context.Context, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

func newTestScheduler(t *testing.T, state *fakeState, notifier *fakeNotifier, now time.Time) *Scheduler {
	t.Helper()
	logger := zerolog.New(io.Discard)

	queue := writequeue.New(writequeue.Options{Logger: &logger})
	ctx, cancel := context.WithCancel(context.Background())
	go queue.Start(ctx)
	t.Cleanup(func() {
		cancel()
		queue.Wait()
	})

	s := NewScheduler(state, queue, notifier, events.NewEventBus(), &logger)
	s.now = func() time.Time { return now }
	return s
}

func enabledState(lastAt *time.Time, lastDay string) *fakeState {
	return &fakeState{state: models.ReminderState{
		Enabled:                true,
		PermissionGranted:      true,
		PreferredTime:          "09:00",
		LastDeliveredAt:        lastAt,
		LastDeliveredLocalDate: lastDay,
	}}
}

func TestFireDeliversAndPersistsMarks(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local)
	state := enabledState(nil, "")
	notifier := &fakeNotifier{}
	gotEvent := false

	s := newTestScheduler(t, state, notifier, now)
	s.bus.Subscribe(events.EventReminderDelivered, func(event *events.Event) error {
		gotEvent = true
		return nil
	})

	s.fire(context.Background())

	assert.Equal(t, 1, notifier.count())
	require.True(t, state.marked)
	assert.True(t, state.markedAt.Equal(now))
	assert.Equal(t, "2026-08-30", state.markedDay)
	assert.True(t, gotEvent)
}

func TestFireRefusedWhenDisabled(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local)
	state := &fakeState{state: models.ReminderState{PermissionGranted: true}}
	notifier := &fakeNotifier{}

	s := newTestScheduler(t, state, notifier, now)
	s.fire(context.Background())

	assert.Zero(t, notifier.count())
	assert.False(t, state.marked)
}

func TestFireRefusedWithoutPermission(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local)
	state := &fakeState{state: models.ReminderState{Enabled: true}}
	notifier := &fakeNotifier{}

	s := newTestScheduler(t, state, notifier, now)
	s.fire(context.Background())

	assert.Zero(t, notifier.count())
	assert.False(t, state.marked)
}

func TestFireRefusedBySpacing(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local)
	last := now.Add(-6 * time.Hour)
	state := enabledState(&last, "2026-08-29")
	notifier := &fakeNotifier{}

	s := newTestScheduler(t, state, notifier, now)
	s.fire(context.Background())

	assert.Zero(t, notifier.count())
	assert.False(t, state.marked)
}

func TestFireRefusedByDailyCap(t *testing.T) {
	now := time.Date(2026, 8, 30, 21, 0, 0, 0, time.Local)
	last := now.Add(-13 * time.Hour)
	state := enabledState(&last, "2026-08-30")
	notifier := &fakeNotifier{}

	s := newTestScheduler(t, state, notifier, now)
	s.fire(context.Background())

	assert.Zero(t, notifier.count())
	assert.False(t, state.marked)
}

func TestFireSecondCallSameDayRefused(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local)
	state := enabledState(nil, "")
	notifier := &fakeNotifier{}

	s := newTestScheduler(t, state, notifier, now)
	s.fire(context.Background())
	s.fire(context.Background())

	assert.Equal(t, 1, notifier.count())
}

func TestFireNotifierFailureLeavesMarksUntouched(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local)
	state := enabledState(nil, "")
	notifier := &fakeNotifier{err: errors.New("platform unavailable")}

	s := newTestScheduler(t, state, notifier, now)
	s.fire(context.Background())

	assert.False(t, state.marked)
	// Retry after recovery succeeds since nothing was marked.
	notifier.err = nil
	s.fire(context.Background())
	assert.Equal(t, 1, notifier.count())
	assert.True(t, state.marked)
}

func TestNextWait(t *testing.T) {
	t.Run("DisabledRechecksLater", func(t *testing.T) {
		now := time.Date(2026, 8, 30, 8, 0, 0, 0, time.Local)
		state := &fakeState{state: models.ReminderState{PreferredTime: "09:00"}}
		s := newTestScheduler(t, state, &fakeNotifier{}, now)

		wait, fire := s.nextWait(context.Background())
		assert.Equal(t, recheckInterval, wait)
		assert.False(t, fire)
	})

	t.Run("NearSlotSleepsUntilIt", func(t *testing.T) {
		now := time.Date(2026, 8, 30, 8, 55, 0, 0, time.Local)
		state := enabledState(nil, "")
		s := newTestScheduler(t, state, &fakeNotifier{}, now)

		wait, fire := s.nextWait(context.Background())
		assert.Equal(t, 5*time.Minute, wait)
		assert.True(t, fire)
	})

	t.Run("DistantSlotCapsAtRecheck", func(t *testing.T) {
		now := time.Date(2026, 8, 30, 2, 0, 0, 0, time.Local)
		state := enabledState(nil, "")
		s := newTestScheduler(t, state, &fakeNotifier{}, now)

		wait, fire := s.nextWait(context.Background())
		assert.Equal(t, recheckInterval, wait)
		assert.False(t, fire)
	})

	t.Run("LoadErrorBacksOff", func(t *testing.T) {
		now := time.Date(2026, 8, 30, 8, 0, 0, 0, time.Local)
		state := &fakeState{loadErr: errors.New("db closed")}
		s := newTestScheduler(t, state, &fakeNotifier{}, now)

		wait, fire := s.nextWait(context.Background())
		assert.Equal(t, errorBackoff, wait)
		assert.False(t, fire)
	})

	t.Run("InvalidPreferredTimeRechecks", func(t *testing.T) {
		now := time.Date(2026, 8, 30, 8, 0, 0, 0, time.Local)
		state := enabledState(nil, "")
		state.state.PreferredTime = "25:99"
		s := newTestScheduler(t, state, &fakeNotifier{}, now)

		wait, fire := s.nextWait(context.Background())
		assert.Equal(t, recheckInterval, wait)
		assert.False(t, fire)
	})
}

func TestStartStopsOnContextCancel(t *testing.T) {
	now := time.Date(2026, 8, 30, 3, 0, 0, 0, time.Local)
	state := &fakeState{state: models.ReminderState{}}
	s := newTestScheduler(t, state, &fakeNotifier{}, now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestLogNotifier(t *testing.T) {
	logger := zerolog.New(io.Discard)
	n := NewLogNotifier(&logger)
	require.NoError(t, n.Notify(context.Background(), "title", "body"))
}
