// Package notify owns the OS-facing side of reminders: it computes the next
// eligible slot, sleeps until it, and re-evaluates the eligibility gate at
// fire time, since the device clock or timezone may have changed while
// sleeping.
package notify

import (
	"context"
	"time"

	"kopilka/internal/events"
	"kopilka/internal/metrics"
	"kopilka/internal/models"
	"kopilka/internal/reminder"
	"kopilka/internal/writequeue"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	recheckInterval = 15 * time.Minute
	errorBackoff    = time.Minute
)

// Notifier delivers a notification to the platform.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// StateSource loads and persists the reminder snapshot. *database.DB
// satisfies it.
type StateSource interface {
	GetReminderState(ctx context.Context) (*models.ReminderState, error)
	MarkReminderDelivered(ctx context.Context, at time.Time, localDate string) error
}

type Scheduler struct {
	state    StateSource
	queue    *writequeue.Queue
	notifier Notifier
	bus      *events.EventBus
	logger   zerolog.Logger
	limiter  *rate.Limiter
	now      func() time.Time
}

func NewScheduler(state StateSource, queue *writequeue.Queue, notifier Notifier, bus *events.EventBus, logger *zerolog.Logger) *Scheduler {
	return &Scheduler{
		state:    state,
		queue:    queue,
		notifier: notifier,
		bus:      bus,
		logger:   logger.With().Str("component", "notify").Logger(),
		// Safety net against a tight scheduling loop misfiring.
		limiter: rate.NewLimiter(rate.Every(time.Minute), 3),
		now:     time.Now,
	}
}

// Start runs the scheduling loop until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Msg("reminder scheduler started")
	defer s.logger.Info().Msg("reminder scheduler stopped")

	for {
		wait, ok := s.nextWait(ctx)
		if !sleep(ctx, wait) {
			return
		}
		if ok {
			s.fire(ctx)
		}
	}
}

// nextWait computes how long to sleep and whether a delivery attempt should
// follow the sleep.
func (s *Scheduler) nextWait(ctx context.Context) (time.Duration, bool) {
	state, err := s.state.GetReminderState(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("load reminder state")
		return errorBackoff, false
	}
	if !state.Enabled || !state.PermissionGranted {
		return recheckInterval, false
	}

	preferred := state.PreferredTime
	if preferred == "" {
		preferred = models.DefaultReminderTime
	}

	candidate, err := reminder.ComputeNextEligible(
		s.now(),
		preferred,
		state.LastDeliveredAt,
		state.LastDeliveredLocalDate,
		state.QuietHoursStart,
		state.QuietHoursEnd,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("preferred_time", preferred).Msg("compute next reminder slot")
		return recheckInterval, false
	}

	wait := candidate.Local.Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	// Never sleep past a settings change for too long.
	if wait > recheckInterval {
		return recheckInterval, false
	}

	s.logger.Debug().
		Time("candidate", candidate.Local).
		Str("candidate_date", candidate.LocalDate).
		Msg("sleeping until reminder slot")
	return wait, true
}

// fire re-checks the gate with fresh state and the current clock, then
// delivers and persists both delivery marks.
func (s *Scheduler) fire(ctx context.Context) {
	if !s.limiter.Allow() {
		s.logger.Warn().Msg("reminder delivery rate limited")
		return
	}

	state, err := s.state.GetReminderState(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("reload reminder state")
		return
	}

	now := s.now()
	result := reminder.EvaluateDeliveryGate(now, state.Enabled, state.PermissionGranted, state.LastDeliveredAt)
	if !result.Allowed {
		metrics.IncGateDecision(string(result.Reason))
		s.logger.Debug().Str("reason", string(result.Reason)).Msg("reminder delivery refused")
		return
	}

	localDate := reminder.FormatLocalDate(now)
	if state.LastDeliveredLocalDate == localDate {
		metrics.IncGateDecision("daily_cap")
		s.logger.Debug().Str("local_date", localDate).Msg("reminder already delivered today")
		return
	}
	metrics.IncGateDecision("allowed")

	if err := s.notifier.Notify(ctx, "Копилка", "Не забудьте записать сегодняшние расходы"); err != nil {
		s.logger.Error().Err(err).Msg("reminder delivery failed")
		return
	}

	err = s.queue.Do(ctx, "reminder_mark_delivered", func(ctx context.Context) error {
		return s.state.MarkReminderDelivered(ctx, now, localDate)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("persist reminder delivery marks")
		return
	}

	_ = s.bus.PublishJSON(events.EventReminderDelivered, events.ReminderEventPayload{
		DeliveredAt: now.UTC(),
		LocalDate:   localDate,
	})
	s.logger.Info().Str("local_date", localDate).Msg("reminder delivered")
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
