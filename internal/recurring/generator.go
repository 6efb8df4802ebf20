// Package recurring materializes transaction instances from recurring
// templates. Generation is idempotent: anchors are recomputed from persisted
// instances on every run, and inserts are keyed by
// UNIQUE(parent_transaction_id, date), so re-running the same computation is
// a no-op for dates already materialized.
package recurring

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"kopilka/internal/database"
	"kopilka/internal/events"
	"kopilka/internal/metrics"
	"kopilka/internal/models"
	"kopilka/internal/writequeue"

	"github.com/rs/zerolog"
)

type Generator struct {
	db     *database.DB
	queue  *writequeue.Queue
	bus    *events.EventBus
	logger zerolog.Logger

	running    atomic.Bool
	now        func() time.Time
	batchLimit int
}

func NewGenerator(db *database.DB, queue *writequeue.Queue, bus *events.EventBus, logger *zerolog.Logger) *Generator {
	return &Generator{
		db:         db,
		queue:      queue,
		bus:        bus,
		logger:     logger.With().Str("component", "recurring").Logger(),
		now:        time.Now,
		batchLimit: models.MaxInstancesPerBatch,
	}
}

// SetBatchLimit overrides the per-template instance cap per run.
func (g *Generator) SetBatchLimit(limit int) {
	if limit > 0 {
		g.batchLimit = limit
	}
}

// Process scans active templates and materializes every instance due up to
// today, at most batchLimit per template per run. A run requested while one
// is in progress is skipped, not queued. The whole scan shares one error
// boundary: the first failing template aborts the templates after it; the
// next run resumes from the persisted anchors. Returns the number of
// instances inserted.
func (g *Generator) Process(ctx context.Context) (int, error) {
	if !g.running.CompareAndSwap(false, true) {
		g.logger.Warn().Msg("generation already in progress, run skipped")
		metrics.IncSkippedRun()
		return 0, nil
	}
	defer g.running.Store(false)

	today := dateOnly(g.now())
	templates, err := g.db.GetActiveRecurringTemplates(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("load recurring templates: %w", err)
	}

	total := 0
	for i := range templates {
		n, err := g.processTemplate(ctx, &templates[i], today)
		if err != nil {
			return total, fmt.Errorf("template %d: %w", templates[i].ID, err)
		}
		total += n
	}
	return total, nil
}

func (g *Generator) processTemplate(ctx context.Context, template *models.Transaction, today time.Time) (int, error) {
	latest, err := g.db.GetLatestInstanceDate(ctx, template.ID)
	if err != nil {
		return 0, err
	}

	anchor := dateOnly(template.Date)
	if latest != nil {
		anchor = dateOnly(*latest)
	}

	dates := missingDates(anchor, today, template.RecurrenceFrequency, template.RecurrenceEndDate, g.batchLimit)
	if len(dates) == 0 {
		return 0, nil
	}

	var inserted int
	opName := fmt.Sprintf("recurring_insert_%d", template.ID)
	err = g.queue.Do(ctx, opName, func(ctx context.Context) error {
		n, err := g.db.InsertInstances(ctx, template, dates)
		inserted = n
		return err
	})
	if err != nil {
		return 0, err
	}

	metrics.AddGeneratedInstances(inserted)
	if inserted > 0 {
		last := dates[len(dates)-1]
		g.logger.Info().
			Int64("template_id", template.ID).
			Int("inserted", inserted).
			Str("last_date", last.Format("2006-01-02")).
			Msg("materialized recurring instances")
		_ = g.bus.PublishJSON(events.EventInstancesGenerated, events.GenerationEventPayload{
			TemplateID: template.ID,
			Inserted:   inserted,
			LastDate:   last,
		})
	}
	return inserted, nil
}

// missingDates lists due instance dates strictly after anchor: advanced by
// whole periods, never past today or the template end date, capped at limit.
func missingDates(anchor, today time.Time, frequency string, endDate *time.Time, limit int) []time.Time {
	var dates []time.Time
	next := models.NextOccurrence(anchor, frequency)
	for !next.After(today) && len(dates) < limit {
		if endDate != nil && next.After(dateOnly(*endDate)) {
			break
		}
		dates = append(dates, next)
		next = models.NextOccurrence(next, frequency)
	}
	return dates
}

// dateOnly truncates to local midnight using calendar components, so dates
// read back from the database in another zone still land on the same day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.In(time.Local).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
