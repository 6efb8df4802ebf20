package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kopilka/internal/domain"
	"kopilka/internal/events"
	"kopilka/internal/models"

	"github.com/rs/zerolog"
)

// SummaryService serves monthly income/expense summaries through the
// snapshot cache, recomputing from the database on a miss.
type SummaryService struct {
	repo   domain.Repository
	cache  domain.SnapshotRepository
	logger *zerolog.Logger
}

func NewSummaryService(repo domain.Repository, cache domain.SnapshotRepository, logger *zerolog.Logger) *SummaryService {
	return &SummaryService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// MonthKey renders the cache key for a calendar month.
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

func (s *SummaryService) MonthlySummary(ctx context.Context, year int, month time.Month) (*models.Snapshot, error) {
	key := MonthKey(year, month)

	cached, err := s.cache.GetSnapshot(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("snapshot cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	income, expense, err := s.repo.GetMonthlySummary(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("compute monthly summary %s: %w", key, err)
	}

	snapshot := &models.Snapshot{
		Key:       key,
		Income:    income.String(),
		Expense:   expense.String(),
		Balance:   income.Sub(expense).String(),
		UpdatedAt: time.Now(),
	}
	if err := s.cache.SetSnapshot(ctx, snapshot); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("snapshot cache write failed")
	}
	return snapshot, nil
}

// SubscribeInvalidation drops cached months touched by mutation events.
func (s *SummaryService) SubscribeInvalidation(bus *events.EventBus) {
	invalidateTransaction := func(event *events.Event) error {
		var payload events.TransactionEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		return s.invalidateDate(payload.Date)
	}
	invalidateGeneration := func(event *events.Event) error {
		var payload events.GenerationEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		return s.invalidateDate(payload.LastDate)
	}

	bus.Subscribe(events.EventTransactionRecorded, invalidateTransaction)
	bus.Subscribe(events.EventTransactionUpdated, invalidateTransaction)
	bus.Subscribe(events.EventTransactionDeleted, invalidateTransaction)
	bus.Subscribe(events.EventInstancesGenerated, invalidateGeneration)
}

func (s *SummaryService) invalidateDate(date time.Time) error {
	if date.IsZero() {
		return nil
	}
	// Dates read back from the database arrive in UTC; bucket by local month.
	local := date.In(time.Local)
	key := MonthKey(local.Year(), local.Month())
	if err := s.cache.ClearSnapshot(context.Background(), key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("snapshot invalidation failed")
		return err
	}
	return nil
}
