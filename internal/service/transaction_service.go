package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kopilka/internal/domain"
	"kopilka/internal/events"
	"kopilka/internal/models"
	"kopilka/internal/writequeue"

	"github.com/rs/zerolog"
)

var (
	ErrEmptyTitle       = errors.New("transaction title is required")
	ErrInvalidAmount    = errors.New("transaction amount must be positive")
	ErrInvalidType      = errors.New("unknown transaction type")
	ErrInvalidFrequency = errors.New("unknown recurrence frequency")
)

// TransactionService is the mutation entry point for the presentation layer.
// Every write funnels through the write queue; reads go straight to the
// repository.
type TransactionService struct {
	repo   domain.Repository
	queue  *writequeue.Queue
	bus    domain.EventPublisher
	logger *zerolog.Logger
}

func NewTransactionService(repo domain.Repository, queue *writequeue.Queue, bus domain.EventPublisher, logger *zerolog.Logger) *TransactionService {
	return &TransactionService{
		repo:   repo,
		queue:  queue,
		bus:    bus,
		logger: logger,
	}
}

func validateTransaction(t *models.Transaction) error {
	if t.Title == "" {
		return ErrEmptyTitle
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Type != models.TypeIncome && t.Type != models.TypeExpense {
		return ErrInvalidType
	}
	if t.IsRecurring && !models.KnownFrequency(t.RecurrenceFrequency) {
		return ErrInvalidFrequency
	}
	return nil
}

// RecordTransaction persists a user-entered transaction or recurring
// template.
func (s *TransactionService) RecordTransaction(ctx context.Context, t *models.Transaction) error {
	if err := validateTransaction(t); err != nil {
		return err
	}

	err := s.queue.Do(ctx, "transaction_create", func(ctx context.Context) error {
		return s.repo.CreateTransaction(ctx, t)
	})
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}

	_ = s.bus.PublishJSON(events.EventTransactionRecorded, transactionPayload(t))
	return nil
}

func (s *TransactionService) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	if err := validateTransaction(t); err != nil {
		return err
	}

	err := s.queue.Do(ctx, "transaction_update", func(ctx context.Context) error {
		return s.repo.UpdateTransaction(ctx, t)
	})
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}

	_ = s.bus.PublishJSON(events.EventTransactionUpdated, transactionPayload(t))
	return nil
}

func (s *TransactionService) DeleteTransaction(ctx context.Context, id int64) error {
	// Загружаем дату до удаления, чтобы инвалидировать нужный месяц.
	existing, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	err = s.queue.Do(ctx, "transaction_delete", func(ctx context.Context) error {
		return s.repo.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	_ = s.bus.PublishJSON(events.EventTransactionDeleted, events.TransactionEventPayload{
		TransactionID: id,
		Date:          existing.Date,
	})
	return nil
}

// CancelRecurring closes a template's schedule as of now. Generated
// instances are never deleted.
func (s *TransactionService) CancelRecurring(ctx context.Context, templateID int64) error {
	endDate := time.Now()
	err := s.queue.Do(ctx, "recurring_cancel", func(ctx context.Context) error {
		return s.repo.CancelRecurringTemplate(ctx, templateID, endDate)
	})
	if err != nil {
		return fmt.Errorf("cancel recurring %d: %w", templateID, err)
	}

	_ = s.bus.PublishJSON(events.EventRecurringCancelled, events.GenerationEventPayload{TemplateID: templateID})
	return nil
}

// UpdateRecurring changes a template's schedule parameters.
func (s *TransactionService) UpdateRecurring(ctx context.Context, templateID int64, frequency string, endDate *time.Time) error {
	if !models.KnownFrequency(frequency) {
		return ErrInvalidFrequency
	}

	err := s.queue.Do(ctx, "recurring_update", func(ctx context.Context) error {
		return s.repo.UpdateRecurringSchedule(ctx, templateID, frequency, endDate)
	})
	if err != nil {
		return fmt.Errorf("update recurring %d: %w", templateID, err)
	}

	_ = s.bus.PublishJSON(events.EventRecurringUpdated, events.GenerationEventPayload{TemplateID: templateID})
	return nil
}

// GetTransactionsByDateRange is a read path and bypasses the write queue.
func (s *TransactionService) GetTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]models.Transaction, error) {
	return s.repo.GetTransactionsByDateRange(ctx, start, end)
}

func (s *TransactionService) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func transactionPayload(t *models.Transaction) events.TransactionEventPayload {
	return events.TransactionEventPayload{
		TransactionID: t.ID,
		AccountID:     t.AccountID,
		Title:         t.Title,
		Amount:        t.Amount.String(),
		Type:          t.Type,
		Date:          t.Date,
	}
}
