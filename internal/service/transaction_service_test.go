package service

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"kopilka/internal/database"
	"kopilka/internal/events"
	"kopilka/internal/models"
	"kopilka/internal/writequeue"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceEnv struct {
	db        *database.DB
	bus       *events.EventBus
	service   *TransactionService
	accountID int64
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	queue := writequeue.New(writequeue.Options{
		Logger:      &logger,
		IsRetryable: database.IsLockContention,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go queue.Start(ctx)
	t.Cleanup(func() {
		cancel()
		queue.Wait()
	})

	account := &models.Account{Name: "Cash", Currency: "RUB"}
	require.NoError(t, db.CreateAccount(context.Background(), account))

	bus := events.NewEventBus()
	return &serviceEnv{
		db:        db,
		bus:       bus,
		service:   NewTransactionService(db, queue, bus, &logger),
		accountID: account.ID,
	}
}

func validExpense(accountID int64) *models.Transaction {
	return &models.Transaction{
		AccountID: accountID,
		Title:     "Groceries",
		Amount:    decimal.NewFromInt(1500),
		Type:      models.TypeExpense,
		Date:      time.Date(2026, 8, 30, 0, 0, 0, 0, time.Local),
	}
}

func TestRecordTransaction(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	recorded := 0
	env.bus.Subscribe(events.EventTransactionRecorded, func(event *events.Event) error {
		recorded++
		return nil
	})

	tx := validExpense(env.accountID)
	require.NoError(t, env.service.RecordTransaction(ctx, tx))
	assert.NotZero(t, tx.ID)
	assert.Equal(t, 1, recorded)

	got, err := env.service.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Title)
}

func TestRecordTransactionValidation(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*models.Transaction)
		wantErr error
	}{
		{"EmptyTitle", func(x *models.Transaction) { x.Title = "" }, ErrEmptyTitle},
		{"ZeroAmount", func(x *models.Transaction) { x.Amount = decimal.Zero }, ErrInvalidAmount},
		{"NegativeAmount", func(x *models.Transaction) { x.Amount = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"UnknownType", func(x *models.Transaction) { x.Type = "transfer" }, ErrInvalidType},
		{"UnknownFrequency", func(x *models.Transaction) {
			x.IsRecurring = true
			x.RecurrenceFrequency = "hourly"
		}, ErrInvalidFrequency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validExpense(env.accountID)
			tc.mutate(tx)
			err := env.service.RecordTransaction(ctx, tx)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	tx := validExpense(env.accountID)
	require.NoError(t, env.service.RecordTransaction(ctx, tx))

	tx.Title = "Groceries and household"
	require.NoError(t, env.service.UpdateTransaction(ctx, tx))

	got, err := env.service.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries and household", got.Title)

	var deleted events.TransactionEventPayload
	env.bus.Subscribe(events.EventTransactionDeleted, func(event *events.Event) error {
		return json.Unmarshal(event.Payload, &deleted)
	})

	require.NoError(t, env.service.DeleteTransaction(ctx, tx.ID))
	_, err = env.service.GetTransaction(ctx, tx.ID)
	assert.True(t, database.IsNotFound(err))
	// The event carries the row's date for cache invalidation.
	assert.Equal(t, "2026-08-30", deleted.Date.In(time.Local).Format("2006-01-02"))

	err = env.service.DeleteTransaction(ctx, tx.ID)
	assert.True(t, database.IsNotFound(err))
}

func TestCancelAndUpdateRecurring(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	template := validExpense(env.accountID)
	template.IsRecurring = true
	template.RecurrenceFrequency = models.FrequencyMonthly
	require.NoError(t, env.service.RecordTransaction(ctx, template))

	newEnd := time.Date(2027, 1, 1, 0, 0, 0, 0, time.Local)
	require.NoError(t, env.service.UpdateRecurring(ctx, template.ID, models.FrequencyWeekly, &newEnd))

	got, err := env.service.GetTransaction(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FrequencyWeekly, got.RecurrenceFrequency)

	assert.ErrorIs(t, env.service.UpdateRecurring(ctx, template.ID, "hourly", nil), ErrInvalidFrequency)

	require.NoError(t, env.service.CancelRecurring(ctx, template.ID))
	got, err = env.service.GetTransaction(ctx, template.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.RecurrenceEndDate)

	// Cancelling a plain transaction is reported.
	plain := validExpense(env.accountID)
	require.NoError(t, env.service.RecordTransaction(ctx, plain))
	err = env.service.CancelRecurring(ctx, plain.ID)
	assert.True(t, database.IsNotFound(err))
}
