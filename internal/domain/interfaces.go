package domain

import (
	"context"
	"time"

	"kopilka/internal/models"

	"github.com/shopspring/decimal"
)

type Repository interface {
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, t *models.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	GetTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]models.Transaction, error)
	GetActiveRecurringTemplates(ctx context.Context, today time.Time) ([]models.Transaction, error)
	GetLatestInstanceDate(ctx context.Context, templateID int64) (*time.Time, error)
	InsertInstances(ctx context.Context, template *models.Transaction, dates []time.Time) (int, error)
	CancelRecurringTemplate(ctx context.Context, templateID int64, endDate time.Time) error
	UpdateRecurringSchedule(ctx context.Context, templateID int64, frequency string, endDate *time.Time) error
	CountInstances(ctx context.Context, templateID int64) (int, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	GetAllAccounts(ctx context.Context) ([]models.Account, error)
	GetAccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	GetMonthlySummary(ctx context.Context, year int, month time.Month) (income, expense decimal.Decimal, err error)
	GetReminderState(ctx context.Context) (*models.ReminderState, error)
	SaveReminderState(ctx context.Context, state *models.ReminderState) error
	MarkReminderDelivered(ctx context.Context, at time.Time, localDate string) error
}

// SnapshotRepository caches monthly summary snapshots for the shared-wallet
// sync agent.
type SnapshotRepository interface {
	GetSnapshot(ctx context.Context, key string) (*models.Snapshot, error)
	SetSnapshot(ctx context.Context, snapshot *models.Snapshot) error
	ClearSnapshot(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
