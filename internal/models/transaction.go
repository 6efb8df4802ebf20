package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single ledger row. A row with IsRecurring set is a
// recurring template; a row with ParentTransactionID set is an instance
// materialized from a template.
type Transaction struct {
	ID                  int64           `json:"id"`
	AccountID           int64           `json:"account_id"`
	Title               string          `json:"title"`
	Amount              decimal.Decimal `json:"amount"`
	Type                string          `json:"type"`
	Date                time.Time       `json:"date"`
	Note                string          `json:"note,omitempty"`
	IsRecurring         bool            `json:"is_recurring"`
	RecurrenceFrequency string          `json:"recurrence_frequency,omitempty"`
	RecurrenceEndDate   *time.Time      `json:"recurrence_end_date,omitempty"`
	ParentTransactionID *int64          `json:"parent_transaction_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// IsGenerated reports whether the row was materialized from a template.
func (t *Transaction) IsGenerated() bool {
	return t.ParentTransactionID != nil
}

// NextOccurrence advances a date by one recurrence period.
// Unknown frequencies advance by one day.
func NextOccurrence(from time.Time, frequency string) time.Time {
	switch frequency {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	case FrequencyYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 0, 1)
	}
}
