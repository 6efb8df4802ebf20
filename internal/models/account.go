package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account groups transactions; Balance is derived, not stored.
type Account struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
