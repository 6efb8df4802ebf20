package database

import (
	"context"
	"fmt"
	"time"

	"kopilka/internal/models"

	"github.com/shopspring/decimal"
)

// GetMonthlySummary sums income and expense over all non-template rows of a
// calendar month.
func (db *DB) GetMonthlySummary(ctx context.Context, year int, month time.Month) (decimal.Decimal, decimal.Decimal, error) {
	query := `SELECT amount, type FROM transactions
              WHERE is_recurring = 0 AND strftime('%Y-%m', date, 'localtime') = ?`

	rows, err := db.QueryContext(ctx, query, fmt.Sprintf("%04d-%02d", year, int(month)))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to get monthly summary: %w", err)
	}
	defer rows.Close()

	income, expense := decimal.Zero, decimal.Zero
	for rows.Next() {
		var raw, txType string
		if err := rows.Scan(&raw, &txType); err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to parse amount %q: %w", raw, err)
		}
		if txType == models.TypeIncome {
			income = income.Add(amount)
		} else {
			expense = expense.Add(amount)
		}
	}
	if err = rows.Err(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return income, expense, nil
}
