package database

import (
	"context"
	"fmt"
	"time"

	"kopilka/internal/models"

	"github.com/shopspring/decimal"
)

func (db *DB) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (name, currency, created_at, updated_at) VALUES (?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, account.Name, account.Currency, now, now)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	account.ID = id
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

func (db *DB) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT id, name, currency, created_at, updated_at FROM accounts WHERE id = ?`

	var account models.Account
	err := db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.Name,
		&account.Currency,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return &account, nil
}

func (db *DB) GetAllAccounts(ctx context.Context) ([]models.Account, error) {
	query := `SELECT id, name, currency, created_at, updated_at FROM accounts ORDER BY id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		err := rows.Scan(
			&account.ID,
			&account.Name,
			&account.Currency,
			&account.CreatedAt,
			&account.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetAccountBalance derives a balance as income minus expense over all
// non-template rows of the account. Summed in Go so decimal precision is
// never lost to sqlite float math.
func (db *DB) GetAccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	query := `SELECT amount, type FROM transactions WHERE account_id = ? AND is_recurring = 0`

	rows, err := db.QueryContext(ctx, query, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get account balance %d: %w", accountID, err)
	}
	defer rows.Close()

	balance := decimal.Zero
	for rows.Next() {
		var raw, txType string
		if err := rows.Scan(&raw, &txType); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse amount %q: %w", raw, err)
		}
		if txType == models.TypeIncome {
			balance = balance.Add(amount)
		} else {
			balance = balance.Sub(amount)
		}
	}
	if err = rows.Err(); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}
