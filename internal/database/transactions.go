package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kopilka/internal/models"

	"github.com/shopspring/decimal"
)

const transactionColumns = `id, account_id, title, amount, type, date, note, is_recurring,
           recurrence_frequency, recurrence_end_date, parent_transaction_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t         models.Transaction
		amount    string
		note      sql.NullString
		frequency sql.NullString
		endDate   sql.NullTime
		parentID  sql.NullInt64
	)

	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.Title,
		&amount,
		&t.Type,
		&t.Date,
		&note,
		&t.IsRecurring,
		&frequency,
		&endDate,
		&parentID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	t.Note = note.String
	t.RecurrenceFrequency = frequency.String
	if endDate.Valid {
		d := endDate.Time
		t.RecurrenceEndDate = &d
	}
	if parentID.Valid {
		id := parentID.Int64
		t.ParentTransactionID = &id
	}
	return &t, nil
}

// CreateTransaction inserts a transaction row and fills in its ID.
func (db *DB) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	query := `INSERT INTO transactions (account_id, title, amount, type, date, note, is_recurring,
              recurrence_frequency, recurrence_end_date, parent_transaction_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		t.AccountID,
		t.Title,
		t.Amount.String(),
		t.Type,
		t.Date,
		t.Note,
		t.IsRecurring,
		nullString(t.RecurrenceFrequency),
		t.RecurrenceEndDate,
		t.ParentTransactionID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// GetTransaction returns a transaction by ID.
func (db *DB) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`
	t, err := scanTransaction(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return t, nil
}

// UpdateTransaction rewrites the mutable fields of a transaction.
func (db *DB) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	query := `UPDATE transactions SET account_id = ?, title = ?, amount = ?, type = ?, date = ?, note = ?, updated_at = ?
              WHERE id = ?`
	_, err := db.ExecContext(ctx, query,
		t.AccountID,
		t.Title,
		t.Amount.String(),
		t.Type,
		t.Date,
		t.Note,
		time.Now(),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", t.ID, err)
	}
	return nil
}

// DeleteTransaction removes a transaction row.
func (db *DB) DeleteTransaction(ctx context.Context, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transaction %d: %w", id, err)
	}
	return nil
}

// GetTransactionsByDateRange returns non-template rows within [start, end].
func (db *DB) GetTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]models.Transaction, error) {
	// strftime normalizes stored offsets to UTC; 'localtime' puts the value
	// back on the local calendar day before comparing.
	query := `SELECT ` + transactionColumns + `
              FROM transactions
              WHERE is_recurring = 0 AND strftime('%Y-%m-%d', date, 'localtime') BETWEEN ? AND ?
              ORDER BY date, created_at`

	rows, err := db.QueryContext(ctx, query,
		start.Format("2006-01-02"),
		end.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions by date range: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

// GetActiveRecurringTemplates returns templates due for generation: recurring
// rows whose end date is unset or not before today.
func (db *DB) GetActiveRecurringTemplates(ctx context.Context, today time.Time) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
              FROM transactions
              WHERE is_recurring = 1
              AND (recurrence_end_date IS NULL OR strftime('%Y-%m-%d', recurrence_end_date, 'localtime') >= ?)
              ORDER BY id`

	rows, err := db.QueryContext(ctx, query, today.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to get recurring templates: %w", err)
	}
	defer rows.Close()

	var templates []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring template: %w", err)
		}
		templates = append(templates, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return templates, nil
}

// GetLatestInstanceDate returns the date of the newest generated instance for
// a template, or nil when none exist yet.
func (db *DB) GetLatestInstanceDate(ctx context.Context, templateID int64) (*time.Time, error) {
	// Selecting the column directly keeps its declared DATETIME type, which
	// MAX() would strip for the driver's type conversion.
	query := `SELECT date FROM transactions WHERE parent_transaction_id = ? ORDER BY date DESC LIMIT 1`

	var latest time.Time
	err := db.QueryRowContext(ctx, query, templateID).Scan(&latest)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest instance date for template %d: %w", templateID, err)
	}
	return &latest, nil
}

// InsertInstances materializes instances of a template for the given dates
// inside one transaction. Dates already present are skipped via
// INSERT OR IGNORE on UNIQUE(parent_transaction_id, date); the returned count
// is the number of rows actually inserted.
func (db *DB) InsertInstances(ctx context.Context, template *models.Transaction, dates []time.Time) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}

	inserted := 0
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT OR IGNORE INTO transactions
                  (account_id, title, amount, type, date, note, is_recurring, parent_transaction_id, created_at, updated_at)
                  VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare instance insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now()
		for _, date := range dates {
			result, err := stmt.ExecContext(ctx,
				template.AccountID,
				template.Title,
				template.Amount.String(),
				template.Type,
				date,
				template.Note,
				template.ID,
				now,
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert instance for template %d at %s: %w",
					template.ID, date.Format("2006-01-02"), err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			inserted += int(affected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// CancelRecurringTemplate deactivates a template, closing its schedule at
// endDate. Already generated instances are left untouched.
func (db *DB) CancelRecurringTemplate(ctx context.Context, templateID int64, endDate time.Time) error {
	query := `UPDATE transactions SET recurrence_end_date = ?, updated_at = ? WHERE id = ? AND is_recurring = 1`
	result, err := db.ExecContext(ctx, query, endDate, time.Now(), templateID)
	if err != nil {
		return fmt.Errorf("failed to cancel recurring template %d: %w", templateID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateRecurringSchedule changes a template's frequency and end date.
func (db *DB) UpdateRecurringSchedule(ctx context.Context, templateID int64, frequency string, endDate *time.Time) error {
	query := `UPDATE transactions SET recurrence_frequency = ?, recurrence_end_date = ?, updated_at = ?
              WHERE id = ? AND is_recurring = 1`
	result, err := db.ExecContext(ctx, query, frequency, endDate, time.Now(), templateID)
	if err != nil {
		return fmt.Errorf("failed to update recurring schedule %d: %w", templateID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountInstances returns the number of generated instances for a template.
func (db *DB) CountInstances(ctx context.Context, templateID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE parent_transaction_id = ?`, templateID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count instances for template %d: %w", templateID, err)
	}
	return count, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
