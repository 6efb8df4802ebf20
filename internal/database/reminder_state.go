package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kopilka/internal/models"
)

// GetReminderState returns the single persisted reminder snapshot. When no
// row exists yet a zero-value disabled state is returned.
func (db *DB) GetReminderState(ctx context.Context) (*models.ReminderState, error) {
	query := `SELECT enabled, permission_granted, preferred_time, quiet_hours_start, quiet_hours_end,
              last_delivered_at, last_delivered_local_date, updated_at
              FROM reminder_state WHERE id = 1`

	var (
		state      models.ReminderState
		quietStart sql.NullString
		quietEnd   sql.NullString
		lastAt     sql.NullTime
		lastDate   sql.NullString
	)
	err := db.QueryRowContext(ctx, query).Scan(
		&state.Enabled,
		&state.PermissionGranted,
		&state.PreferredTime,
		&quietStart,
		&quietEnd,
		&lastAt,
		&lastDate,
		&state.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return &models.ReminderState{PreferredTime: models.DefaultReminderTime}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder state: %w", err)
	}

	state.QuietHoursStart = quietStart.String
	state.QuietHoursEnd = quietEnd.String
	if lastAt.Valid {
		t := lastAt.Time.UTC()
		state.LastDeliveredAt = &t
	}
	state.LastDeliveredLocalDate = lastDate.String
	return &state, nil
}

// SaveReminderState upserts the reminder settings (not the delivery marks).
func (db *DB) SaveReminderState(ctx context.Context, state *models.ReminderState) error {
	query := `INSERT INTO reminder_state (id, enabled, permission_granted, preferred_time, quiet_hours_start, quiet_hours_end, updated_at)
              VALUES (1, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  enabled = excluded.enabled,
                  permission_granted = excluded.permission_granted,
                  preferred_time = excluded.preferred_time,
                  quiet_hours_start = excluded.quiet_hours_start,
                  quiet_hours_end = excluded.quiet_hours_end,
                  updated_at = excluded.updated_at`

	_, err := db.ExecContext(ctx, query,
		state.Enabled,
		state.PermissionGranted,
		state.PreferredTime,
		nullString(state.QuietHoursStart),
		nullString(state.QuietHoursEnd),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save reminder state: %w", err)
	}
	return nil
}

// MarkReminderDelivered records both delivery marks: the UTC instant used by
// the spacing gate and the local date used by the daily cap.
func (db *DB) MarkReminderDelivered(ctx context.Context, at time.Time, localDate string) error {
	query := `INSERT INTO reminder_state (id, last_delivered_at, last_delivered_local_date, updated_at)
              VALUES (1, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  last_delivered_at = excluded.last_delivered_at,
                  last_delivered_local_date = excluded.last_delivered_local_date,
                  updated_at = excluded.updated_at`

	_, err := db.ExecContext(ctx, query, at.UTC(), localDate, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark reminder delivered: %w", err)
	}
	return nil
}
