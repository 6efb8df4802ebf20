package models

import "time"

// ReminderState is the persisted daily-reminder snapshot. LastDeliveredAt is
// a UTC instant and is the only field used for spacing math;
// LastDeliveredLocalDate is a local-calendar bucket key and is the only field
// used for the once-per-day cap. The two must never be collapsed into one.
type ReminderState struct {
	Enabled                bool       `json:"enabled"`
	PermissionGranted      bool       `json:"permission_granted"`
	PreferredTime          string     `json:"preferred_time"`
	QuietHoursStart        string     `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd          string     `json:"quiet_hours_end,omitempty"`
	LastDeliveredAt        *time.Time `json:"last_delivered_at,omitempty"`
	LastDeliveredLocalDate string     `json:"last_delivered_local_date,omitempty"`
	UpdatedAt              time.Time  `json:"updated_at"`
}
