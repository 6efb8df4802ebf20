package models

import "time"

// Snapshot is a cached monthly summary. Key is "YYYY-MM"; amounts are
// decimal strings to survive JSON round trips unchanged.
type Snapshot struct {
	Key       string    `json:"key"`
	Income    string    `json:"income"`
	Expense   string    `json:"expense"`
	Balance   string    `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}
