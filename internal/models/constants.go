package models

const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

const (
	// MaxInstancesPerBatch ограничивает число сгенерированных записей
	// на один шаблон за один проход генератора
	MaxInstancesPerBatch = 100

	// DefaultReminderTime время напоминания по умолчанию
	DefaultReminderTime = "09:00"

	// DefaultRecurringInterval интервал запуска генератора в секундах
	DefaultRecurringInterval = 6 * 60 * 60

	// SnapshotCacheTTL время жизни кэшированных снимков в секундах
	SnapshotCacheTTL = 60 * 60
)

// KnownFrequency reports whether f is one of the supported recurrence
// frequencies.
func KnownFrequency(f string) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	default:
		return false
	}
}
