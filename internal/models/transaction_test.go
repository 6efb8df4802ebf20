package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextOccurrence(t *testing.T) {
	from := time.Date(2026, 1, 31, 0, 0, 0, 0, time.Local)

	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.Local), NextOccurrence(from, FrequencyDaily))
	assert.Equal(t, time.Date(2026, 2, 7, 0, 0, 0, 0, time.Local), NextOccurrence(from, FrequencyWeekly))
	// AddDate normalizes Jan 31 + 1 month to Mar 3.
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.Local), NextOccurrence(from, FrequencyMonthly))
	assert.Equal(t, time.Date(2027, 1, 31, 0, 0, 0, 0, time.Local), NextOccurrence(from, FrequencyYearly))
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.Local), NextOccurrence(from, "unknown"))
}

func TestKnownFrequency(t *testing.T) {
	for _, f := range []string{FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly} {
		assert.True(t, KnownFrequency(f), f)
	}
	assert.False(t, KnownFrequency(""))
	assert.False(t, KnownFrequency("hourly"))
}

func TestIsGenerated(t *testing.T) {
	var tx Transaction
	assert.False(t, tx.IsGenerated())

	parent := int64(7)
	tx.ParentTransactionID = &parent
	assert.True(t, tx.IsGenerated())
}
