// Package reminder decides when the single daily reminder may fire. It is a
// pure policy library: no clocks, no I/O, no shared state. Two separate time
// representations carry two separate invariants. The UTC instant of the last
// delivery backs the 12-hour spacing rule, and the local-calendar date string
// backs the once-per-day cap. They are never interchangeable.
package reminder

import (
	"fmt"
	"time"
)

// MinDeliverySpacing is the absolute time required between deliveries,
// measured on UTC instants regardless of device timezone changes.
const MinDeliverySpacing = 12 * time.Hour

// Reason explains a refused delivery.
type Reason string

const (
	ReasonDisabled          Reason = "disabled"
	ReasonPermissionDenied  Reason = "permission_denied"
	ReasonSpacingNotElapsed Reason = "spacing_not_elapsed"
)

// GateResult is a structured decision; the gate never returns errors for
// policy refusals.
type GateResult struct {
	Allowed bool
	Reason  Reason
}

// EvaluateDeliveryGate checks delivery preconditions in order, short-circuiting
// on the first failure. The spacing check compares instants, never local
// dates, so shifting the device clock's timezone cannot produce an early
// second delivery.
func EvaluateDeliveryGate(now time.Time, enabled, permissionGranted bool, lastDeliveredAt *time.Time) GateResult {
	if !enabled {
		return GateResult{Reason: ReasonDisabled}
	}
	if !permissionGranted {
		return GateResult{Reason: ReasonPermissionDenied}
	}
	if lastDeliveredAt != nil && now.Sub(*lastDeliveredAt) < MinDeliverySpacing {
		return GateResult{Reason: ReasonSpacingNotElapsed}
	}
	return GateResult{Allowed: true}
}

// Candidate is the next slot at which delivery may be attempted. LocalDate is
// the day-bucket key the caller stores on delivery.
type Candidate struct {
	Local     time.Time
	LocalDate string
}

// ComputeNextEligible returns the next delivery slot in now's location.
//
// The preferred time of day dominates: the slot is today's preferred time
// (tomorrow's when already past). When the 12-hour spacing floor lands after
// that slot, the slot slips a whole day to the next preferred time rather
// than to the bare floor, and a slot falling on the already-delivered local
// date slips the same way. A slot inside the quiet window (which may wrap
// midnight) is pushed to the window's end.
func ComputeNextEligible(now time.Time, preferredTime string, lastDeliveredAt *time.Time,
	lastDeliveredLocalDate, quietStart, quietEnd string) (Candidate, error) {

	prefHour, prefMin, err := parseClock(preferredTime)
	if err != nil {
		return Candidate{}, fmt.Errorf("preferred time: %w", err)
	}

	loc := now.Location()
	year, month, day := now.Date()
	candidate := time.Date(year, month, day, prefHour, prefMin, 0, 0, loc)
	if candidate.Before(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}

	if lastDeliveredAt != nil {
		floor := lastDeliveredAt.Add(MinDeliverySpacing).In(loc)
		if floor.After(candidate) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	}

	if lastDeliveredLocalDate != "" && FormatLocalDate(candidate) == lastDeliveredLocalDate {
		candidate = candidate.AddDate(0, 0, 1)
	}

	if quietStart != "" && quietEnd != "" {
		candidate, err = shiftOutOfQuietWindow(candidate, quietStart, quietEnd)
		if err != nil {
			return Candidate{}, err
		}
	}

	return Candidate{Local: candidate, LocalDate: FormatLocalDate(candidate)}, nil
}

// FormatLocalDate renders a local-calendar day-bucket key. It is a dedup key
// only and must never feed spacing math.
func FormatLocalDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// shiftOutOfQuietWindow moves t forward to the quiet window's end when t
// falls inside it. The window may wrap midnight (21:00 to 07:00).
func shiftOutOfQuietWindow(t time.Time, quietStart, quietEnd string) (time.Time, error) {
	startHour, startMin, err := parseClock(quietStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("quiet hours start: %w", err)
	}
	endHour, endMin, err := parseClock(quietEnd)
	if err != nil {
		return time.Time{}, fmt.Errorf("quiet hours end: %w", err)
	}

	minuteOfDay := t.Hour()*60 + t.Minute()
	start := startHour*60 + startMin
	end := endHour*60 + endMin
	wraps := end <= start

	var inside bool
	if wraps {
		inside = minuteOfDay >= start || minuteOfDay < end
	} else {
		inside = minuteOfDay >= start && minuteOfDay < end
	}
	if !inside {
		return t, nil
	}

	year, month, day := t.Date()
	shifted := time.Date(year, month, day, endHour, endMin, 0, 0, t.Location())
	// In the late-evening half of a wrapped window the end time belongs to
	// the next calendar day.
	if wraps && minuteOfDay >= start {
		shifted = shifted.AddDate(0, 0, 1)
	}
	return shifted, nil
}

func parseClock(value string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: %w", value, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q: out of range", value)
	}
	return hour, minute, nil
}
