// Package recurrence computes the next execution instant of a repeating
// schedule. All arithmetic happens in UTC.
package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

var ErrUnknownFrequency = errors.New("unknown frequency")

// Cadence describes when a schedule fires.
type Cadence struct {
	Frequency  Frequency
	Interval   int   // every N units, values below 1 mean 1
	DaysOfWeek []int // weekly: 0=Sunday..6=Saturday
	DayOfMonth int   // monthly: 1-31, 0 means the day-of-month of now
	Hour       int
	Minute     int
}

// ValidFrequency reports whether f is one of the supported frequencies.
func ValidFrequency(f string) bool {
	switch Frequency(f) {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// NextRun returns the earliest instant at or after now that satisfies c.
// Seconds and sub-seconds of the result are always zero.
func NextRun(now time.Time, c Cadence) (time.Time, error) {
	now = now.UTC()
	interval := max(c.Interval, 1)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	at := func(day time.Time) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, time.UTC)
	}

	switch c.Frequency {
	case Daily:
		candidate := at(today)
		if candidate.Before(now) {
			candidate = candidate.AddDate(0, 0, interval)
		}
		return candidate, nil

	case Weekly:
		days := c.DaysOfWeek
		if len(days) == 0 {
			days = []int{int(now.Weekday())}
		}
		for i := 0; i <= 7*interval; i++ {
			day := today.AddDate(0, 0, i)
			if !slices.Contains(days, int(day.Weekday())) {
				continue
			}
			if candidate := at(day); !candidate.Before(now) {
				return candidate, nil
			}
		}
		return at(today.AddDate(0, 0, 7*interval)), nil

	case Monthly:
		dom := c.DayOfMonth
		if dom == 0 {
			dom = now.Day()
		}
		dom = min(max(dom, 1), 31)
		candidate := at(clampDay(now.Year(), now.Month(), dom))
		if candidate.Before(now) {
			first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, interval, 0)
			candidate = at(clampDay(first.Year(), first.Month(), dom))
		}
		return candidate, nil
	}

	return time.Time{}, fmt.Errorf("next run for %q: %w", c.Frequency, ErrUnknownFrequency)
}

// clampDay returns the date of day dom in the given month, pulled back to the
// last day when the month is shorter.
func clampDay(year int, month time.Month, dom int) time.Time {
	return time.Date(year, month, min(dom, DaysIn(year, month)), 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
