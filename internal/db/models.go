package db

import (
	"fmt"
	"slices"
	"time"

	"github.com/chris/tasky/internal/recurrence"
)

const (
	StatusPending = "pending"
	StatusDone    = "done"
)

// ValidStatus reports whether s is a task status.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusDone
}

var AllDays = []int{0, 1, 2, 3, 4, 5, 6}

type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	ExternalID string    `json:"external_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Task struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	DueDate     *time.Time  `json:"due_date,omitempty"`
	Status      string      `json:"status"`
	Repeat      *RepeatSpec `json:"repeat,omitempty"`
	// SourceID names the repeating task or recurring definition this
	// task was materialized from.
	SourceID  string    `json:"source_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RepeatSpec makes a task a template that the scheduler copies at every
// run. Hour and Minute are UTC.
type RepeatSpec struct {
	Enabled    bool       `json:"enabled"`
	Frequency  string     `json:"frequency"`
	Interval   int        `json:"interval"`
	DaysOfWeek []int      `json:"days_of_week,omitempty"`
	DayOfMonth int        `json:"day_of_month,omitempty"`
	Hour       int        `json:"hour"`
	Minute     int        `json:"minute"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
}

func (r RepeatSpec) Cadence() recurrence.Cadence {
	return recurrence.Cadence{
		Frequency:  recurrence.Frequency(r.Frequency),
		Interval:   r.Interval,
		DaysOfWeek: r.DaysOfWeek,
		DayOfMonth: r.DayOfMonth,
		Hour:       r.Hour,
		Minute:     r.Minute,
	}
}

// Schedule validates the spec, fills defaults and sets NextRunAt to the
// first run at or after now. A spec without a frequency is weekly when days
// are given, else daily. Weekdays outside 0-6 are dropped.
func (r *RepeatSpec) Schedule(now time.Time) error {
	if r.Hour < 0 || r.Hour > 23 || r.Minute < 0 || r.Minute > 59 {
		return fmt.Errorf("invalid repeat time %02d:%02d", r.Hour, r.Minute)
	}
	if r.DayOfMonth < 0 || r.DayOfMonth > 31 {
		return fmt.Errorf("invalid repeat day of month %d", r.DayOfMonth)
	}
	r.DaysOfWeek = validDays(r.DaysOfWeek)
	if r.Frequency == "" {
		if len(r.DaysOfWeek) > 0 {
			r.Frequency = string(recurrence.Weekly)
		} else {
			r.Frequency = string(recurrence.Daily)
		}
	}
	if r.Interval < 1 {
		r.Interval = 1
	}
	next, err := recurrence.NextRun(now, r.Cadence())
	if err != nil {
		return fmt.Errorf("scheduling repeat: %w", err)
	}
	r.NextRunAt = &next
	return nil
}

// RecurringDefinition is a standalone habit that fires on the given
// weekdays at Hour:Minute UTC.
type RecurringDefinition struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Hour        int        `json:"hour"`
	Minute      int        `json:"minute"`
	DaysOfWeek  []int      `json:"days_of_week"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
	Enabled     bool       `json:"enabled"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (r RecurringDefinition) Cadence() recurrence.Cadence {
	return recurrence.Cadence{
		Frequency:  recurrence.Weekly,
		Interval:   1,
		DaysOfWeek: r.DaysOfWeek,
		Hour:       r.Hour,
		Minute:     r.Minute,
	}
}

// Schedule validates the definition, fills defaults and computes the first
// run at or after max(now, StartDate).
func (r *RecurringDefinition) Schedule(now time.Time) error {
	if r.Hour < 0 || r.Hour > 23 || r.Minute < 0 || r.Minute > 59 {
		return fmt.Errorf("invalid time %02d:%02d", r.Hour, r.Minute)
	}
	days := validDays(r.DaysOfWeek)
	if len(days) == 0 {
		days = slices.Clone(AllDays)
	}
	r.DaysOfWeek = days
	if r.StartDate.IsZero() {
		r.StartDate = now.UTC()
	}
	from := now
	if r.StartDate.After(from) {
		from = r.StartDate
	}
	next, err := recurrence.NextRun(from, r.Cadence())
	if err != nil {
		return fmt.Errorf("scheduling recurring task: %w", err)
	}
	r.NextRunAt = &next
	r.Enabled = true
	return nil
}

// Expired reports whether the definition's end date has passed at now.
func (r RecurringDefinition) Expired(now time.Time) bool {
	return r.EndDate != nil && r.EndDate.Before(now)
}

// TaskPatch lists the fields to change on a task. Nil fields are left
// alone; ClearDueDate removes the due date.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *string
	DueDate      *time.Time
	ClearDueDate bool
}

// validDays keeps the distinct weekdays in 0-6, sorted.
func validDays(in []int) []int {
	var days []int
	for _, d := range in {
		if d >= 0 && d <= 6 && !slices.Contains(days, d) {
			days = append(days, d)
		}
	}
	slices.Sort(days)
	return days
}
