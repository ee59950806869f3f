package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const recurringColumns = `id, user_id, title, COALESCE(description,''), hour, minute, days_of_week,
	start_date, end_date, next_run_at, enabled, created_at, updated_at`

// CreateRecurring stores a recurring definition. Call Schedule on it first
// so NextRunAt is set.
func (d *DB) CreateRecurring(ctx context.Context, r RecurringDefinition) (*RecurringDefinition, error) {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return nil, fmt.Errorf("creating recurring task: title is required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := d.now().UTC().Unix()
	if r.StartDate.IsZero() {
		r.StartDate = fromUnix(now)
	}
	_, err := d.conn.ExecContext(ctx, `INSERT INTO recurring_tasks (
		id, user_id, title, description, hour, minute, days_of_week,
		start_date, end_date, next_run_at, enabled, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Title, nullStr(r.Description), r.Hour, r.Minute, encodeDays(r.DaysOfWeek),
		r.StartDate.UTC().Unix(), unixOrNil(r.EndDate), unixOrNil(r.NextRunAt), boolInt(r.Enabled), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating recurring task: %w", err)
	}
	return d.GetRecurring(ctx, r.ID)
}

// GetRecurring returns the definition with the given id, or ErrNotFound.
func (d *DB) GetRecurring(ctx context.Context, id string) (*RecurringDefinition, error) {
	row := d.conn.QueryRowContext(ctx, "SELECT "+recurringColumns+" FROM recurring_tasks WHERE id = ?", id)
	r, err := scanRecurring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recurring task %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRecurring returns a user's recurring definitions.
func (d *DB) ListRecurring(ctx context.Context, userID string) ([]RecurringDefinition, error) {
	return d.scanRecurrings(ctx,
		"SELECT "+recurringColumns+" FROM recurring_tasks WHERE user_id = ? ORDER BY created_at",
		userID,
	)
}

// ListDueRecurring returns enabled definitions whose next run is at or
// before now.
func (d *DB) ListDueRecurring(ctx context.Context, now time.Time) ([]RecurringDefinition, error) {
	return d.scanRecurrings(ctx,
		"SELECT "+recurringColumns+" FROM recurring_tasks WHERE enabled = 1 AND next_run_at <= ? ORDER BY next_run_at",
		now.UTC().Unix(),
	)
}

func (d *DB) SetRecurringNextRun(ctx context.Context, id string, next time.Time) error {
	return d.updateRow(ctx, "recurring_tasks", id, map[string]any{"next_run_at": next.UTC().Unix()})
}

func (d *DB) DisableRecurring(ctx context.Context, id string) error {
	return d.updateRow(ctx, "recurring_tasks", id, map[string]any{"enabled": 0})
}

func (d *DB) scanRecurrings(ctx context.Context, query string, args ...any) ([]RecurringDefinition, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying recurring tasks: %w", err)
	}
	defer rows.Close()
	var out []RecurringDefinition
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRecurring(s scanner) (*RecurringDefinition, error) {
	var (
		r                       RecurringDefinition
		days                    string
		start, created, updated int64
		end, next               sql.NullInt64
		enabled                 int
	)
	err := s.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &r.Hour, &r.Minute, &days,
		&start, &end, &next, &enabled, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning recurring task: %w", err)
	}
	r.DaysOfWeek = decodeDays(days)
	r.StartDate = fromUnix(start)
	r.EndDate = fromNullUnix(end)
	r.NextRunAt = fromNullUnix(next)
	r.Enabled = enabled == 1
	r.CreatedAt, r.UpdatedAt = fromUnix(created), fromUnix(updated)
	return &r, nil
}
