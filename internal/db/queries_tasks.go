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

const taskColumns = `id, user_id, title, COALESCE(description,''), due_date, status,
	repeat_enabled, COALESCE(repeat_frequency,''), repeat_interval, COALESCE(repeat_days,''),
	repeat_day_of_month, repeat_hour, repeat_minute, repeat_next_run,
	COALESCE(source_id,''), created_at, updated_at`

// CreateTask inserts t, assigning an id and timestamps, and returns the
// stored task.
func (d *DB) CreateTask(ctx context.Context, t Task) (*Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return nil, fmt.Errorf("creating task: title is required")
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if !ValidStatus(t.Status) {
		return nil, fmt.Errorf("creating task: invalid status %q", t.Status)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := fromUnix(d.now().Unix())
	t.CreatedAt, t.UpdatedAt = now, now

	var rep RepeatSpec
	if t.Repeat != nil {
		rep = *t.Repeat
	}
	if rep.Interval < 1 {
		rep.Interval = 1
	}

	_, err := d.conn.ExecContext(ctx, `INSERT INTO tasks (
		id, user_id, title, description, due_date, status,
		repeat_enabled, repeat_frequency, repeat_interval, repeat_days,
		repeat_day_of_month, repeat_hour, repeat_minute, repeat_next_run,
		source_id, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, nullStr(t.Description), unixOrNil(t.DueDate), t.Status,
		boolInt(rep.Enabled), nullStr(rep.Frequency), rep.Interval, nullStr(encodeDays(rep.DaysOfWeek)),
		rep.DayOfMonth, rep.Hour, rep.Minute, unixOrNil(rep.NextRunAt),
		nullStr(t.SourceID), now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return d.GetTask(ctx, t.ID)
}

// GetTask returns the task with the given id, or ErrNotFound.
func (d *DB) GetTask(ctx context.Context, id string) (*Task, error) {
	row := d.conn.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// ListTasks returns a user's tasks, optionally filtered by status, soonest
// due first and undated last.
func (d *DB) ListTasks(ctx context.Context, userID, status string) ([]Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE user_id = ?"
	args := []any{userID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY due_date IS NULL, due_date, created_at"
	return d.scanTasks(ctx, query, args...)
}

// UpdateTask applies p to the task and returns the result.
func (d *DB) UpdateTask(ctx context.Context, id string, p TaskPatch) (*Task, error) {
	fields := map[string]any{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, fmt.Errorf("updating task %s: title cannot be empty", id)
		}
		fields["title"] = title
	}
	if p.Description != nil {
		fields["description"] = nullStr(*p.Description)
	}
	if p.Status != nil {
		if !ValidStatus(*p.Status) {
			return nil, fmt.Errorf("updating task %s: invalid status %q", id, *p.Status)
		}
		fields["status"] = *p.Status
	}
	switch {
	case p.ClearDueDate:
		fields["due_date"] = nil
	case p.DueDate != nil:
		fields["due_date"] = p.DueDate.UTC().Unix()
	}
	if len(fields) == 0 {
		return d.GetTask(ctx, id)
	}
	if err := d.updateRow(ctx, "tasks", id, fields); err != nil {
		return nil, err
	}
	return d.GetTask(ctx, id)
}

// DeleteTask removes the task and returns what was deleted.
func (d *DB) DeleteTask(ctx context.Context, id string) (*Task, error) {
	t, err := d.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := d.conn.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("deleting task %s: %w", id, err)
	}
	return t, nil
}

// ListRepeatsNeedingInit returns enabled repeating tasks that have no next
// run yet.
func (d *DB) ListRepeatsNeedingInit(ctx context.Context) ([]Task, error) {
	return d.scanTasks(ctx, "SELECT "+taskColumns+" FROM tasks WHERE repeat_enabled = 1 AND repeat_next_run IS NULL")
}

// ListDueRepeats returns enabled repeating tasks whose next run is at or
// before now.
func (d *DB) ListDueRepeats(ctx context.Context, now time.Time) ([]Task, error) {
	return d.scanTasks(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE repeat_enabled = 1 AND repeat_next_run <= ? ORDER BY repeat_next_run",
		now.UTC().Unix(),
	)
}

// SetRepeatNextRun stores the next run of a repeating task. The task's own
// due date follows it so the template always shows its upcoming instance.
func (d *DB) SetRepeatNextRun(ctx context.Context, id string, next time.Time) error {
	n := next.UTC().Unix()
	return d.updateRow(ctx, "tasks", id, map[string]any{"repeat_next_run": n, "due_date": n})
}

// DisableRepeat stops a task from repeating.
func (d *DB) DisableRepeat(ctx context.Context, id string) error {
	return d.updateRow(ctx, "tasks", id, map[string]any{"repeat_enabled": 0})
}

func (d *DB) scanTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()
	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func scanTask(s scanner) (*Task, error) {
	var (
		t                Task
		due, nextRun     sql.NullInt64
		repeatEnabled    int
		rep              RepeatSpec
		days             string
		created, updated int64
	)
	err := s.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &due, &t.Status,
		&repeatEnabled, &rep.Frequency, &rep.Interval, &days,
		&rep.DayOfMonth, &rep.Hour, &rep.Minute, &nextRun,
		&t.SourceID, &created, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	t.DueDate = fromNullUnix(due)
	t.CreatedAt, t.UpdatedAt = fromUnix(created), fromUnix(updated)
	if repeatEnabled == 1 || rep.Frequency != "" {
		rep.Enabled = repeatEnabled == 1
		rep.DaysOfWeek = decodeDays(days)
		rep.NextRunAt = fromNullUnix(nextRun)
		t.Repeat = &rep
	}
	return &t, nil
}
