package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var allowedColumns = map[string]map[string]bool{
	"tasks":           {"title": true, "description": true, "status": true, "due_date": true, "repeat_enabled": true, "repeat_next_run": true},
	"recurring_tasks": {"enabled": true, "next_run_at": true, "end_date": true},
}

// updateRow is a generic helper for updating a row's fields.
func (d *DB) updateRow(ctx context.Context, table, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	allowed, ok := allowedColumns[table]
	if !ok {
		return fmt.Errorf("unknown table: %s", table)
	}
	var setClauses []string
	var args []any
	for col, val := range fields {
		if !allowed[col] {
			return fmt.Errorf("disallowed column %q for table %s", col, table)
		}
		setClauses = append(setClauses, col+" = ?")
		args = append(args, val)
	}
	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, d.now().UTC().Unix(), id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(setClauses, ", "))
	res, err := d.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating %s %s: %w", table, id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullStr(s string) any {
	if s == "" || s == "null" {
		return nil
	}
	return s
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Unix()
}

func fromUnix(n int64) time.Time {
	return time.Unix(n, 0).UTC()
}

func fromNullUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnix(n.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeDays(days []int) string {
	if len(days) == 0 {
		return ""
	}
	b, _ := json.Marshal(days)
	return string(b)
}

func decodeDays(s string) []int {
	if s == "" {
		return nil
	}
	var days []int
	_ = json.Unmarshal([]byte(s), &days)
	return days
}
