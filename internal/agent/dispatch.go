package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chris/tasky/internal/apperr"
	"github.com/chris/tasky/internal/db"
	"github.com/chris/tasky/internal/llm"
)

// dispatch executes one tool call for userID. The returned result is what
// goes back into the conversation as the tool's answer.
func (a *Agent) dispatch(ctx context.Context, userID string, call llm.ToolCall, msgs messages, now time.Time) (*Reply, any, error) {
	params := call.Params
	if params == nil {
		params = map[string]any{}
	}

	var (
		reply *Reply
		err   error
	)
	switch call.Name {
	case llm.ToolCreateTask:
		reply, err = a.toolCreateTask(ctx, userID, params, msgs, now)
	case llm.ToolUpdateTask:
		reply, err = a.toolUpdateTask(ctx, userID, params, msgs, now)
	case llm.ToolDeleteTask:
		reply, err = a.toolDeleteTask(ctx, userID, params, msgs)
	case llm.ToolCreateRecurring:
		reply, err = a.toolCreateRecurring(ctx, userID, params, msgs, now)
	default:
		return nil, nil, fmt.Errorf("unknown tool: %s", call.Name)
	}
	if err != nil {
		log.Printf("agent: tool %s failed: %v", call.Name, err)
		return nil, nil, err
	}
	result := map[string]any{"status": "ok", "data": reply.Data}
	log.Printf("agent: tool %s → %s", call.Name, truncate(toolResultJSON(result), 200))
	return reply, result, nil
}

func (a *Agent) toolCreateTask(ctx context.Context, userID string, params map[string]any, msgs messages, now time.Time) (*Reply, error) {
	title, _ := getString(params, "title")
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validation(msgs.titleRequired)
	}
	description, _ := getString(params, "description")
	status, _ := getString(params, "status")
	if !db.ValidStatus(status) {
		status = db.StatusPending
	}
	rawDue, _ := getString(params, "due_date")
	due, note := normalizeDue(rawDue, now, msgs)

	t := db.Task{
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      status,
		DueDate:     due,
	}
	if rep, ok := params["repeat"].(map[string]any); ok {
		if enabled, _ := getBool(rep, "enabled"); enabled {
			spec, err := repeatFromParams(rep, now)
			if err != nil {
				log.Printf("agent: rejecting repeat %v: %v", rep, err)
				return nil, apperr.Validation(msgs.repeatInvalid)
			}
			t.Repeat = spec
			if t.DueDate == nil {
				t.DueDate = spec.NextRunAt
			}
		}
	}

	task, err := a.db.CreateTask(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	a.metrics.TaskCreated("agent")
	return &Reply{Message: msgs.created, Data: task, Notes: notes(note)}, nil
}

// repeatFromParams builds a repeat schedule from the tool's repeat object.
// Hour and minute default to 09:00 UTC.
func repeatFromParams(rep map[string]any, now time.Time) (*db.RepeatSpec, error) {
	spec := &db.RepeatSpec{Enabled: true, Hour: 9}
	spec.Frequency, _ = getString(rep, "frequency")
	if v, ok := getInt(rep, "interval"); ok {
		spec.Interval = int(v)
	}
	spec.DaysOfWeek = getInts(rep, "days_of_week")
	if v, ok := getInt(rep, "day_of_month"); ok {
		spec.DayOfMonth = int(v)
	}
	if v, ok := getInt(rep, "hour"); ok {
		spec.Hour = int(v)
	}
	if v, ok := getInt(rep, "minute"); ok {
		spec.Minute = int(v)
	}
	if err := spec.Schedule(now); err != nil {
		return nil, err
	}
	return spec, nil
}

func (a *Agent) toolUpdateTask(ctx context.Context, userID string, params map[string]any, msgs messages, now time.Time) (*Reply, error) {
	if _, err := a.ownedTask(ctx, userID, params, msgs); err != nil {
		return nil, err
	}
	id, _ := getString(params, "id")

	var (
		patch db.TaskPatch
		note  string
	)
	if v, ok := getString(params, "title"); ok && strings.TrimSpace(v) != "" {
		patch.Title = &v
	}
	if v, ok := getString(params, "description"); ok {
		patch.Description = &v
	}
	if v, ok := getString(params, "status"); ok && db.ValidStatus(v) {
		patch.Status = &v
	}
	if v, ok := getString(params, "due_date"); ok && v != "" {
		var due *time.Time
		due, note = normalizeDue(v, now, msgs)
		patch.DueDate = due
	}
	if enabled, ok := getBool(params, "repeat_enabled"); ok && !enabled {
		if err := a.db.DisableRepeat(ctx, id); err != nil {
			return nil, fmt.Errorf("stopping repeat: %w", err)
		}
	}

	task, err := a.db.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}
	return &Reply{Message: msgs.updated, Data: task, Notes: notes(note)}, nil
}

func (a *Agent) toolDeleteTask(ctx context.Context, userID string, params map[string]any, msgs messages) (*Reply, error) {
	task, err := a.ownedTask(ctx, userID, params, msgs)
	if err != nil {
		return nil, err
	}
	deleted, err := a.db.DeleteTask(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("deleting task: %w", err)
	}
	return &Reply{Message: msgs.deleted, Data: deleted}, nil
}

// ownedTask loads the task named by params["id"] and checks it belongs to
// userID.
func (a *Agent) ownedTask(ctx context.Context, userID string, params map[string]any, msgs messages) (*db.Task, error) {
	id, _ := getString(params, "id")
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation(msgs.idRequired)
	}
	task, err := a.db.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound(msgs.taskNotFound)
		}
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if task.UserID != userID {
		return nil, apperr.Forbidden(msgs.forbidden)
	}
	return task, nil
}

func (a *Agent) toolCreateRecurring(ctx context.Context, userID string, params map[string]any, msgs messages, now time.Time) (*Reply, error) {
	title, _ := getString(params, "title")
	hour, hasHour := getInt(params, "hour")
	minute, hasMinute := getInt(params, "minute")
	if strings.TrimSpace(title) == "" || !hasHour || !hasMinute {
		return nil, apperr.Validation(msgs.recurringInvalid)
	}
	description, _ := getString(params, "description")
	def := db.RecurringDefinition{
		UserID:      userID,
		Title:       title,
		Description: description,
		Hour:        int(hour),
		Minute:      int(minute),
		DaysOfWeek:  getInts(params, "days_of_week"),
	}
	if err := def.Schedule(now); err != nil {
		return nil, apperr.Validation(msgs.recurringInvalid)
	}
	created, err := a.db.CreateRecurring(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("creating recurring task: %w", err)
	}
	return &Reply{Message: msgs.recurringCreated, Data: created}, nil
}

// dueLayouts are the due date forms accepted from models and clients.
var dueLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseDue(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dueLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable due date %q", raw)
}

func formatDue(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// normalizeDue parses a due date. Unparseable values and values more than
// pastGrace before now are dropped with a note for the user.
func normalizeDue(raw string, now time.Time, msgs messages) (*time.Time, string) {
	if strings.TrimSpace(raw) == "" {
		return nil, ""
	}
	t, err := parseDue(raw)
	if err != nil {
		return nil, msgs.noteInvalidDue
	}
	if t.Before(now.Add(-pastGrace)) {
		return nil, msgs.notePastDue
	}
	return &t, ""
}

func toolResultJSON(v any) string {
	b, _ := json.Marshal(v) // result is always a simple map; marshal cannot fail
	return string(b)
}

// Param extraction helpers. LLMs send numbers as float64 in JSON.
func getInt(params map[string]any, key string) (int64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func getString(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func getBool(params map[string]any, key string) (bool, bool) {
	v, ok := params[key]
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		return b == "true", true
	}
	return false, false
}

// getInts reads an array of integers, skipping anything that is not one.
func getInts(params map[string]any, key string) []int {
	arr, ok := params[key].([]any)
	if !ok {
		return nil
	}
	var out []int
	for i := range arr {
		if n, ok := getInt(map[string]any{"v": arr[i]}, "v"); ok {
			out = append(out, int(n))
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
