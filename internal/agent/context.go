package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chris/tasky/internal/db"
)

const maxContextTasks = 20

// buildTaskContext lists the user's open tasks so the model can refer to
// them by id in update_task and delete_task. Returns "" when there are none.
func (a *Agent) buildTaskContext(ctx context.Context, userID string, now time.Time, msgs messages) string {
	tasks, err := a.db.ListTasks(ctx, userID, db.StatusPending)
	if err != nil {
		log.Printf("warning: listing tasks for context: %v", err)
		return ""
	}
	if len(tasks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(msgs.openTasks)
	for i, t := range tasks {
		if i == maxContextTasks {
			fmt.Fprintf(&b, "\n- (+%d more)", len(tasks)-maxContextTasks)
			break
		}
		fmt.Fprintf(&b, "\n- id=%s %q", t.ID, t.Title)
		if t.DueDate != nil {
			fmt.Fprintf(&b, " due %s (%s)", formatDue(*t.DueDate), humanize.RelTime(*t.DueDate, now, "ago", "from now"))
		}
		if t.Repeat != nil && t.Repeat.Enabled {
			fmt.Fprintf(&b, " repeats %s", t.Repeat.Frequency)
		}
	}
	return b.String()
}
