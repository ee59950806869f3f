package llm

const (
	ToolCreateTask      = "create_task"
	ToolUpdateTask      = "update_task"
	ToolDeleteTask      = "delete_task"
	ToolCreateRecurring = "create_recurring"
)

var AgentTools = []Tool{
	{
		Name:        ToolCreateTask,
		Description: "Create a task for the current user. Use when enough details are known and the user confirmed.",
		Parameters: objReq(map[string]any{
			"title":       prop("string", "Short task title"),
			"description": prop("string", "Optional description"),
			"due_date":    prop("string", "Due date/time in ISO 8601 (UTC). Resolve relative or local times, including Bahasa Indonesia phrases, to a concrete future UTC timestamp."),
			"status":      enum("string", "Task status", "pending", "done"),
			"repeat": map[string]any{
				"type":        "object",
				"description": "Optional repeat schedule. When enabled the system creates new tasks at the scheduled times.",
				"properties": map[string]any{
					"enabled":      prop("boolean", "true to repeat"),
					"frequency":    enum("string", "Repeat frequency", "daily", "weekly", "monthly"),
					"interval":     prop("integer", "Every N units (default 1)"),
					"days_of_week": intArray("0=Sun..6=Sat (UTC). For weekly, choose the days."),
					"day_of_month": prop("integer", "For monthly repeats: 1-31 (clamped to month length)"),
					"hour":         prop("integer", "UTC hour 0-23"),
					"minute":       prop("integer", "UTC minute 0-59"),
				},
			},
		}, "title"),
	},
	{
		Name:        ToolUpdateTask,
		Description: "Update an existing task of the current user by its id.",
		Parameters: objReq(map[string]any{
			"id":             prop("string", "Task id (UUID)"),
			"title":          prop("string", "New title"),
			"description":    prop("string", "New description"),
			"due_date":       prop("string", "New due date/time in ISO 8601 (UTC)"),
			"status":         enum("string", "New status", "pending", "done"),
			"repeat_enabled": prop("boolean", "Set false to stop a repeating task"),
		}, "id"),
	},
	{
		Name:        ToolDeleteTask,
		Description: "Delete an existing task of the current user by its id.",
		Parameters: objReq(map[string]any{
			"id": prop("string", "Task id (UUID)"),
		}, "id"),
	},
	{
		Name:        ToolCreateRecurring,
		Description: "Create a recurring habit for the current user at a fixed UTC time on the given weekdays.",
		Parameters: objReq(map[string]any{
			"title":        prop("string", "Habit title"),
			"description":  prop("string", "Optional description"),
			"hour":         prop("integer", "UTC hour 0-23"),
			"minute":       prop("integer", "UTC minute 0-59"),
			"days_of_week": intArray("0=Sun..6=Sat (UTC). For daily, include all 0-6."),
		}, "title", "hour", "minute"),
	},
}

// Helper functions for building JSON Schema objects.

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func enum(typ, desc string, values ...string) map[string]any {
	p := prop(typ, desc)
	p["enum"] = values
	return p
}

func intArray(desc string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "integer"}, "description": desc}
}

func obj(properties map[string]any) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}

func objReq(properties map[string]any, required ...string) map[string]any {
	s := obj(properties)
	s["required"] = required
	return s
}
