package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chris/tasky/internal/agent"
	"github.com/chris/tasky/internal/apperr"
	"github.com/chris/tasky/internal/db"
	"github.com/chris/tasky/internal/recurrence"
)

type agentRequest struct {
	Prompt      string       `json:"prompt"`
	UserID      string       `json:"user_id"`
	SessionID   string       `json:"session_id"`
	Model       string       `json:"model"`
	Temperature *float64     `json:"temperature"`
	MaxTokens   int          `json:"max_tokens"`
	Lang        string       `json:"lang"`
	Confirm     bool         `json:"confirm"`
	Draft       *agent.Draft `json:"draft"`
}

type agentResponse struct {
	Message              string   `json:"message,omitempty"`
	Data                 any      `json:"data,omitempty"`
	Notes                []string `json:"notes,omitempty"`
	RequiresConfirmation bool     `json:"requires_confirmation,omitempty"`
	AssistantMessage     string   `json:"assistant_message,omitempty"`
}

func (s *Server) handleAgent(c *gin.Context) {
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("prompt is required (string)"))
		return
	}
	reply, err := s.agent.Handle(c.Request.Context(), agent.Turn{
		Prompt:      req.Prompt,
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Lang:        req.Lang,
		Confirm:     req.Confirm,
		Draft:       req.Draft,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if reply.RequiresConfirmation {
		c.JSON(http.StatusOK, agentResponse{RequiresConfirmation: true, AssistantMessage: reply.AssistantMessage})
		return
	}
	notes := reply.Notes
	if notes == nil {
		notes = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"message": reply.Message, "data": reply.Data, "notes": notes})
}

type chatRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	Lang        string   `json:"lang"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("prompt is required (string)"))
		return
	}
	reply, err := s.agent.Chat(c.Request.Context(), agent.ChatRequest{
		Prompt:      req.Prompt,
		Model:       req.Model,
		Lang:        req.Lang,
		CallerKey:   "ip:" + c.ClientIP(),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// --- users ---

func (s *Server) handleCreateUser(c *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(c, apperr.Validation("name is required"))
		return
	}
	user, err := s.db.CreateUser(c.Request.Context(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Email))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) handleGetUser(c *gin.Context) {
	user, err := s.db.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, notFoundAs(err, "User not found"))
		return
	}
	c.JSON(http.StatusOK, user)
}

// --- tasks ---

type repeatRequest struct {
	Enabled    bool   `json:"enabled"`
	Frequency  string `json:"frequency"`
	Interval   int    `json:"interval"`
	DaysOfWeek []int  `json:"days_of_week"`
	DayOfMonth int    `json:"day_of_month"`
	Hour       *int   `json:"hour"`
	Minute     *int   `json:"minute"`
}

type createTaskRequest struct {
	UserID      string         `json:"user_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	DueDate     string         `json:"due_date"`
	Status      string         `json:"status"`
	Repeat      *repeatRequest `json:"repeat"`
}

func (s *Server) handleListTasks(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		writeError(c, apperr.Validation("user_id is required"))
		return
	}
	status := c.Query("status")
	if status != "" && !db.ValidStatus(status) {
		writeError(c, apperr.Validation("status must be pending or done"))
		return
	}
	tasks, err := s.db.ListTasks(c.Request.Context(), userID, status)
	if err != nil {
		writeError(c, err)
		return
	}
	if tasks == nil {
		tasks = []db.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	ctx := c.Request.Context()
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation(fmt.Sprintf("invalid request: %v", err)))
		return
	}
	if req.UserID == "" {
		writeError(c, apperr.Validation("user_id is required"))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(c, apperr.Validation("title is required"))
		return
	}
	if req.Status != "" && !db.ValidStatus(req.Status) {
		writeError(c, apperr.Validation("status must be pending or done"))
		return
	}
	if _, err := s.db.GetUser(ctx, req.UserID); err != nil {
		writeError(c, notFoundAs(err, "User not found"))
		return
	}

	t := db.Task{UserID: req.UserID, Title: req.Title, Description: req.Description, Status: req.Status}
	if req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			writeError(c, apperr.Validation("due_date must be RFC 3339"))
			return
		}
		due = due.UTC()
		t.DueDate = &due
	}
	if r := req.Repeat; r != nil && r.Enabled {
		if r.Frequency != "" && !recurrence.ValidFrequency(r.Frequency) {
			writeError(c, apperr.Validation("repeat.frequency must be daily, weekly or monthly"))
			return
		}
		spec := db.RepeatSpec{
			Enabled:    true,
			Frequency:  r.Frequency,
			Interval:   r.Interval,
			DaysOfWeek: r.DaysOfWeek,
			DayOfMonth: r.DayOfMonth,
			Hour:       9,
		}
		if r.Hour != nil {
			spec.Hour = *r.Hour
		}
		if r.Minute != nil {
			spec.Minute = *r.Minute
		}
		if err := spec.Schedule(s.now()); err != nil {
			writeError(c, apperr.Validation(err.Error()))
			return
		}
		t.Repeat = &spec
		if t.DueDate == nil {
			t.DueDate = spec.NextRunAt
		}
	}

	task, err := s.db.CreateTask(ctx, t)
	if err != nil {
		writeError(c, err)
		return
	}
	s.metrics.TaskCreated("api")
	c.JSON(http.StatusCreated, task)
}

// ownedTask loads the task in the path. When the caller names a user_id,
// the task must belong to it.
func (s *Server) ownedTask(c *gin.Context) (*db.Task, bool) {
	task, err := s.db.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, notFoundAs(err, "Task not found"))
		return nil, false
	}
	if userID := c.Query("user_id"); userID != "" && task.UserID != userID {
		writeError(c, apperr.Forbidden("Forbidden"))
		return nil, false
	}
	return task, true
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, ok := s.ownedTask(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, task)
}

type updateTaskRequest struct {
	Title         *string         `json:"title"`
	Description   *string         `json:"description"`
	Status        *string         `json:"status"`
	DueDate       json.RawMessage `json:"due_date"`
	RepeatEnabled *bool           `json:"repeat_enabled"`
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	task, ok := s.ownedTask(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation(fmt.Sprintf("invalid request: %v", err)))
		return
	}

	patch := db.TaskPatch{Title: req.Title, Description: req.Description, Status: req.Status}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		writeError(c, apperr.Validation("title cannot be empty"))
		return
	}
	if req.Status != nil && !db.ValidStatus(*req.Status) {
		writeError(c, apperr.Validation("status must be pending or done"))
		return
	}
	switch raw := strings.TrimSpace(string(req.DueDate)); raw {
	case "":
	case "null":
		patch.ClearDueDate = true
	default:
		var str string
		if err := json.Unmarshal(req.DueDate, &str); err != nil {
			writeError(c, apperr.Validation("due_date must be an RFC 3339 string or null"))
			return
		}
		due, err := time.Parse(time.RFC3339, str)
		if err != nil {
			writeError(c, apperr.Validation("due_date must be RFC 3339"))
			return
		}
		patch.DueDate = &due
	}

	if req.RepeatEnabled != nil && !*req.RepeatEnabled {
		if err := s.db.DisableRepeat(c.Request.Context(), task.ID); err != nil {
			writeError(c, err)
			return
		}
	}

	updated, err := s.db.UpdateTask(c.Request.Context(), task.ID, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	task, ok := s.ownedTask(c)
	if !ok {
		return
	}
	deleted, err := s.db.DeleteTask(c.Request.Context(), task.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, deleted)
}

// --- recurring ---

type createRecurringRequest struct {
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Hour        *int   `json:"hour"`
	Minute      *int   `json:"minute"`
	DaysOfWeek  []int  `json:"days_of_week"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

func (s *Server) handleCreateRecurring(c *gin.Context) {
	ctx := c.Request.Context()
	var req createRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation(fmt.Sprintf("invalid request: %v", err)))
		return
	}
	if req.UserID == "" {
		writeError(c, apperr.Validation("user_id is required"))
		return
	}
	if strings.TrimSpace(req.Title) == "" || req.Hour == nil || req.Minute == nil {
		writeError(c, apperr.Validation("Need title, hour (0-23 UTC), and minute (0-59)."))
		return
	}
	if _, err := s.db.GetUser(ctx, req.UserID); err != nil {
		writeError(c, notFoundAs(err, "User not found"))
		return
	}

	def := db.RecurringDefinition{
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		Hour:        *req.Hour,
		Minute:      *req.Minute,
		DaysOfWeek:  req.DaysOfWeek,
	}
	if req.StartDate != "" {
		start, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			writeError(c, apperr.Validation("start_date must be RFC 3339"))
			return
		}
		def.StartDate = start.UTC()
	}
	if req.EndDate != "" {
		end, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			writeError(c, apperr.Validation("end_date must be RFC 3339"))
			return
		}
		end = end.UTC()
		def.EndDate = &end
	}
	if err := def.Schedule(s.now()); err != nil {
		writeError(c, apperr.Validation("Need title, hour (0-23 UTC), and minute (0-59)."))
		return
	}

	created, err := s.db.CreateRecurring(ctx, def)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleListRecurring(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		writeError(c, apperr.Validation("user_id is required"))
		return
	}
	defs, err := s.db.ListRecurring(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if defs == nil {
		defs = []db.RecurringDefinition{}
	}
	c.JSON(http.StatusOK, defs)
}

func (s *Server) handleDisableRecurring(c *gin.Context) {
	ctx := c.Request.Context()
	def, err := s.db.GetRecurring(ctx, c.Param("id"))
	if err != nil {
		writeError(c, notFoundAs(err, "Recurring task not found"))
		return
	}
	if userID := c.Query("user_id"); userID != "" && def.UserID != userID {
		writeError(c, apperr.Forbidden("Forbidden"))
		return
	}
	if err := s.db.DisableRecurring(ctx, def.ID); err != nil {
		writeError(c, err)
		return
	}
	def.Enabled = false
	c.JSON(http.StatusOK, def)
}

// notFoundAs replaces a db.ErrNotFound with a NotFound carrying msg.
func notFoundAs(err error, msg string) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}
