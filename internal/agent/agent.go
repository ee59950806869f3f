package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chris/tasky/internal/apperr"
	"github.com/chris/tasky/internal/db"
	"github.com/chris/tasky/internal/llm"
	"github.com/chris/tasky/internal/metrics"
	"github.com/chris/tasky/internal/nlu"
	"github.com/chris/tasky/internal/session"
)

const (
	defaultMaxTokens = 500
	// pastGrace is how far in the past a due date may be and still be kept.
	pastGrace = time.Minute
)

type Config struct {
	Model            string
	MaxContextTokens int
}

// Agent runs the propose, confirm and commit conversation that turns chat
// messages into stored tasks.
type Agent struct {
	db       *db.DB
	invoker  *llm.Invoker
	sessions session.Store
	metrics  *metrics.Metrics
	now      func() time.Time

	model            string
	MaxContextTokens int
}

func New(database *db.DB, invoker *llm.Invoker, sessions session.Store, cfg Config, m *metrics.Metrics) *Agent {
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = 16000
	}
	return &Agent{
		db:               database,
		invoker:          invoker,
		sessions:         sessions,
		metrics:          m,
		now:              time.Now,
		model:            cfg.Model,
		MaxContextTokens: cfg.MaxContextTokens,
	}
}

// WithClock replaces the time source. Intended for tests.
func (a *Agent) WithClock(now func() time.Time) *Agent {
	a.now = now
	return a
}

// Turn is one inbound user message.
type Turn struct {
	Prompt      string
	UserID      string
	SessionID   string
	Model       string
	Temperature *float64
	MaxTokens   int
	Lang        string

	// Confirm commits Draft directly, skipping the conversation.
	Confirm bool
	Draft   *Draft
}

// Draft is a task the caller already confirmed.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Reply is either a committed operation (Message, Data, Notes) or a
// question back to the user (RequiresConfirmation, AssistantMessage).
type Reply struct {
	Message              string
	Data                 any
	Notes                []string
	RequiresConfirmation bool
	AssistantMessage     string
	ModelUsed            string
}

// Handle processes one turn. Cheap local paths (direct confirm, in-place
// proposal edits, confirmation heuristics) run before any provider call.
func (a *Agent) Handle(ctx context.Context, turn Turn) (*Reply, error) {
	prompt := strings.TrimSpace(turn.Prompt)
	if prompt == "" {
		return nil, apperr.Validation("prompt is required (string)")
	}
	if turn.UserID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	user, err := a.db.GetUser(ctx, turn.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	lang := nlu.ResolveLang(turn.Lang, prompt)
	msgs := localeFor(lang)
	now := a.now().UTC()
	model := turn.Model
	if model == "" {
		model = a.model
	}

	if turn.Confirm {
		return a.commitDraft(ctx, user.ID, turn.Draft, msgs, now)
	}

	key := session.Key(turn.SessionID, user.ID)
	sess, _ := a.sessions.Get(key)

	if p := sess.Proposal; p != nil {
		if reply := a.editProposal(key, sess, prompt, lang, msgs, now); reply != nil {
			return reply, nil
		}
		// A message naming a day carries new scheduling details; it goes to
		// the model instead of being read as a bare yes or no.
		if !nlu.MentionsDate(prompt) {
			confirmed, status := a.classify(ctx, key, model, turn.MaxTokens, p, prompt, msgs)
			if !confirmed && nlu.IsConfirmation(prompt) && p.Title != "" && p.DueDate != "" {
				confirmed = true
			}
			if confirmed {
				return a.commitProposal(ctx, user.ID, key, sess, status, prompt, msgs, now)
			}
		}
	}

	return a.openTurn(ctx, user.ID, key, sess, turn, model, prompt, lang, msgs, now)
}

// editProposal handles title-only and time-only changes to a pending
// proposal. It returns nil when the message is neither.
func (a *Agent) editProposal(key string, sess session.Session, prompt string, lang nlu.Lang, msgs messages, now time.Time) *Reply {
	p := *sess.Proposal

	if title, ok := nlu.ExtractNewTitle(prompt); ok {
		p.Title = title
		sess.Proposal = &p
		a.sessions.Set(key, sess)
		return &Reply{
			RequiresConfirmation: true,
			AssistantMessage:     fmt.Sprintf(msgs.titleUpdated, title, p.DueDate),
		}
	}

	if nlu.MentionsDate(prompt) || p.DueDate == "" {
		return nil
	}
	clock, ok := nlu.ParseClockTimeSameDay(prompt, now)
	if !ok {
		return nil
	}
	base, err := parseDue(p.DueDate)
	if err != nil {
		return nil
	}
	p.DueDate = formatDue(nlu.SetTimeOnDate(base, clock))
	if p.Title == "" {
		if t, ok := nlu.InferTitle(prompt, lang); ok {
			p.Title = t
		} else {
			p.Title = nlu.FallbackTitle(lang)
		}
	}
	sess.Proposal = &p
	a.sessions.Set(key, sess)
	return &Reply{
		RequiresConfirmation: true,
		AssistantMessage:     fmt.Sprintf(msgs.timeUpdated, p.Title, p.DueDate),
	}
}

// commitProposal stores the pending proposal as a task and clears it.
func (a *Agent) commitProposal(ctx context.Context, userID, key string, sess session.Session, status, prompt string, msgs messages, now time.Time) (*Reply, error) {
	p := sess.Proposal
	if status == "" {
		if hint, ok := nlu.StatusHint(prompt); ok {
			status = hint
		} else if db.ValidStatus(p.Status) {
			status = p.Status
		} else {
			status = db.StatusPending
		}
	}
	due, note := normalizeDue(p.DueDate, now, msgs)
	task, err := a.db.CreateTask(ctx, db.Task{
		UserID:      userID,
		Title:       strings.TrimSpace(p.Title),
		Description: p.Description,
		Status:      status,
		DueDate:     due,
	})
	if err != nil {
		return nil, fmt.Errorf("committing proposal: %w", err)
	}
	a.metrics.TaskCreated("agent")

	sess.Proposal = nil
	a.sessions.Set(key, sess)
	log.Printf("agent: committed proposal %q for %s", task.Title, key)
	return &Reply{Message: msgs.created, Data: task, Notes: notes(note)}, nil
}

// commitDraft is the direct-confirm path: no conversation, no provider.
func (a *Agent) commitDraft(ctx context.Context, userID string, d *Draft, msgs messages, now time.Time) (*Reply, error) {
	if d == nil || strings.TrimSpace(d.Title) == "" {
		return nil, apperr.Validation(msgs.titleRequiredConfirm)
	}
	status := d.Status
	if !db.ValidStatus(status) {
		status = db.StatusPending
	}
	due, note := normalizeDue(d.DueDate, now, msgs)
	task, err := a.db.CreateTask(ctx, db.Task{
		UserID:      userID,
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Status:      status,
		DueDate:     due,
	})
	if err != nil {
		return nil, fmt.Errorf("committing draft: %w", err)
	}
	a.metrics.TaskCreated("agent")
	return &Reply{Message: msgs.created, Data: task, Notes: notes(note)}, nil
}

// openTurn sends the conversation to the model with the task tools.
func (a *Agent) openTurn(ctx context.Context, userID, key string, sess session.Session, turn Turn, model, prompt string, lang nlu.Lang, msgs messages, now time.Time) (*Reply, error) {
	history := sess.Messages
	if len(history) == 0 {
		history = []llm.Message{{Role: llm.RoleSystem, Content: msgs.systemPrompt(now.Format(time.RFC3339))}}
	}
	history = append(history, llm.Message{Role: llm.RoleUser, Content: prompt})

	maxTokens := turn.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	req := llm.Request{
		Model:       model,
		System:      a.buildTaskContext(ctx, userID, now, msgs),
		Tools:       llm.AgentTools,
		AutoTools:   true,
		Temperature: turn.Temperature,
		MaxTokens:   maxTokens,
	}
	req.Messages = llm.TrimMessages(history, llm.MessageBudget(a.MaxContextTokens, req))
	if len(req.Messages) < len(history) {
		log.Printf("agent: context trimmed: %d → %d messages", len(history), len(req.Messages))
	}

	res, err := a.invoker.Invoke(ctx, key, req)
	if err != nil {
		return nil, a.providerError(err, msgs)
	}

	if call, ok := firstSupportedCall(res.ToolCalls); ok {
		history = append(history, llm.Message{Role: llm.RoleAssistant, Content: res.Content, ToolCalls: res.ToolCalls})
		if call.Name == llm.ToolCreateTask && missingTitle(call.Params) {
			// Ask for the title instead of failing the turn.
			history = appendToolResults(history, res.ToolCalls, call.ID, map[string]any{"error": msgs.titleRequired})
			sess.Messages = append(history, llm.Message{Role: llm.RoleAssistant, Content: msgs.askTitle})
			a.sessions.Set(key, sess)
			return &Reply{RequiresConfirmation: true, AssistantMessage: msgs.askTitle, ModelUsed: res.ModelUsed}, nil
		}
		reply, result, dispatchErr := a.dispatch(ctx, userID, call, msgs, now)
		if dispatchErr != nil {
			result = map[string]any{"error": dispatchErr.Error()}
		}
		history = appendToolResults(history, res.ToolCalls, call.ID, result)
		sess.Messages = history
		if dispatchErr == nil && call.Name == llm.ToolCreateTask {
			sess.Proposal = nil
		}
		a.sessions.Set(key, sess)
		if dispatchErr != nil {
			return nil, dispatchErr
		}
		reply.ModelUsed = res.ModelUsed
		return reply, nil
	}

	assistant := strings.TrimSpace(res.Content)
	title, ok := nlu.InferTitle(prompt, lang)
	if !ok {
		title = nlu.FallbackTitle(lang)
	}
	due, hasDue := nlu.ExtractDue(prompt, now)

	switch {
	case assistant == "" && hasDue:
		when := formatDue(due)
		text := fmt.Sprintf(msgs.proposal, strings.ToLower(title), when, title)
		sess.Proposal = &session.Proposal{Title: title, DueDate: when, Status: db.StatusPending, AssistantMessage: text}
		assistant = text + " " + msgs.statusDefault
	case assistant == "":
		assistant = msgs.clarifyingQuestions()
	case hasDue:
		sess.Proposal = &session.Proposal{Title: title, DueDate: formatDue(due), Status: db.StatusPending, AssistantMessage: assistant}
	}

	sess.Messages = append(history, llm.Message{Role: llm.RoleAssistant, Content: assistant})
	a.sessions.Set(key, sess)
	return &Reply{RequiresConfirmation: true, AssistantMessage: assistant, ModelUsed: res.ModelUsed}, nil
}

// providerError maps an Invoker failure onto the error taxonomy.
func (a *Agent) providerError(err error, msgs messages) error {
	var ex *llm.ExhaustedError
	if errors.As(err, &ex) {
		wait := ex.RetryAfter
		sec := int((wait + time.Second - 1) / time.Second)
		if sec < 1 {
			sec = 1
		}
		limit := a.invoker.Limiter().Max()
		return apperr.RateLimited(fmt.Sprintf(msgs.rateLimited, limit, sec), wait, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Printf("agent: provider error: %v", err)
	return apperr.Provider(err)
}

func firstSupportedCall(calls []llm.ToolCall) (llm.ToolCall, bool) {
	for _, c := range calls {
		switch c.Name {
		case llm.ToolCreateTask, llm.ToolUpdateTask, llm.ToolDeleteTask, llm.ToolCreateRecurring:
			return c, true
		}
	}
	return llm.ToolCall{}, false
}

func missingTitle(params map[string]any) bool {
	title, _ := getString(params, "title")
	return strings.TrimSpace(title) == ""
}

// appendToolResults answers every tool call in the assistant message so
// the history stays valid for the provider. Only the executed call gets a
// real result.
func appendToolResults(history []llm.Message, calls []llm.ToolCall, executedID string, result any) []llm.Message {
	for _, c := range calls {
		content := toolResultJSON(map[string]any{"skipped": "one operation per turn"})
		if c.ID == executedID {
			content = toolResultJSON(result)
		}
		history = append(history, llm.Message{Role: llm.RoleUser, Content: content, ToolCallID: c.ID})
	}
	return history
}

func notes(n ...string) []string {
	out := []string{}
	for _, s := range n {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
