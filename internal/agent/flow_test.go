package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chris/tasky/internal/apperr"
	"github.com/chris/tasky/internal/db"
	"github.com/chris/tasky/internal/llm"
	"github.com/chris/tasky/internal/ratelimit"
	"github.com/chris/tasky/internal/session"
)

// Monday 4 May 2026, 10:00 UTC.
var refNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// fakeClient answers with the queued responses in order, then with empty
// content. A non-nil entry in errs fails that call instead.
type fakeClient struct {
	replies []*llm.Response
	errs    []error
	calls   []llm.Request
}

func (c *fakeClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.calls = append(c.calls, req)
	i := len(c.calls) - 1
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i < len(c.replies) && c.replies[i] != nil {
		return c.replies[i], nil
	}
	return &llm.Response{}, nil
}

type fixture struct {
	agent    *Agent
	db       *db.DB
	sessions *session.MemoryStore
	client   *fakeClient
	user     *db.User
}

func newFixture(t *testing.T, client *fakeClient, limiter *ratelimit.Limiter) *fixture {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	database.WithClock(func() time.Time { return refNow })

	user, err := database.CreateUser(context.Background(), "Ayu", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	sessions, err := session.NewMemoryStore(16)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	if limiter == nil {
		limiter = ratelimit.New(100, time.Minute)
	}
	inv := llm.NewInvoker(client, limiter, llm.InvokerConfig{}, nil)
	inv.WithSleep(func(context.Context, time.Duration) error { return nil })

	a := New(database, inv, sessions, Config{Model: "test-model"}, nil)
	a.WithClock(func() time.Time { return refNow })
	return &fixture{agent: a, db: database, sessions: sessions, client: client, user: user}
}

func (f *fixture) propose(t *testing.T, p session.Proposal) {
	t.Helper()
	f.sessions.Set(f.user.ID, session.Session{Proposal: &p})
}

func (f *fixture) tasks(t *testing.T) []db.Task {
	t.Helper()
	tasks, err := f.db.ListTasks(context.Background(), f.user.ID, "")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	return tasks
}

func meetingProposal() session.Proposal {
	return session.Proposal{
		Title:            "Meeting",
		DueDate:          "2026-05-05T09:00:00Z",
		Status:           db.StatusPending,
		AssistantMessage: "Jadi kamu punya rapat pada 2026-05-05T09:00:00Z. Mau aku buat?",
	}
}

func TestHandle_ConfirmationCommitsProposal(t *testing.T) {
	client := &fakeClient{replies: []*llm.Response{{Content: `{"confirm": false, "status": null}`}}}
	f := newFixture(t, client, nil)
	f.propose(t, meetingProposal())

	reply, err := f.agent.Handle(context.Background(), Turn{Prompt: "ya", UserID: f.user.ID, Lang: "id"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.Message != "Task berhasil dibuat" {
		t.Errorf("expected created message, got %q", reply.Message)
	}
	if len(reply.Notes) != 0 {
		t.Errorf("expected no notes, got %v", reply.Notes)
	}

	tasks := f.tasks(t)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	task := tasks[0]
	want := time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC)
	if task.Title != "Meeting" || task.Status != db.StatusPending || task.DueDate == nil || !task.DueDate.Equal(want) {
		t.Errorf("unexpected task: %+v", task)
	}

	sess, _ := f.sessions.Get(f.user.ID)
	if sess.Proposal != nil {
		t.Error("expected proposal to be cleared")
	}
	if len(client.calls) != 1 {
		t.Errorf("expected only the classifier call, got %d", len(client.calls))
	}
	if client.calls[0].Temperature == nil || *client.calls[0].Temperature != 0 {
		t.Error("expected classifier to run at temperature 0")
	}
}

func TestHandle_ClassifierStatusWins(t *testing.T) {
	client := &fakeClient{replies: []*llm.Response{{Content: "Sure: {\"confirm\": true, \"status\": \"done\"}"}}}
	f := newFixture(t, client, nil)
	f.propose(t, meetingProposal())

	if _, err := f.agent.Handle(context.Background(), Turn{Prompt: "sounds good, already finished", UserID: f.user.ID, Lang: "en"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	tasks := f.tasks(t)
	if len(tasks) != 1 || tasks[0].Status != db.StatusDone {
		t.Errorf("expected one done task, got %+v", tasks)
	}
}

func TestHandle_TitleEditReprompts(t *testing.T) {
	client := &fakeClient{}
	f := newFixture(t, client, nil)
	f.propose(t, meetingProposal())

	reply, err := f.agent.Handle(context.Background(), Turn{Prompt: `title jadi "Sync"`, UserID: f.user.ID})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !reply.RequiresConfirmation {
		t.Error("expected confirmation to be required")
	}
	if !strings.Contains(reply.AssistantMessage, `"Sync"`) {
		t.Errorf("expected new title in reply, got %q", reply.AssistantMessage)
	}
	if n := len(f.tasks(t)); n != 0 {
		t.Errorf("expected no tasks, got %d", n)
	}
	sess, _ := f.sessions.Get(f.user.ID)
	if sess.Proposal == nil || sess.Proposal.Title != "Sync" || sess.Proposal.DueDate != "2026-05-05T09:00:00Z" {
		t.Errorf("unexpected proposal: %+v", sess.Proposal)
	}
	if len(client.calls) != 0 {
		t.Errorf("expected no provider calls, got %d", len(client.calls))
	}
}

func TestHandle_TimeEditKeepsDay(t *testing.T) {
	client := &fakeClient{}
	f := newFixture(t, client, nil)
	f.propose(t, meetingProposal())

	reply, err := f.agent.Handle(context.Background(), Turn{Prompt: "jam 3 sore", UserID: f.user.ID})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !reply.RequiresConfirmation {
		t.Error("expected confirmation to be required")
	}
	sess, _ := f.sessions.Get(f.user.ID)
	if sess.Proposal == nil || sess.Proposal.DueDate != "2026-05-05T15:00:00Z" {
		t.Errorf("unexpected proposal: %+v", sess.Proposal)
	}
	if len(client.calls) != 0 {
		t.Errorf("expected no provider calls, got %d", len(client.calls))
	}
}

func TestHandle_PastProposalCommitsWithoutDue(t *testing.T) {
	client := &fakeClient{replies: []*llm.Response{{Content: "not sure"}}}
	f := newFixture(t, client, nil)
	p := meetingProposal()
	p.DueDate = "2026-05-01T09:00:00Z"
	f.propose(t, p)

	reply, err := f.agent.Handle(context.Background(), Turn{Prompt: "ok", UserID: f.user.ID, Lang: "en"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(reply.Notes) != 1 || reply.Notes[0] != locales["en"].notePastDue {
		t.Errorf("expected past due note, got %v", reply.Notes)
	}
	tasks := f.tasks(t)
	if len(tasks) != 1 || tasks[0].DueDate != nil {
		t.Errorf("expected one undated task, got %+v", tasks)
	}
}

func TestHandle_DateMentionSkipsConfirmation(t *testing.T) {
	client := &fakeClient{replies: []*llm.Response{{Content: "So Meeting tomorrow at 3pm?"}}}
	f := newFixture(t, client, nil)
	f.propose(t, meetingProposal())

	reply, err := f.agent.Handle(context.Background(), Turn{Prompt: "yes but make it tomorrow at 3pm", UserID: f.user.ID, Lang: "en"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !reply.RequiresConfirmation {
		t.Error("expected confirmation to be required")
	}
	if n := len(f.tasks(t)); n != 0 {
		t.Errorf("expected no tasks, got %d", n)
	}
	if len(client.calls) != 1 || len(client.calls[0].Tools) == 0 {
		t.Errorf("expected a single open turn with tools, got %d calls", len(client.calls))
	}
	sess, _ := f.sessions.Get(f.user.ID)
	if sess.Proposal == nil || sess.Proposal.DueDate != "2026-05-05T15:00:00Z" {
		t.Errorf("expected refreshed proposal, got %+v", sess.Proposal)
	}
}

func TestHandle_DirectConfirm(t *testing.T) {
	f := newFixture(t, &fakeClient{}, nil)

	_, err := f.agent.Handle(context.Background(), Turn{Prompt: "confirm", UserID: f.user.ID, Confirm: true, Draft: &Draft{}})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	reply, err := f.agent.Handle(context.Background(), Turn{
		Prompt:  "confirm",
		UserID:  f.user.ID,
		Confirm: true,
		Draft:   &Draft{Title: "Standup", DueDate: "2026-05-06T08:00:00Z", Status: "bogus"},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	task, ok := reply.Data.(*db.Task)
	if !ok {
		t.Fatalf("expected *db.Task data, got %T", reply.Data)
	}
	if task.Title != "Standup" || task.Status != db.StatusPending {
		t.Errorf("unexpected task: %+v", task)
	}
	if len(f.client.calls) != 0 {
		t.Errorf("expected no provider calls, got %d", len(f.client.calls))
	}
}

func TestHandle_Validation(t *testing.T) {
	f := newFixture(t, &fakeClient{}, nil)

	_, err := f.agent.Handle(context.Background(), Turn{Prompt: "  ", UserID: f.user.ID})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error for empty prompt, got %v", err)
	}
	_, err = f.agent.Handle(context.Background(), Turn{Prompt: "hi"})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error for missing user, got %v", err)
	}
	_, err = f.agent.Handle(context.Background(), Turn{Prompt: "hi", UserID: "nobody"})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not found for unknown user, got %v", err)
	}
}

func TestHandle_EmptyReplyAsksQuestions(t *testing.T) {
	f := newFixture(t, &fakeClient{}, nil)

	reply, err := f.agent.Handle(context.Background(), Turn{Prompt: "hello there", UserID: f.user.ID, Lang: "en"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.AssistantMessage != locales["en"].clarifyingQuestions() {
		t.Errorf("expected clarifying questions, got %q", reply.AssistantMessage)
	}
	sess, _ := f.sessions.Get(f.user.ID)
	if sess.Proposal != nil {
		t.Errorf("expected no proposal, got %+v", sess.Proposal)
	}
	if len(sess.Messages) != 3 || sess.Messages[0].Role != llm.RoleSystem {
		t.Errorf("expected system, user and assistant messages, got %d", len(sess.Messages))
	}
}

func TestHandle_EmptyReplySynthesizesProposal(t *testing.T) {
	f := newFixture(t, &fakeClient{}, nil)

	reply, err := f.agent.Handle(context.Background(), Turn{Prompt: "meeting tomorrow at 3pm", UserID: f.user.ID, Lang: "en"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	want := `So you have a meeting at 2026-05-05T15:00:00Z. Should I create a task titled "Meeting" at that time?`
	if !strings.HasPrefix(reply.AssistantMessage, want) {
		t.Errorf("expected %q, got %q", want, reply.AssistantMessage)
	}
	sess, _ := f.sessions.Get(f.user.ID)
	if sess.Proposal == nil || sess.Proposal.Title != "Meeting" || sess.Proposal.AssistantMessage != want {
		t.Errorf("unexpected proposal: %+v", sess.Proposal)
	}
}

func TestHandle_ToolCreateTask(t *testing.T) {
	client := &fakeClient{replies: []*llm.Response{{ToolCalls: []llm.ToolCall{
		{ID: "c1", Name: llm.ToolCreateTask, Params: map[string]any{"title": "Gym", "due_date": "2026-05-06T07:00:00Z"}},
		{ID: "c2", Name: llm.ToolDeleteTask, Params: map[string]any{"id": "whatever"}},
	}}}}
	f := newFixture(t, client, nil)
	f.propose(t, meetingProposal())

	reply, err := f.agent.Handle(context.Background(), Turn{Prompt: "gym on friday at 7", UserID: f.user.ID, Lang: "en"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.Message != "Task created" || reply.ModelUsed != "test-model" {
		t.Errorf("unexpected reply: %+v", reply)
	}
	if n := len(f.tasks(t)); n != 1 {
		t.Errorf("expected 1 task, got %d", n)
	}

	sess, _ := f.sessions.Get(f.user.ID)
	if sess.Proposal != nil {
		t.Error("expected proposal to be cleared after create_task")
	}
	msgs := sess.Messages
	if len(msgs) < 2 {
		t.Fatalf("expected tool results in history, got %d messages", len(msgs))
	}
	first, second := msgs[len(msgs)-2], msgs[len(msgs)-1]
	if first.ToolCallID != "c1" || !strings.Contains(first.Content, "Gym") {
		t.Errorf("unexpected first tool result: %+v", first)
	}
	if second.ToolCallID != "c2" || !strings.Contains(second.Content, "skipped") {
		t.Errorf("expected skipped second call, got %+v", second)
	}
}

func TestHandle_ToolCreateRepeatingTask(t *testing.T) {
	client := &fakeClient{replies: []*llm.Response{{ToolCalls: []llm.ToolCall{{
		ID:   "c1",
		Name: llm.ToolCreateTask,
		Params: map[string]any{
			"title":  "Swim",
			"repeat": map[string]any{"enabled": true, "days_of_week": []any{float64(3)}, "hour": float64(7), "minute": float64(30)},
		},
	}}}}}
	f := newFixture(t, client, nil)

	reply, err := f.agent.Handle(context.Background(), Turn{Prompt: "swim every wednesday 7:30", UserID: f.user.ID, Lang: "en"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	task := reply.Data.(*db.Task)
	want := time.Date(2026, 5, 6, 7, 30, 0, 0, time.UTC)
	if task.Repeat == nil || task.Repeat.Frequency != "weekly" || task.Repeat.NextRunAt == nil || !task.Repeat.NextRunAt.Equal(want) {
		t.Errorf("unexpected repeat: %+v", task.Repeat)
	}
	if task.DueDate == nil || !task.DueDate.Equal(want) {
		t.Errorf("expected due date %v, got %v", want, task.DueDate)
	}
}

func TestHandle_ToolOwnership(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	f := newFixture(t, client, nil)

	other, err := f.db.CreateUser(ctx, "Budi", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	foreign, err := f.db.CreateTask(ctx, db.Task{UserID: other.ID, Title: "Private"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	client.replies = []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "u1", Name: llm.ToolUpdateTask, Params: map[string]any{"id": foreign.ID, "title": "Mine"}}}},
		{ToolCalls: []llm.ToolCall{{ID: "d1", Name: llm.ToolDeleteTask, Params: map[string]any{"id": "missing"}}}},
	}

	_, err = f.agent.Handle(ctx, Turn{Prompt: "rename it", UserID: f.user.ID, Lang: "en"})
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("expected forbidden, got %v", err)
	}
	_, err = f.agent.Handle(ctx, Turn{Prompt: "delete it", UserID: f.user.ID, Lang: "en"})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}

	got, err := f.db.GetTask(ctx, foreign.ID)
	if err != nil || got.Title != "Private" {
		t.Errorf("expected foreign task untouched, got %+v, %v", got, err)
	}
}

func TestHandle_ToolCreateRecurring(t *testing.T) {
	client := &fakeClient{replies: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "r1", Name: llm.ToolCreateRecurring, Params: map[string]any{"title": "Read"}}}},
		{ToolCalls: []llm.ToolCall{{ID: "r2", Name: llm.ToolCreateRecurring, Params: map[string]any{"title": "Read", "hour": float64(21), "minute": float64(0), "days_of_week": []any{float64(2)}}}}},
	}}
	f := newFixture(t, client, nil)

	_, err := f.agent.Handle(context.Background(), Turn{Prompt: "read every tuesday", UserID: f.user.ID, Lang: "en"})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error without hour, got %v", err)
	}

	reply, err := f.agent.Handle(context.Background(), Turn{Prompt: "read every tuesday at 9pm", UserID: f.user.ID, Lang: "en"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	def := reply.Data.(*db.RecurringDefinition)
	want := time.Date(2026, 5, 5, 21, 0, 0, 0, time.UTC)
	if def.NextRunAt == nil || !def.NextRunAt.Equal(want) {
		t.Errorf("expected next run %v, got %v", want, def.NextRunAt)
	}
}

func TestHandle_RateLimited(t *testing.T) {
	f := newFixture(t, &fakeClient{}, ratelimit.New(1, time.Minute))
	ctx := context.Background()

	if _, err := f.agent.Handle(ctx, Turn{Prompt: "hello", UserID: f.user.ID, Lang: "en"}); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	_, err := f.agent.Handle(ctx, Turn{Prompt: "hello again", UserID: f.user.ID, Lang: "en"})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindRateLimited {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	if s := ae.RetryAfterSeconds(); s < 1 || s > 60 {
		t.Errorf("expected retry after within the window, got %d", s)
	}
	if !strings.Contains(ae.Message, "max 1/min") {
		t.Errorf("expected localized message, got %q", ae.Message)
	}
}

func TestHandle_ProviderError(t *testing.T) {
	f := newFixture(t, &fakeClient{errs: []error{errors.New("boom")}}, nil)

	_, err := f.agent.Handle(context.Background(), Turn{Prompt: "hello", UserID: f.user.ID, Lang: "en"})
	if apperr.KindOf(err) != apperr.KindProvider {
		t.Errorf("expected provider error, got %v", err)
	}
	if _, ok := f.sessions.Get(f.user.ID); ok {
		t.Error("expected session to be left untouched")
	}
}

func TestChat(t *testing.T) {
	client := &fakeClient{replies: []*llm.Response{{Content: "Halo!"}}}
	f := newFixture(t, client, nil)

	reply, err := f.agent.Chat(context.Background(), ChatRequest{Prompt: "halo, apa kabar? tolong jawab", CallerKey: "1.2.3.4"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Message != "Halo!" || reply.Model != "test-model" {
		t.Errorf("unexpected reply: %+v", reply)
	}
	req := client.calls[0]
	if req.System != "Jawab dalam bahasa Indonesia." || req.MaxTokens != defaultChatMaxTokens || len(req.Tools) != 0 {
		t.Errorf("unexpected request: %+v", req)
	}

	if _, err := f.agent.Chat(context.Background(), ChatRequest{}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestBuildTaskContext(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeClient{}, nil)
	msgs := locales["en"]

	if got := f.agent.buildTaskContext(ctx, f.user.ID, refNow, msgs); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
	due := refNow.Add(2 * time.Hour)
	task, err := f.db.CreateTask(ctx, db.Task{UserID: f.user.ID, Title: "Dentist", DueDate: &due})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	got := f.agent.buildTaskContext(ctx, f.user.ID, refNow, msgs)
	for _, want := range []string{msgs.openTasks, task.ID, `"Dentist"`, "2 hours from now"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected context to contain %q, got %q", want, got)
		}
	}
}

func TestHandle_ToolRejectsOutOfRangeRepeat(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{replies: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: llm.ToolCreateTask, Params: map[string]any{
			"title":  "Stretch",
			"repeat": map[string]any{"enabled": true, "frequency": "daily", "hour": float64(-15)},
		}}}},
		{ToolCalls: []llm.ToolCall{{ID: "c2", Name: llm.ToolCreateTask, Params: map[string]any{
			"title":  "Stretch",
			"repeat": map[string]any{"enabled": true, "frequency": "daily", "hour": float64(30), "minute": float64(99)},
		}}}},
	}}
	f := newFixture(t, client, nil)

	for i := 0; i < 2; i++ {
		reply, err := f.agent.Handle(ctx, Turn{Prompt: "stretch every day", UserID: f.user.ID, Lang: "en"})
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("call %d: expected validation error, got reply %+v err %v", i, reply, err)
		}
	}
	tasks, err := f.db.ListTasks(ctx, f.user.ID, "")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected no tasks stored, got %+v", tasks)
	}
}

func TestHandle_ToolCreateWithoutTitleAsksForIt(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{replies: []*llm.Response{{ToolCalls: []llm.ToolCall{{
		ID:     "c1",
		Name:   llm.ToolCreateTask,
		Params: map[string]any{"due_date": "2026-05-05T09:00:00Z"},
	}}}}}
	f := newFixture(t, client, nil)

	reply, err := f.agent.Handle(ctx, Turn{Prompt: "besok jam 9 pagi", UserID: f.user.ID, Lang: "id"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	want := localeFor("id").askTitle
	if !reply.RequiresConfirmation || reply.AssistantMessage != want {
		t.Errorf("expected title question %q, got %+v", want, reply)
	}
	tasks, _ := f.db.ListTasks(ctx, f.user.ID, "")
	if len(tasks) != 0 {
		t.Errorf("expected no tasks, got %d", len(tasks))
	}

	sess, _ := f.sessions.Get(f.user.ID)
	n := len(sess.Messages)
	if n < 3 {
		t.Fatalf("expected tool call, result and question in history, got %d messages", n)
	}
	if sess.Messages[n-2].ToolCallID != "c1" {
		t.Errorf("expected tool result for c1, got %+v", sess.Messages[n-2])
	}
	if last := sess.Messages[n-1]; last.Role != llm.RoleAssistant || last.Content != want {
		t.Errorf("expected assistant question last, got %+v", last)
	}
}

func TestHandle_ToolStopsRepeat(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	f := newFixture(t, client, nil)

	rep := &db.RepeatSpec{Enabled: true, Frequency: "daily", Hour: 7}
	if err := rep.Schedule(refNow); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	task, err := f.db.CreateTask(ctx, db.Task{UserID: f.user.ID, Title: "Walk", Repeat: rep})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	client.replies = []*llm.Response{{ToolCalls: []llm.ToolCall{{
		ID:     "u1",
		Name:   llm.ToolUpdateTask,
		Params: map[string]any{"id": task.ID, "repeat_enabled": false},
	}}}}

	reply, err := f.agent.Handle(ctx, Turn{Prompt: "stop repeating walk", UserID: f.user.ID, Lang: "en"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	updated := reply.Data.(*db.Task)
	if updated.Repeat != nil && updated.Repeat.Enabled {
		t.Errorf("expected repeat disabled, got %+v", updated.Repeat)
	}
}
