package agent

import (
	"context"
	"log"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/chris/tasky/internal/db"
	"github.com/chris/tasky/internal/llm"
	"github.com/chris/tasky/internal/session"
)

const classifierMaxTokens = 120

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// classify asks the model whether prompt confirms the pending proposal.
// Any failure, including a rate limit, reads as "not confirmed" so the
// caller falls back to the local heuristic.
func (a *Agent) classify(ctx context.Context, key, model string, maxTokens int, p *session.Proposal, prompt string, msgs messages) (confirmed bool, status string) {
	if maxTokens <= 0 || maxTokens > classifierMaxTokens {
		maxTokens = classifierMaxTokens
	}
	zero := 0.0
	res, err := a.invoker.Invoke(ctx, key, llm.Request{
		Model:  model,
		System: msgs.classifier,
		Messages: []llm.Message{
			{Role: llm.RoleAssistant, Content: p.AssistantMessage},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: &zero,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		log.Printf("agent: classifier unavailable: %v", err)
		return false, ""
	}
	confirmed, status, ok := parseVerdict(res.Content)
	if !ok {
		log.Printf("agent: classifier reply not JSON: %s", truncate(res.Content, 120))
	}
	return confirmed, status
}

// parseVerdict reads {"confirm": bool, "status": "pending"|"done"|null}
// from the first JSON object in s.
func parseVerdict(s string) (confirm bool, status string, ok bool) {
	raw := jsonObject.FindString(s)
	if raw == "" || !gjson.Valid(raw) {
		return false, "", false
	}
	parsed := gjson.Parse(raw)
	confirm = parsed.Get("confirm").Bool()
	if st := parsed.Get("status").String(); db.ValidStatus(st) {
		status = st
	}
	return confirm, status, true
}
