package agent

import (
	"context"
	"strings"

	"github.com/chris/tasky/internal/apperr"
	"github.com/chris/tasky/internal/llm"
	"github.com/chris/tasky/internal/nlu"
)

const defaultChatMaxTokens = 256

type ChatRequest struct {
	Prompt      string
	Model       string
	Lang        string
	CallerKey   string
	Temperature *float64
	MaxTokens   int
}

type ChatReply struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

// Chat is a plain completion with no tools and no session. It goes through
// the same limiter and fallback chain as the agent.
func (a *Agent) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, apperr.Validation("prompt is required (string)")
	}
	lang := nlu.ResolveLang(req.Lang, prompt)
	msgs := localeFor(lang)
	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultChatMaxTokens
	}
	key := req.CallerKey
	if key == "" {
		key = "anonymous"
	}

	res, err := a.invoker.Invoke(ctx, key, llm.Request{
		Model:       model,
		System:      msgs.chat,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, a.providerError(err, msgs)
	}
	return &ChatReply{Message: res.Content, Model: res.ModelUsed}, nil
}
