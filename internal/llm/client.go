package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role       string     `json:"role"` // user, assistant, system
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // for tool result messages
}

type ToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

type Response struct {
	Content   string
	ToolCalls []ToolCall
}

type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request is one completion call. Temperature is nil when the caller did not
// ask for one; MaxTokens of zero leaves the provider default.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []Tool
	AutoTools   bool // let the provider decide whether to call a tool
	Temperature *float64
	MaxTokens   int
}

type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
