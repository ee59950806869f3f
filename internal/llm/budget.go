package llm

import (
	"encoding/json"
	"unicode/utf8"
)

// Rough context accounting. Four characters per token holds well enough
// for English and Indonesian chat; the overheads cover role markers and
// the JSON envelopes around tool calls and schemas.
const (
	charsPerToken    = 4
	messageOverhead  = 4
	callOverhead     = 4
	toolOverhead     = 10
	minMessageBudget = 1000
)

// textTokens counts runes, not bytes, so reminder emoji and accented names
// cost what they look like.
func textTokens(s string) int {
	return (utf8.RuneCountInString(s) + charsPerToken - 1) / charsPerToken
}

// messageTokens costs a message as the provider receives it. Tool calls are
// measured on the encoded argument string, tool results on their call id.
func messageTokens(m Message) int {
	tokens := messageOverhead + textTokens(m.Content)
	for _, tc := range m.ToolCalls {
		tokens += callOverhead + textTokens(tc.ID) + textTokens(tc.Name) + textTokens(encodeArguments(tc.Params))
	}
	if m.ToolCallID != "" {
		tokens += textTokens(m.ToolCallID)
	}
	return tokens
}

func messagesTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += messageTokens(m)
	}
	return total
}

func toolTokens(tools []Tool) int {
	total := 0
	for _, t := range tools {
		total += toolOverhead + textTokens(t.Name) + textTokens(t.Description)
		if schema, err := json.Marshal(t.Parameters); err == nil {
			total += textTokens(string(schema))
		}
	}
	return total
}

// MessageBudget is what maxContext leaves for history once req's system
// context and tool schemas are paid for. It never falls below
// minMessageBudget, so the current turn always fits.
func MessageBudget(maxContext int, req Request) int {
	return max(maxContext-textTokens(req.System)-toolTokens(req.Tools), minMessageBudget)
}
