package llm

// TrimMessages trims a conversation history to fit within a token budget.
//
// Leading system messages are pinned: they frame every turn and are never
// dropped. The rest is split into logical groups (a user message, a plain
// assistant reply, or an assistant tool call with its results). The most
// recent group always survives; older groups go first until the history fits.
func TrimMessages(messages []Message, maxTokens int) []Message {
	if len(messages) == 0 {
		return messages
	}

	pinned := 0
	for pinned < len(messages) && messages[pinned].Role == RoleSystem {
		pinned++
	}
	head, rest := messages[:pinned], messages[pinned:]
	if len(rest) == 0 {
		return messages
	}

	budget := maxTokens - messagesTokens(head)
	groups := groupMessages(rest)

	total := 0
	for _, g := range groups {
		total += g.tokens
	}
	if total <= budget {
		return messages
	}

	kept := total
	dropUntil := 0
	for dropUntil < len(groups)-1 && kept > budget {
		kept -= groups[dropUntil].tokens
		dropUntil++
	}

	trimmed := make([]Message, 0, len(messages))
	trimmed = append(trimmed, head...)
	for _, g := range groups[dropUntil:] {
		trimmed = append(trimmed, g.messages...)
	}
	return trimmed
}

// messageGroup is a run of messages that must be kept or dropped together.
type messageGroup struct {
	messages []Message
	tokens   int
}

// groupMessages pairs every assistant tool call with the tool results that
// follow it; any other message is a group of its own.
func groupMessages(messages []Message) []messageGroup {
	var groups []messageGroup
	for i := 0; i < len(messages); {
		msg := messages[i]
		group := messageGroup{messages: []Message{msg}, tokens: messageTokens(msg)}
		i++
		if msg.Role == RoleAssistant && len(msg.ToolCalls) > 0 {
			for i < len(messages) && messages[i].ToolCallID != "" {
				group.messages = append(group.messages, messages[i])
				group.tokens += messageTokens(messages[i])
				i++
			}
		}
		groups = append(groups, group)
	}
	return groups
}
