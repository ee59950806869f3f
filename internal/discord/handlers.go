package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"

	"github.com/chris/tasky/internal/agent"
	"github.com/chris/tasky/internal/apperr"
	"github.com/chris/tasky/internal/db"
)

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore own messages
	if m.Author.ID == s.State.User.ID {
		return
	}

	// Only respond to DMs or when mentioned
	isDM := m.GuildID == ""
	isMentioned := false
	for _, u := range m.Mentions {
		if u.ID == s.State.User.ID {
			isMentioned = true
			break
		}
	}

	if !isDM && !isMentioned {
		return
	}

	content := strings.TrimSpace(m.Content)
	// Strip mention from message
	content = strings.TrimSpace(stripMention(content, s.State.User.ID))
	if content == "" {
		return
	}

	ctx := context.Background()
	user, err := b.db.EnsureExternalUser(ctx, ExternalID(m.Author.ID), m.Author.Username)
	if err != nil {
		log.Printf("discord: resolving user %s: %v", m.Author.ID, err)
		s.ChannelMessageSend(m.ChannelID, "Something went wrong. Try again?")
		return
	}

	// Show typing indicator
	s.ChannelTyping(m.ChannelID)

	reply, err := b.agent.Handle(ctx, agent.Turn{
		Prompt:    content,
		UserID:    user.ID,
		SessionID: sessionID(m.ChannelID, m.Author.ID),
		Lang:      b.lang,
	})
	text := ""
	if err != nil {
		text = errorText(err)
	} else {
		text = formatReply(reply, time.Now())
	}

	// Discord has a 2000 char limit; split if needed
	for _, chunk := range splitMessage(text, maxMessageLen) {
		s.ChannelMessageSend(m.ChannelID, chunk)
	}
}

// sessionID keeps one conversation per person per channel.
func sessionID(channelID, authorID string) string {
	return externalPrefix + channelID + ":" + authorID
}

// formatReply renders an agent reply as a chat message.
func formatReply(r *agent.Reply, now time.Time) string {
	if r.RequiresConfirmation {
		return r.AssistantMessage
	}
	var b strings.Builder
	b.WriteString(r.Message)
	switch v := r.Data.(type) {
	case *db.Task:
		fmt.Fprintf(&b, ": **%s**", v.Title)
		if v.DueDate != nil {
			fmt.Fprintf(&b, ", due %s (%s UTC)", humanize.RelTime(*v.DueDate, now, "ago", "from now"), v.DueDate.UTC().Format("Mon 2 Jan 15:04"))
		}
		if v.Repeat != nil && v.Repeat.Enabled {
			fmt.Fprintf(&b, ", repeats %s", v.Repeat.Frequency)
		}
	case *db.RecurringDefinition:
		fmt.Fprintf(&b, ": **%s** at %02d:%02d UTC", v.Title, v.Hour, v.Minute)
		if v.NextRunAt != nil {
			fmt.Fprintf(&b, ", next %s", humanize.RelTime(*v.NextRunAt, now, "ago", "from now"))
		}
	}
	for _, n := range r.Notes {
		b.WriteString("\n_" + n + "_")
	}
	return b.String()
}

// errorText is what the user sees when a turn fails. Internal details stay
// in the log.
func errorText(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case apperr.KindValidation, apperr.KindNotFound, apperr.KindForbidden, apperr.KindRateLimited:
			return ae.Message
		}
	}
	log.Printf("discord: agent error: %v", err)
	return "Something went wrong. Try again?"
}

func stripMention(s, userID string) string {
	s = strings.ReplaceAll(s, "<@"+userID+">", "")
	s = strings.ReplaceAll(s, "<@!"+userID+">", "")
	return s
}

func splitMessage(s string, maxLen int) []string {
	if len(s) <= maxLen {
		return []string{s}
	}
	var chunks []string
	for len(s) > 0 {
		end := maxLen
		if end > len(s) {
			end = len(s)
		}
		// Try to split at a newline
		if idx := strings.LastIndex(s[:end], "\n"); idx > 0 {
			end = idx + 1
		}
		chunks = append(chunks, s[:end])
		s = s[end:]
	}
	return chunks
}
