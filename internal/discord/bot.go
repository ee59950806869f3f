package discord

import (
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/chris/tasky/internal/agent"
	"github.com/chris/tasky/internal/db"
)

// externalPrefix marks users that came in through Discord.
const externalPrefix = "discord:"

// maxMessageLen is Discord's per-message character limit.
const maxMessageLen = 2000

type Bot struct {
	session *discordgo.Session
	agent   *agent.Agent
	db      *db.DB
	lang    string
}

func NewBot(token string, ag *agent.Agent, database *db.DB, defaultLang string) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}

	bot := &Bot{session: s, agent: ag, db: database, lang: defaultLang}
	s.AddHandler(bot.onMessage)
	s.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsGuildMessages

	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("opening Discord connection: %w", err)
	}

	log.Printf("Discord bot connected as %s", s.State.User.Username)
	return bot, nil
}

func (b *Bot) Close() {
	b.session.Close()
}

// ExternalID is the db external id of a Discord account.
func ExternalID(discordUserID string) string {
	return externalPrefix + discordUserID
}

// discordUserID returns the Discord account behind u, if any.
func discordUserID(u *db.User) (string, bool) {
	id, ok := strings.CutPrefix(u.ExternalID, externalPrefix)
	return id, ok && id != ""
}

// SendDM messages u privately. It reports false without error when u did
// not come from Discord.
func (b *Bot) SendDM(u *db.User, content string) (bool, error) {
	id, ok := discordUserID(u)
	if !ok {
		return false, nil
	}
	ch, err := b.session.UserChannelCreate(id)
	if err != nil {
		return false, fmt.Errorf("opening DM channel: %w", err)
	}
	for _, chunk := range splitMessage(content, maxMessageLen) {
		if _, err := b.session.ChannelMessageSend(ch.ID, chunk); err != nil {
			return false, fmt.Errorf("sending DM: %w", err)
		}
	}
	return true, nil
}
