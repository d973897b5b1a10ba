package discord

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	pendingQueueCap = 50
	eventStreamCap  = 64
	dedupSetMax     = 512
	readDefault     = 20
	readMax         = 100
)

// Session holds the live Discord connection and the in-memory mention
// and DM queues attached to it. It implements Conn.
type Session struct {
	logger *log.Logger

	mu              sync.Mutex
	session         *discordgo.Session
	pendingMentions []InboundEvent
	pendingDMs      []InboundEvent
	dedup           *dedupSet

	events chan InboundEvent
}

func NewSession(logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Session{
		logger: logger,
		dedup:  newDedupSet(dedupSetMax),
		events: make(chan InboundEvent, eventStreamCap),
	}
}

// Events is the stream of deduplicated mentions and DMs. The channel is
// bounded; events arriving while it is full are dropped from the stream
// but stay visible through the pending queues.
func (s *Session) Events() <-chan InboundEvent {
	return s.events
}

func (s *Session) Start(botToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return fmt.Errorf("session already started")
	}

	dg, err := discordgo.New(normalizeBotToken(botToken))
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	dg.AddHandler(s.handleMessage)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	s.session = dg
	s.logger.Printf("discord session started")
	return nil
}

func (s *Session) Stop() error {
	s.mu.Lock()
	dg := s.session
	s.session = nil
	s.mu.Unlock()

	if dg == nil {
		return nil
	}
	if err := dg.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	s.logger.Printf("discord session stopped")
	return nil
}

func (s *Session) handleMessage(dg *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	if dg.State.User != nil && m.Author.ID == dg.State.User.ID {
		return
	}
	if m.Author.Bot {
		return
	}

	isDM := m.GuildID == ""
	mentioned := false
	if dg.State.User != nil {
		for _, mention := range m.Mentions {
			if mention != nil && mention.ID == dg.State.User.ID {
				mentioned = true
				break
			}
		}
	}
	if !isDM && !mentioned {
		return
	}

	event := InboundEvent{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		AuthorID:   m.Author.ID,
		AuthorName: displayName(m.Author),
		Content:    m.Content,
		Timestamp:  messageTime(m.Timestamp),
		DM:         isDM,
	}

	s.mu.Lock()
	if s.dedup.Seen(event.ID) {
		s.mu.Unlock()
		return
	}
	if isDM {
		s.pendingDMs = appendBounded(s.pendingDMs, event, pendingQueueCap)
	} else {
		s.pendingMentions = appendBounded(s.pendingMentions, event, pendingQueueCap)
	}
	s.mu.Unlock()

	select {
	case s.events <- event:
	default:
		s.logger.Printf("event stream full, dropping event id=%s", event.ID)
	}
}

func (s *Session) DrainMentions(limit int) []InboundEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := drain(&s.pendingMentions, limit)
	return out
}

func (s *Session) DrainDMs(limit int) []InboundEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := drain(&s.pendingDMs, limit)
	return out
}

func drain(queue *[]InboundEvent, limit int) []InboundEvent {
	n := len(*queue)
	if limit > 0 && limit < n {
		n = limit
	}
	out := append([]InboundEvent(nil), (*queue)[:n]...)
	*queue = append([]InboundEvent(nil), (*queue)[n:]...)
	return out
}

func appendBounded(queue []InboundEvent, event InboundEvent, max int) []InboundEvent {
	queue = append(queue, event)
	if len(queue) > max {
		queue = append([]InboundEvent(nil), queue[len(queue)-max:]...)
	}
	return queue
}

func normalizeBotToken(token string) string {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "Bot ") {
		return trimmed
	}
	return "Bot " + trimmed
}

func displayName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if strings.TrimSpace(u.GlobalName) != "" {
		return u.GlobalName
	}
	return u.Username
}

func messageTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}
