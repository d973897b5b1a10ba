package discord

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

func newTestDG(t *testing.T) *discordgo.Session {
	t.Helper()
	dg := &discordgo.Session{State: discordgo.NewState()}
	dg.State.User = &discordgo.User{ID: "bot-1", Username: "crab-bridge"}
	return dg
}

func mentionMessage(id, channelID, authorID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        id,
			ChannelID: channelID,
			GuildID:   "guild-1",
			Content:   content,
			Author:    &discordgo.User{ID: authorID, Username: "user"},
			Mentions:  []*discordgo.User{{ID: "bot-1"}},
			Timestamp: time.Now().UTC(),
		},
	}
}

func dmMessage(id, channelID, authorID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        id,
			ChannelID: channelID,
			Content:   content,
			Author:    &discordgo.User{ID: authorID, Username: "user"},
			Timestamp: time.Now().UTC(),
		},
	}
}

func TestHandleMessageQueuesMentionAndDM(t *testing.T) {
	s := NewSession(nil)
	dg := newTestDG(t)

	s.handleMessage(dg, mentionMessage("m1", "chan-1", "user-1", "hi <@bot-1>"))
	s.handleMessage(dg, dmMessage("m2", "dm-1", "user-1", "hello"))

	mentions := s.DrainMentions(0)
	if len(mentions) != 1 || mentions[0].ID != "m1" || mentions[0].DM {
		t.Fatalf("unexpected mentions: %+v", mentions)
	}
	dms := s.DrainDMs(0)
	if len(dms) != 1 || dms[0].ID != "m2" || !dms[0].DM {
		t.Fatalf("unexpected dms: %+v", dms)
	}

	// Queues are cleared by draining.
	if got := s.DrainMentions(0); len(got) != 0 {
		t.Fatalf("expected empty mention queue, got %d", len(got))
	}
}

func TestHandleMessageDuplicateDeliveryQueuedOnce(t *testing.T) {
	s := NewSession(nil)
	dg := newTestDG(t)

	msg := dmMessage("dup-1", "dm-1", "user-1", "hello")
	s.handleMessage(dg, msg)
	s.handleMessage(dg, msg)

	if got := len(s.DrainDMs(0)); got != 1 {
		t.Fatalf("expected 1 queued dm, got %d", got)
	}

	seen := 0
	for {
		select {
		case <-s.Events():
			seen++
		default:
			if seen != 1 {
				t.Fatalf("expected 1 event on stream, got %d", seen)
			}
			return
		}
	}
}

func TestHandleMessageIgnoresOwnAndUnrelated(t *testing.T) {
	s := NewSession(nil)
	dg := newTestDG(t)

	own := dmMessage("m1", "dm-1", "bot-1", "self")
	s.handleMessage(dg, own)

	plain := mentionMessage("m2", "chan-1", "user-1", "no mention here")
	plain.Mentions = nil
	s.handleMessage(dg, plain)

	if got := len(s.DrainDMs(0)) + len(s.DrainMentions(0)); got != 0 {
		t.Fatalf("expected nothing queued, got %d", got)
	}
}

func TestPendingQueueBounded(t *testing.T) {
	s := NewSession(nil)
	dg := newTestDG(t)

	for i := 0; i < pendingQueueCap+10; i++ {
		s.handleMessage(dg, dmMessage(fmt.Sprintf("m-%d", i), "dm-1", "user-1", "x"))
	}

	dms := s.DrainDMs(0)
	if len(dms) != pendingQueueCap {
		t.Fatalf("expected queue capped at %d, got %d", pendingQueueCap, len(dms))
	}
	if dms[0].ID != "m-10" {
		t.Fatalf("expected oldest retained event m-10, got %s", dms[0].ID)
	}
}

func TestDrainLimit(t *testing.T) {
	s := NewSession(nil)
	dg := newTestDG(t)
	for i := 0; i < 5; i++ {
		s.handleMessage(dg, dmMessage(fmt.Sprintf("m-%d", i), "dm-1", "user-1", "x"))
	}

	first := s.DrainDMs(2)
	if len(first) != 2 || first[0].ID != "m-0" {
		t.Fatalf("unexpected first drain: %+v", first)
	}
	rest := s.DrainDMs(0)
	if len(rest) != 3 || rest[0].ID != "m-2" {
		t.Fatalf("unexpected rest: %+v", rest)
	}
}

func TestNormalizeBotToken(t *testing.T) {
	if got := normalizeBotToken("abc"); got != "Bot abc" {
		t.Fatalf("unexpected token %q", got)
	}
	if got := normalizeBotToken("Bot abc"); got != "Bot abc" {
		t.Fatalf("unexpected token %q", got)
	}
}
