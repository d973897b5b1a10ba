package executor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crabstack.local/projects/crab-bridge/internal/catalog"
	"crabstack.local/projects/crab-bridge/internal/discord"
	"crabstack.local/projects/crab-bridge/internal/ledger"
)

type fakeConn struct {
	sends    []string
	dms      []string
	sendErr  error
	messages []discord.MessageInfo
	mentions []discord.InboundEvent
}

func (f *fakeConn) BotInfo() (discord.BotInfo, error) {
	return discord.BotInfo{UserID: "bot-1", Username: "crab", GuildCount: 2}, nil
}
func (f *fakeConn) Guilds() ([]discord.GuildInfo, error) {
	return []discord.GuildInfo{{ID: "g1", Name: "Reef"}}, nil
}
func (f *fakeConn) Channels(string) ([]discord.ChannelInfo, error) {
	return []discord.ChannelInfo{
		{ID: "cat1", Name: "General", Type: "category"},
		{ID: "c1", Name: "chat", Type: "text", ParentID: "cat1"},
	}, nil
}
func (f *fakeConn) ChannelInfo(id string) (discord.ChannelInfo, error) {
	return discord.ChannelInfo{ID: id, Name: "chat", Type: "text"}, nil
}
func (f *fakeConn) Roles(string) ([]discord.RoleInfo, error) {
	return []discord.RoleInfo{{ID: "r1", Name: "mod"}}, nil
}
func (f *fakeConn) UserInfo(id string) (discord.UserInfo, error) {
	return discord.UserInfo{ID: id, Username: "alice"}, nil
}
func (f *fakeConn) SendMessage(channelID, content string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sends = append(f.sends, channelID+"|"+content)
	return "msg-1", nil
}
func (f *fakeConn) ReadMessages(string, int) ([]discord.MessageInfo, error) {
	return f.messages, nil
}
func (f *fakeConn) EditMessage(string, string, string) error   { return nil }
func (f *fakeConn) DeleteMessage(string, string) error         { return nil }
func (f *fakeConn) PinMessage(string, string) error            { return nil }
func (f *fakeConn) UnpinMessage(string, string) error          { return nil }
func (f *fakeConn) AddReaction(string, string, string) error   { return nil }
func (f *fakeConn) RemoveReaction(string, string, string) error { return nil }
func (f *fakeConn) SendDM(userID, content string) (string, string, error) {
	f.dms = append(f.dms, userID+"|"+content)
	return "dm-chan-1", "msg-2", nil
}
func (f *fakeConn) SendFile(string, string, io.Reader, string) (string, error) {
	return "msg-3", nil
}
func (f *fakeConn) CreateChannel(_, name, _, _ string) (discord.ChannelInfo, error) {
	return discord.ChannelInfo{ID: "c-new", Name: name, Type: "text"}, nil
}
func (f *fakeConn) DeleteChannel(string) error { return nil }
func (f *fakeConn) CreateCategory(_, name string) (discord.ChannelInfo, error) {
	return discord.ChannelInfo{ID: "cat-new", Name: name, Type: "category"}, nil
}
func (f *fakeConn) MoveChannel(string, string) error { return nil }
func (f *fakeConn) CreateThread(_, _, name string) (discord.ChannelInfo, error) {
	return discord.ChannelInfo{ID: "t-new", Name: name, Type: "thread"}, nil
}
func (f *fakeConn) ArchiveThread(string) error          { return nil }
func (f *fakeConn) AddRole(string, string, string) error    { return nil }
func (f *fakeConn) RemoveRole(string, string, string) error { return nil }
func (f *fakeConn) Attachments(string, string) ([]discord.AttachmentLocator, error) {
	return []discord.AttachmentLocator{{ID: "a1", Filename: "pic.png", URL: "https://cdn/pic.png", Size: 42}}, nil
}
func (f *fakeConn) DrainMentions(limit int) []discord.InboundEvent {
	out := f.mentions
	f.mentions = nil
	return out
}
func (f *fakeConn) DrainDMs(int) []discord.InboundEvent { return nil }

func newTestExecutor(t *testing.T) (*Local, *fakeConn, *ledger.Ledger) {
	t.Helper()
	store, err := ledger.NewGormStore("sqlite", filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	led, err := ledger.New(nil, store)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	t.Cleanup(func() { _ = led.Close() })

	conn := &fakeConn{}
	return NewLocal(nil, conn, led), conn, led
}

func TestSendMessageSendsOnceAndRecords(t *testing.T) {
	exec, conn, led := newTestExecutor(t)

	res := exec.Execute(context.Background(), catalog.ToolSendMessage, map[string]any{
		"channel_id": "C1",
		"content":    "hi",
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Text)
	}
	if len(conn.sends) != 1 || conn.sends[0] != "C1|hi" {
		t.Fatalf("unexpected platform sends: %v", conn.sends)
	}

	entries := led.Recent("C1", 10)
	if len(entries) != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", len(entries))
	}
	if entries[0].Role != ledger.RoleAssistant || entries[0].Content != "hi" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestSendMessageFailureLeavesNoLedgerEntry(t *testing.T) {
	exec, conn, led := newTestExecutor(t)
	conn.sendErr = fmt.Errorf("platform down")

	res := exec.Execute(context.Background(), catalog.ToolSendMessage, map[string]any{
		"channel_id": "C1",
		"content":    "hi",
	})
	if !res.IsError {
		t.Fatal("expected error result")
	}
	if got := led.Recent("C1", 10); len(got) != 0 {
		t.Fatalf("failed send must not be recorded, got %d entries", len(got))
	}
}

func TestSendDMRecordsUnderDMConversation(t *testing.T) {
	exec, conn, led := newTestExecutor(t)

	res := exec.Execute(context.Background(), catalog.ToolSendDM, map[string]any{
		"user_id": "u1",
		"content": "hello",
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Text)
	}
	if len(conn.dms) != 1 {
		t.Fatalf("expected one dm send, got %v", conn.dms)
	}
	if got := led.Recent("dm:u1", 10); len(got) != 1 || got[0].Content != "hello" {
		t.Fatalf("unexpected dm ledger: %+v", got)
	}
}

func TestReadMessagesFormatsChronologically(t *testing.T) {
	exec, conn, _ := newTestExecutor(t)
	now := time.Now().UTC()
	conn.messages = []discord.MessageInfo{
		{ID: "m1", AuthorName: "alice", Content: "first", Timestamp: now},
		{ID: "m2", AuthorName: "bob", Content: "second", Timestamp: now},
	}

	res := exec.Execute(context.Background(), catalog.ToolReadMessages, map[string]any{"channel_id": "C1"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Text)
	}
	if !strings.Contains(res.Text, "alice: first") || !strings.Contains(res.Text, "bob: second") {
		t.Fatalf("unexpected formatting: %s", res.Text)
	}
	if strings.Index(res.Text, "first") > strings.Index(res.Text, "second") {
		t.Fatal("messages out of order")
	}
}

func TestCheckMentionsDrainsQueue(t *testing.T) {
	exec, conn, _ := newTestExecutor(t)
	conn.mentions = []discord.InboundEvent{
		{ID: "e1", ChannelID: "c1", AuthorName: "alice", Content: "ping", Timestamp: time.Now()},
	}

	res := exec.Execute(context.Background(), catalog.ToolCheckMentions, nil)
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Text)
	}
	if !strings.Contains(res.Text, "1 pending mentions") {
		t.Fatalf("unexpected text: %s", res.Text)
	}

	empty := exec.Execute(context.Background(), catalog.ToolCheckMentions, nil)
	if !strings.Contains(empty.Text, "No pending mentions") {
		t.Fatalf("queue should have been drained: %s", empty.Text)
	}
}

func TestConversationHistoryReadsLedger(t *testing.T) {
	exec, _, led := newTestExecutor(t)
	if err := led.Append(context.Background(), "C1", ledger.Entry{Role: ledger.RoleUser, Content: "hi", AuthorName: "alice"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	res := exec.Execute(context.Background(), catalog.ToolConversationHistory, map[string]any{"conversation_id": "C1"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Text)
	}
	if !strings.Contains(res.Text, "alice: hi") {
		t.Fatalf("unexpected history text: %s", res.Text)
	}
}

func TestUnknownToolAtExecutor(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	res := exec.Execute(context.Background(), "bogus", nil)
	if !res.IsError {
		t.Fatal("expected error result")
	}
}

func TestSendFileMissingPath(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	res := exec.Execute(context.Background(), catalog.ToolSendFile, map[string]any{
		"channel_id": "C1",
		"file_path":  filepath.Join(t.TempDir(), "missing.txt"),
	})
	if !res.IsError {
		t.Fatal("expected error for missing file")
	}
}
