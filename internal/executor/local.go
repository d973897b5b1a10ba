// Package executor performs tool calls directly against the live
// Discord connection. It is the only component besides the frontend
// consumer that writes to the conversation ledger.
package executor

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"crabstack.local/projects/crab-bridge/internal/bridge"
	"crabstack.local/projects/crab-bridge/internal/catalog"
	"crabstack.local/projects/crab-bridge/internal/discord"
	"crabstack.local/projects/crab-bridge/internal/ledger"
)

type handlerFunc func(ctx context.Context, args map[string]any) bridge.ToolResult

type Local struct {
	logger   *log.Logger
	conn     discord.Conn
	ledger   *ledger.Ledger
	handlers map[string]handlerFunc
}

func NewLocal(logger *log.Logger, conn discord.Conn, led *ledger.Ledger) *Local {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	e := &Local{
		logger: logger,
		conn:   conn,
		ledger: led,
	}
	e.handlers = map[string]handlerFunc{
		catalog.ToolLoginInfo:           e.loginInfo,
		catalog.ToolListGuilds:          e.listGuilds,
		catalog.ToolListChannels:        e.listChannels,
		catalog.ToolChannelInfo:         e.channelInfo,
		catalog.ToolListRoles:           e.listRoles,
		catalog.ToolUserInfo:            e.userInfo,
		catalog.ToolSendMessage:         e.sendMessage,
		catalog.ToolReadMessages:        e.readMessages,
		catalog.ToolEditMessage:         e.editMessage,
		catalog.ToolDeleteMessage:       e.deleteMessage,
		catalog.ToolPinMessage:          e.pinMessage,
		catalog.ToolUnpinMessage:        e.unpinMessage,
		catalog.ToolAddReaction:         e.addReaction,
		catalog.ToolRemoveReaction:      e.removeReaction,
		catalog.ToolSendDM:              e.sendDM,
		catalog.ToolSendFile:            e.sendFile,
		catalog.ToolCreateChannel:       e.createChannel,
		catalog.ToolDeleteChannel:       e.deleteChannel,
		catalog.ToolCreateCategory:      e.createCategory,
		catalog.ToolMoveChannel:         e.moveChannel,
		catalog.ToolCreateThread:        e.createThread,
		catalog.ToolArchiveThread:       e.archiveThread,
		catalog.ToolAddRole:             e.addRole,
		catalog.ToolRemoveRole:          e.removeRole,
		catalog.ToolCheckMentions:       e.checkMentions,
		catalog.ToolCheckDMs:            e.checkDMs,
		catalog.ToolGetAttachments:      e.getAttachments,
		catalog.ToolConversationHistory: e.conversationHistory,
	}
	return e
}

func (e *Local) Execute(ctx context.Context, name string, args map[string]any) bridge.ToolResult {
	handler, ok := e.handlers[name]
	if !ok {
		return bridge.Errorf("unknown tool: %s", name)
	}
	return handler(ctx, args)
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// intArg accepts float64 because JSON numbers decode as float64.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (e *Local) loginInfo(_ context.Context, _ map[string]any) bridge.ToolResult {
	info, err := e.conn.BotInfo()
	if err != nil {
		return bridge.Errorf("login info: %v", err)
	}
	return bridge.ToolResult{Text: bridge.FormatBotInfo(info), Payload: info}
}

func (e *Local) listGuilds(_ context.Context, _ map[string]any) bridge.ToolResult {
	guilds, err := e.conn.Guilds()
	if err != nil {
		return bridge.Errorf("list guilds: %v", err)
	}
	return bridge.ToolResult{Text: bridge.FormatGuilds(guilds), Payload: guilds}
}

func (e *Local) listChannels(_ context.Context, args map[string]any) bridge.ToolResult {
	channels, err := e.conn.Channels(stringArg(args, "guild_id"))
	if err != nil {
		return bridge.Errorf("list channels: %v", err)
	}
	return bridge.ToolResult{Text: bridge.FormatChannels(channels), Payload: channels}
}

func (e *Local) channelInfo(_ context.Context, args map[string]any) bridge.ToolResult {
	ch, err := e.conn.ChannelInfo(stringArg(args, "channel_id"))
	if err != nil {
		return bridge.Errorf("channel info: %v", err)
	}
	return bridge.ToolResult{Text: bridge.FormatChannel(ch), Payload: ch}
}

func (e *Local) listRoles(_ context.Context, args map[string]any) bridge.ToolResult {
	roles, err := e.conn.Roles(stringArg(args, "guild_id"))
	if err != nil {
		return bridge.Errorf("list roles: %v", err)
	}
	return bridge.ToolResult{Text: bridge.FormatRoles(roles), Payload: roles}
}

func (e *Local) userInfo(_ context.Context, args map[string]any) bridge.ToolResult {
	user, err := e.conn.UserInfo(stringArg(args, "user_id"))
	if err != nil {
		return bridge.Errorf("user info: %v", err)
	}
	return bridge.ToolResult{Text: bridge.FormatUser(user), Payload: user}
}

// sendMessage performs the platform send first and appends to the
// ledger only after it succeeded, so a ledger entry never exists for a
// message that was not delivered.
func (e *Local) sendMessage(ctx context.Context, args map[string]any) bridge.ToolResult {
	channelID := stringArg(args, "channel_id")
	content := stringArg(args, "content")

	messageID, err := e.conn.SendMessage(channelID, content)
	if err != nil {
		return bridge.Errorf("send message: %v", err)
	}

	if err := e.ledger.Append(ctx, channelID, ledger.Entry{
		Role:    ledger.RoleAssistant,
		Content: content,
	}); err != nil {
		e.logger.Printf("ledger append failed channel=%s err=%v", channelID, err)
	}

	res := bridge.SendResult{Success: true, ChannelID: channelID, MessageID: messageID}
	return bridge.ToolResult{Text: bridge.FormatSend(res), Payload: res}
}

func (e *Local) readMessages(_ context.Context, args map[string]any) bridge.ToolResult {
	messages, err := e.conn.ReadMessages(stringArg(args, "channel_id"), intArg(args, "limit"))
	if err != nil {
		return bridge.Errorf("read messages: %v", err)
	}
	return bridge.ToolResult{Text: bridge.FormatMessages(messages), Payload: messages}
}

func (e *Local) editMessage(_ context.Context, args map[string]any) bridge.ToolResult {
	err := e.conn.EditMessage(stringArg(args, "channel_id"), stringArg(args, "message_id"), stringArg(args, "content"))
	return e.opResult(err, "edit the message")
}

func (e *Local) deleteMessage(_ context.Context, args map[string]any) bridge.ToolResult {
	err := e.conn.DeleteMessage(stringArg(args, "channel_id"), stringArg(args, "message_id"))
	return e.opResult(err, "delete the message")
}

func (e *Local) pinMessage(_ context.Context, args map[string]any) bridge.ToolResult {
	err := e.conn.PinMessage(stringArg(args, "channel_id"), stringArg(args, "message_id"))
	return e.opResult(err, "pin the message")
}

func (e *Local) unpinMessage(_ context.Context, args map[string]any) bridge.ToolResult {
	err := e.conn.UnpinMessage(stringArg(args, "channel_id"), stringArg(args, "message_id"))
	return e.opResult(err, "unpin the message")
}

func (e *Local) addReaction(_ context.Context, args map[string]any) bridge.ToolResult {
	err := e.conn.AddReaction(stringArg(args, "channel_id"), stringArg(args, "message_id"), stringArg(args, "emoji"))
	return e.opResult(err, "add the reaction")
}

func (e *Local) removeReaction(_ context.Context, args map[string]any) bridge.ToolResult {
	err := e.conn.RemoveReaction(stringArg(args, "channel_id"), stringArg(args, "message_id"), stringArg(args, "emoji"))
	return e.opResult(err, "remove the reaction")
}

func (e *Local) sendDM(ctx context.Context, args map[string]any) bridge.ToolResult {
	userID := stringArg(args, "user_id")
	content := stringArg(args, "content")

	channelID, messageID, err := e.conn.SendDM(userID, content)
	if err != nil {
		return bridge.Errorf("send dm: %v", err)
	}

	if err := e.ledger.Append(ctx, "dm:"+userID, ledger.Entry{
		Role:    ledger.RoleAssistant,
		Content: content,
	}); err != nil {
		e.logger.Printf("ledger append failed dm=%s err=%v", userID, err)
	}

	res := bridge.SendResult{Success: true, ChannelID: channelID, MessageID: messageID}
	return bridge.ToolResult{Text: bridge.FormatSend(res), Payload: res}
}

func (e *Local) sendFile(_ context.Context, args map[string]any) bridge.ToolResult {
	channelID := stringArg(args, "channel_id")
	filePath := stringArg(args, "file_path")
	message := stringArg(args, "message")

	f, err := os.Open(filePath)
	if err != nil {
		return bridge.Errorf("open file: %v", err)
	}
	defer f.Close()

	messageID, err := e.conn.SendFile(channelID, filepath.Base(filePath), f, message)
	if err != nil {
		return bridge.Errorf("send file: %v", err)
	}
	res := bridge.SendResult{Success: true, ChannelID: channelID, MessageID: messageID}
	return bridge.ToolResult{Text: fmt.Sprintf("File uploaded (message id %s)", messageID), Payload: res}
}

func (e *Local) createChannel(_ context.Context, args map[string]any) bridge.ToolResult {
	ch, err := e.conn.CreateChannel(
		stringArg(args, "guild_id"),
		stringArg(args, "name"),
		stringArg(args, "category_id"),
		stringArg(args, "topic"),
	)
	if err != nil {
		return bridge.Errorf("create channel: %v", err)
	}
	return bridge.ToolResult{Text: "Created " + bridge.FormatChannel(ch), Payload: ch}
}

func (e *Local) deleteChannel(_ context.Context, args map[string]any) bridge.ToolResult {
	err := e.conn.DeleteChannel(stringArg(args, "channel_id"))
	return e.opResult(err, "delete the channel")
}

func (e *Local) createCategory(_ context.Context, args map[string]any) bridge.ToolResult {
	ch, err := e.conn.CreateCategory(stringArg(args, "guild_id"), stringArg(args, "name"))
	if err != nil {
		return bridge.Errorf("create category: %v", err)
	}
	return bridge.ToolResult{Text: fmt.Sprintf("Created category %s (id %s)", ch.Name, ch.ID), Payload: ch}
}

func (e *Local) moveChannel(_ context.Context, args map[string]any) bridge.ToolResult {
	err := e.conn.MoveChannel(stringArg(args, "channel_id"), stringArg(args, "category_id"))
	return e.opResult(err, "move the channel")
}

func (e *Local) createThread(_ context.Context, args map[string]any) bridge.ToolResult {
	ch, err := e.conn.CreateThread(
		stringArg(args, "channel_id"),
		stringArg(args, "message_id"),
		stringArg(args, "name"),
	)
	if err != nil {
		return bridge.Errorf("create thread: %v", err)
	}
	return bridge.ToolResult{Text: fmt.Sprintf("Created thread %s (id %s)", ch.Name, ch.ID), Payload: ch}
}

func (e *Local) archiveThread(_ context.Context, args map[string]any) bridge.ToolResult {
	err := e.conn.ArchiveThread(stringArg(args, "thread_id"))
	return e.opResult(err, "archive the thread")
}

func (e *Local) addRole(_ context.Context, args map[string]any) bridge.ToolResult {
	err := e.conn.AddRole(stringArg(args, "guild_id"), stringArg(args, "user_id"), stringArg(args, "role_id"))
	return e.opResult(err, "add the role")
}

func (e *Local) removeRole(_ context.Context, args map[string]any) bridge.ToolResult {
	err := e.conn.RemoveRole(stringArg(args, "guild_id"), stringArg(args, "user_id"), stringArg(args, "role_id"))
	return e.opResult(err, "remove the role")
}

func (e *Local) checkMentions(_ context.Context, args map[string]any) bridge.ToolResult {
	events := e.conn.DrainMentions(intArg(args, "limit"))
	return bridge.ToolResult{Text: bridge.FormatEvents("mentions", events), Payload: events}
}

func (e *Local) checkDMs(_ context.Context, args map[string]any) bridge.ToolResult {
	events := e.conn.DrainDMs(intArg(args, "limit"))
	return bridge.ToolResult{Text: bridge.FormatEvents("direct messages", events), Payload: events}
}

func (e *Local) getAttachments(_ context.Context, args map[string]any) bridge.ToolResult {
	locators, err := e.conn.Attachments(stringArg(args, "channel_id"), stringArg(args, "message_id"))
	if err != nil {
		return bridge.Errorf("get attachments: %v", err)
	}
	return bridge.ToolResult{Text: bridge.FormatAttachments(locators), Payload: locators}
}

func (e *Local) conversationHistory(_ context.Context, args map[string]any) bridge.ToolResult {
	entries := e.ledger.Recent(stringArg(args, "conversation_id"), intArg(args, "limit"))
	return bridge.ToolResult{Text: bridge.FormatEntries(entries), Payload: entries}
}

func (e *Local) opResult(err error, verb string) bridge.ToolResult {
	if err != nil {
		return bridge.Errorf("%s: %v", verb, err)
	}
	res := bridge.OpResult{Success: true}
	return bridge.ToolResult{Text: bridge.FormatOp(res, verb), Payload: res}
}
