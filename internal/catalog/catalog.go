// Package catalog is the static table of tools the bridge exposes. The
// same set is advertised by every instance regardless of execution
// mode; only the executor behind it differs.
package catalog

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	ToolLoginInfo           = "discord_login_info"
	ToolListGuilds          = "discord_list_guilds"
	ToolListChannels        = "discord_list_channels"
	ToolChannelInfo         = "discord_get_channel_info"
	ToolListRoles           = "discord_list_roles"
	ToolUserInfo            = "discord_get_user_info"
	ToolSendMessage         = "discord_send_message"
	ToolReadMessages        = "discord_read_messages"
	ToolEditMessage         = "discord_edit_message"
	ToolDeleteMessage       = "discord_delete_message"
	ToolPinMessage          = "discord_pin_message"
	ToolUnpinMessage        = "discord_unpin_message"
	ToolAddReaction         = "discord_add_reaction"
	ToolRemoveReaction      = "discord_remove_reaction"
	ToolSendDM              = "discord_send_dm"
	ToolSendFile            = "discord_send_file"
	ToolCreateChannel       = "discord_create_channel"
	ToolDeleteChannel       = "discord_delete_channel"
	ToolCreateCategory      = "discord_create_category"
	ToolMoveChannel         = "discord_move_channel"
	ToolCreateThread        = "discord_create_thread"
	ToolArchiveThread       = "discord_archive_thread"
	ToolAddRole             = "discord_add_role"
	ToolRemoveRole          = "discord_remove_role"
	ToolCheckMentions       = "discord_check_mentions"
	ToolCheckDMs            = "discord_check_dms"
	ToolGetAttachments      = "discord_get_attachments"
	ToolConversationHistory = "discord_conversation_history"
)

var tools = buildTools()
var byName = indexTools(tools)

// All returns the full catalogue in registration order.
func All() []mcp.Tool {
	return tools
}

func Lookup(name string) (mcp.Tool, bool) {
	t, ok := byName[strings.TrimSpace(name)]
	return t, ok
}

// ValidateArgs rejects a call whose required arguments are missing or
// blank, before any side effect happens.
func ValidateArgs(tool mcp.Tool, args map[string]any) error {
	for _, field := range tool.InputSchema.Required {
		value, ok := args[field]
		if !ok || value == nil {
			return fmt.Errorf("missing required argument %q", field)
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			return fmt.Errorf("required argument %q is empty", field)
		}
	}
	return nil
}

func indexTools(list []mcp.Tool) map[string]mcp.Tool {
	out := make(map[string]mcp.Tool, len(list))
	for _, t := range list {
		out[t.Name] = t
	}
	return out
}

func buildTools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(ToolLoginInfo,
			mcp.WithDescription("Show the bot identity and how many servers it is connected to."),
		),
		mcp.NewTool(ToolListGuilds,
			mcp.WithDescription("List the Discord servers the bot is a member of."),
		),
		mcp.NewTool(ToolListChannels,
			mcp.WithDescription("List the channels of a server, grouped by position."),
			mcp.WithString("guild_id", mcp.Required(), mcp.Description("Server id to list channels for.")),
		),
		mcp.NewTool(ToolChannelInfo,
			mcp.WithDescription("Show name, type, topic and category of a channel."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id.")),
		),
		mcp.NewTool(ToolListRoles,
			mcp.WithDescription("List the roles of a server."),
			mcp.WithString("guild_id", mcp.Required(), mcp.Description("Server id.")),
		),
		mcp.NewTool(ToolUserInfo,
			mcp.WithDescription("Look up a user by id."),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("User id.")),
		),
		mcp.NewTool(ToolSendMessage,
			mcp.WithDescription("Send a message to a channel. The message is recorded in the conversation history."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Target channel id.")),
			mcp.WithString("content", mcp.Required(), mcp.Description("Message text.")),
		),
		mcp.NewTool(ToolReadMessages,
			mcp.WithDescription("Read the most recent messages of a channel in chronological order."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id.")),
			mcp.WithNumber("limit", mcp.Description("How many messages to read, default 20, max 100.")),
		),
		mcp.NewTool(ToolEditMessage,
			mcp.WithDescription("Edit a message previously sent by the bot."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id.")),
			mcp.WithString("message_id", mcp.Required(), mcp.Description("Message id.")),
			mcp.WithString("content", mcp.Required(), mcp.Description("Replacement text.")),
		),
		mcp.NewTool(ToolDeleteMessage,
			mcp.WithDescription("Delete a message."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id.")),
			mcp.WithString("message_id", mcp.Required(), mcp.Description("Message id.")),
		),
		mcp.NewTool(ToolPinMessage,
			mcp.WithDescription("Pin a message to its channel."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id.")),
			mcp.WithString("message_id", mcp.Required(), mcp.Description("Message id.")),
		),
		mcp.NewTool(ToolUnpinMessage,
			mcp.WithDescription("Unpin a message."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id.")),
			mcp.WithString("message_id", mcp.Required(), mcp.Description("Message id.")),
		),
		mcp.NewTool(ToolAddReaction,
			mcp.WithDescription("Add an emoji reaction to a message."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id.")),
			mcp.WithString("message_id", mcp.Required(), mcp.Description("Message id.")),
			mcp.WithString("emoji", mcp.Required(), mcp.Description("Unicode emoji or name:id for custom emoji.")),
		),
		mcp.NewTool(ToolRemoveReaction,
			mcp.WithDescription("Remove the bot's own reaction from a message."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id.")),
			mcp.WithString("message_id", mcp.Required(), mcp.Description("Message id.")),
			mcp.WithString("emoji", mcp.Required(), mcp.Description("Emoji to remove.")),
		),
		mcp.NewTool(ToolSendDM,
			mcp.WithDescription("Send a direct message to a user. Recorded in the conversation history."),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("Recipient user id.")),
			mcp.WithString("content", mcp.Required(), mcp.Description("Message text.")),
		),
		mcp.NewTool(ToolSendFile,
			mcp.WithDescription("Upload a file from the local filesystem to a channel. Only works on the process holding the live connection."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Target channel id.")),
			mcp.WithString("file_path", mcp.Required(), mcp.Description("Path of the file to upload, local to the connected process.")),
			mcp.WithString("message", mcp.Description("Optional text sent with the file.")),
		),
		mcp.NewTool(ToolCreateChannel,
			mcp.WithDescription("Create a text channel."),
			mcp.WithString("guild_id", mcp.Required(), mcp.Description("Server id.")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Channel name.")),
			mcp.WithString("category_id", mcp.Description("Optional parent category id.")),
			mcp.WithString("topic", mcp.Description("Optional channel topic.")),
		),
		mcp.NewTool(ToolDeleteChannel,
			mcp.WithDescription("Delete a channel."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id.")),
		),
		mcp.NewTool(ToolCreateCategory,
			mcp.WithDescription("Create a channel category."),
			mcp.WithString("guild_id", mcp.Required(), mcp.Description("Server id.")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Category name.")),
		),
		mcp.NewTool(ToolMoveChannel,
			mcp.WithDescription("Move a channel into a category."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id.")),
			mcp.WithString("category_id", mcp.Required(), mcp.Description("Destination category id.")),
		),
		mcp.NewTool(ToolCreateThread,
			mcp.WithDescription("Start a thread, optionally attached to a message."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Parent channel id.")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Thread name.")),
			mcp.WithString("message_id", mcp.Description("Optional message to attach the thread to.")),
		),
		mcp.NewTool(ToolArchiveThread,
			mcp.WithDescription("Archive a thread."),
			mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread id.")),
		),
		mcp.NewTool(ToolAddRole,
			mcp.WithDescription("Grant a role to a member."),
			mcp.WithString("guild_id", mcp.Required(), mcp.Description("Server id.")),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("Member user id.")),
			mcp.WithString("role_id", mcp.Required(), mcp.Description("Role id.")),
		),
		mcp.NewTool(ToolRemoveRole,
			mcp.WithDescription("Remove a role from a member."),
			mcp.WithString("guild_id", mcp.Required(), mcp.Description("Server id.")),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("Member user id.")),
			mcp.WithString("role_id", mcp.Required(), mcp.Description("Role id.")),
		),
		mcp.NewTool(ToolCheckMentions,
			mcp.WithDescription("Drain the queue of unanswered mentions received by the live connection."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of mentions to return.")),
		),
		mcp.NewTool(ToolCheckDMs,
			mcp.WithDescription("Drain the queue of unanswered direct messages received by the live connection."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of direct messages to return.")),
		),
		mcp.NewTool(ToolGetAttachments,
			mcp.WithDescription("List the attachments of a message as download locators. Bytes are fetched separately."),
			mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id.")),
			mcp.WithString("message_id", mcp.Required(), mcp.Description("Message id.")),
		),
		mcp.NewTool(ToolConversationHistory,
			mcp.WithDescription("Read the bot's recorded conversation history for a channel or DM."),
			mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Channel id, or dm:<user_id> for a direct conversation.")),
			mcp.WithNumber("limit", mcp.Description("How many entries to return, default 20.")),
		),
	}
}
