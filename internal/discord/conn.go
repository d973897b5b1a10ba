package discord

import "io"

// Conn is the live chat-platform connection as the rest of the bridge
// sees it. Exactly one process holds a real implementation at a time;
// everything else goes through the HTTP gateway of that process.
type Conn interface {
	BotInfo() (BotInfo, error)
	Guilds() ([]GuildInfo, error)
	Channels(guildID string) ([]ChannelInfo, error)
	ChannelInfo(channelID string) (ChannelInfo, error)
	Roles(guildID string) ([]RoleInfo, error)
	UserInfo(userID string) (UserInfo, error)

	SendMessage(channelID, content string) (string, error)
	ReadMessages(channelID string, limit int) ([]MessageInfo, error)
	EditMessage(channelID, messageID, content string) error
	DeleteMessage(channelID, messageID string) error
	PinMessage(channelID, messageID string) error
	UnpinMessage(channelID, messageID string) error
	AddReaction(channelID, messageID, emoji string) error
	RemoveReaction(channelID, messageID, emoji string) error
	SendDM(userID, content string) (channelID, messageID string, err error)
	SendFile(channelID, filename string, r io.Reader, message string) (string, error)

	CreateChannel(guildID, name, parentID, topic string) (ChannelInfo, error)
	DeleteChannel(channelID string) error
	CreateCategory(guildID, name string) (ChannelInfo, error)
	MoveChannel(channelID, parentID string) error
	CreateThread(channelID, messageID, name string) (ChannelInfo, error)
	ArchiveThread(threadID string) error
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error

	Attachments(channelID, messageID string) ([]AttachmentLocator, error)

	// DrainMentions and DrainDMs hand out and clear the in-memory
	// pending queues. Only meaningful on the process that holds the
	// live connection.
	DrainMentions(limit int) []InboundEvent
	DrainDMs(limit int) []InboundEvent
}
