package discord

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var ErrNotConnected = fmt.Errorf("discord session not connected")

func (s *Session) conn() (*discordgo.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrNotConnected
	}
	return s.session, nil
}

func (s *Session) BotInfo() (BotInfo, error) {
	dg, err := s.conn()
	if err != nil {
		return BotInfo{}, err
	}
	if dg.State.User == nil {
		return BotInfo{}, fmt.Errorf("bot identity not available yet")
	}
	return BotInfo{
		UserID:     dg.State.User.ID,
		Username:   dg.State.User.Username,
		GuildCount: len(dg.State.Guilds),
	}, nil
}

func (s *Session) Guilds() ([]GuildInfo, error) {
	dg, err := s.conn()
	if err != nil {
		return nil, err
	}

	guilds := make([]GuildInfo, 0, len(dg.State.Guilds))
	for _, g := range dg.State.Guilds {
		if g == nil {
			continue
		}
		guilds = append(guilds, GuildInfo{ID: g.ID, Name: g.Name})
	}
	sort.Slice(guilds, func(i, j int) bool { return guilds[i].Name < guilds[j].Name })
	return guilds, nil
}

func (s *Session) Channels(guildID string) ([]ChannelInfo, error) {
	dg, err := s.conn()
	if err != nil {
		return nil, err
	}

	raw, err := dg.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	channels := make([]ChannelInfo, 0, len(raw))
	for _, ch := range raw {
		if ch == nil {
			continue
		}
		channels = append(channels, channelInfo(ch))
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Position < channels[j].Position })
	return channels, nil
}

func (s *Session) ChannelInfo(channelID string) (ChannelInfo, error) {
	dg, err := s.conn()
	if err != nil {
		return ChannelInfo{}, err
	}
	ch, err := dg.Channel(channelID)
	if err != nil {
		return ChannelInfo{}, fmt.Errorf("get channel: %w", err)
	}
	return channelInfo(ch), nil
}

func (s *Session) Roles(guildID string) ([]RoleInfo, error) {
	dg, err := s.conn()
	if err != nil {
		return nil, err
	}
	raw, err := dg.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	roles := make([]RoleInfo, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		roles = append(roles, RoleInfo{ID: r.ID, Name: r.Name, Color: r.Color, Managed: r.Managed})
	}
	return roles, nil
}

func (s *Session) UserInfo(userID string) (UserInfo, error) {
	dg, err := s.conn()
	if err != nil {
		return UserInfo{}, err
	}
	u, err := dg.User(userID)
	if err != nil {
		return UserInfo{}, fmt.Errorf("get user: %w", err)
	}
	return UserInfo{ID: u.ID, Username: u.Username, DisplayName: u.GlobalName, Bot: u.Bot}, nil
}

func (s *Session) SendMessage(channelID, content string) (string, error) {
	dg, err := s.conn()
	if err != nil {
		return "", err
	}
	msg, err := dg.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return msg.ID, nil
}

func (s *Session) ReadMessages(channelID string, limit int) ([]MessageInfo, error) {
	dg, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = readDefault
	}
	if limit > readMax {
		limit = readMax
	}

	raw, err := dg.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	// Discord returns newest first; callers expect chronological order.
	messages := make([]MessageInfo, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		m := raw[i]
		if m == nil || m.Author == nil {
			continue
		}
		messages = append(messages, MessageInfo{
			ID:         m.ID,
			ChannelID:  m.ChannelID,
			AuthorID:   m.Author.ID,
			AuthorName: displayName(m.Author),
			Content:    m.Content,
			Timestamp:  messageTime(m.Timestamp),
			Pinned:     m.Pinned,
		})
	}
	return messages, nil
}

func (s *Session) EditMessage(channelID, messageID, content string) error {
	dg, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := dg.ChannelMessageEdit(channelID, messageID, content); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (s *Session) DeleteMessage(channelID, messageID string) error {
	dg, err := s.conn()
	if err != nil {
		return err
	}
	if err := dg.ChannelMessageDelete(channelID, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *Session) PinMessage(channelID, messageID string) error {
	dg, err := s.conn()
	if err != nil {
		return err
	}
	if err := dg.ChannelMessagePin(channelID, messageID); err != nil {
		return fmt.Errorf("pin message: %w", err)
	}
	return nil
}

func (s *Session) UnpinMessage(channelID, messageID string) error {
	dg, err := s.conn()
	if err != nil {
		return err
	}
	if err := dg.ChannelMessageUnpin(channelID, messageID); err != nil {
		return fmt.Errorf("unpin message: %w", err)
	}
	return nil
}

func (s *Session) AddReaction(channelID, messageID, emoji string) error {
	dg, err := s.conn()
	if err != nil {
		return err
	}
	if err := dg.MessageReactionAdd(channelID, messageID, emoji); err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	return nil
}

func (s *Session) RemoveReaction(channelID, messageID, emoji string) error {
	dg, err := s.conn()
	if err != nil {
		return err
	}
	if err := dg.MessageReactionRemove(channelID, messageID, emoji, "@me"); err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	return nil
}

func (s *Session) SendDM(userID, content string) (string, string, error) {
	dg, err := s.conn()
	if err != nil {
		return "", "", err
	}
	ch, err := dg.UserChannelCreate(userID)
	if err != nil {
		return "", "", fmt.Errorf("open dm channel: %w", err)
	}
	msg, err := dg.ChannelMessageSend(ch.ID, content)
	if err != nil {
		return "", "", fmt.Errorf("send dm: %w", err)
	}
	return ch.ID, msg.ID, nil
}

func (s *Session) SendFile(channelID, filename string, r io.Reader, message string) (string, error) {
	dg, err := s.conn()
	if err != nil {
		return "", err
	}
	msg, err := dg.ChannelFileSendWithMessage(channelID, message, filename, r)
	if err != nil {
		return "", fmt.Errorf("send file: %w", err)
	}
	return msg.ID, nil
}

func (s *Session) CreateChannel(guildID, name, parentID, topic string) (ChannelInfo, error) {
	dg, err := s.conn()
	if err != nil {
		return ChannelInfo{}, err
	}
	ch, err := dg.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		Topic:    topic,
		ParentID: parentID,
	})
	if err != nil {
		return ChannelInfo{}, fmt.Errorf("create channel: %w", err)
	}
	return channelInfo(ch), nil
}

func (s *Session) DeleteChannel(channelID string) error {
	dg, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := dg.ChannelDelete(channelID); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

func (s *Session) CreateCategory(guildID, name string) (ChannelInfo, error) {
	dg, err := s.conn()
	if err != nil {
		return ChannelInfo{}, err
	}
	ch, err := dg.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildCategory,
	})
	if err != nil {
		return ChannelInfo{}, fmt.Errorf("create category: %w", err)
	}
	return channelInfo(ch), nil
}

func (s *Session) MoveChannel(channelID, parentID string) error {
	dg, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := dg.ChannelEditComplex(channelID, &discordgo.ChannelEdit{ParentID: parentID}); err != nil {
		return fmt.Errorf("move channel: %w", err)
	}
	return nil
}

func (s *Session) CreateThread(channelID, messageID, name string) (ChannelInfo, error) {
	dg, err := s.conn()
	if err != nil {
		return ChannelInfo{}, err
	}

	var ch *discordgo.Channel
	if strings.TrimSpace(messageID) != "" {
		ch, err = dg.MessageThreadStart(channelID, messageID, name, 60)
	} else {
		ch, err = dg.ThreadStart(channelID, name, discordgo.ChannelTypeGuildPublicThread, 60)
	}
	if err != nil {
		return ChannelInfo{}, fmt.Errorf("create thread: %w", err)
	}
	return channelInfo(ch), nil
}

func (s *Session) ArchiveThread(threadID string) error {
	dg, err := s.conn()
	if err != nil {
		return err
	}
	archived := true
	if _, err := dg.ChannelEditComplex(threadID, &discordgo.ChannelEdit{Archived: &archived}); err != nil {
		return fmt.Errorf("archive thread: %w", err)
	}
	return nil
}

func (s *Session) AddRole(guildID, userID, roleID string) error {
	dg, err := s.conn()
	if err != nil {
		return err
	}
	if err := dg.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
		return fmt.Errorf("add role: %w", err)
	}
	return nil
}

func (s *Session) RemoveRole(guildID, userID, roleID string) error {
	dg, err := s.conn()
	if err != nil {
		return err
	}
	if err := dg.GuildMemberRoleRemove(guildID, userID, roleID); err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	return nil
}

func (s *Session) Attachments(channelID, messageID string) ([]AttachmentLocator, error) {
	dg, err := s.conn()
	if err != nil {
		return nil, err
	}
	msg, err := dg.ChannelMessage(channelID, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}

	locators := make([]AttachmentLocator, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		if a == nil {
			continue
		}
		locators = append(locators, AttachmentLocator{
			ID:          a.ID,
			Filename:    a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return locators, nil
}

func channelInfo(ch *discordgo.Channel) ChannelInfo {
	if ch == nil {
		return ChannelInfo{}
	}
	return ChannelInfo{
		ID:       ch.ID,
		Name:     ch.Name,
		Type:     channelTypeName(ch.Type),
		Topic:    ch.Topic,
		ParentID: ch.ParentID,
		Position: ch.Position,
	}
}

func channelTypeName(t discordgo.ChannelType) string {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return "text"
	case discordgo.ChannelTypeDM:
		return "dm"
	case discordgo.ChannelTypeGuildVoice:
		return "voice"
	case discordgo.ChannelTypeGuildCategory:
		return "category"
	case discordgo.ChannelTypeGuildNews:
		return "news"
	case discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread, discordgo.ChannelTypeGuildNewsThread:
		return "thread"
	case discordgo.ChannelTypeGuildForum:
		return "forum"
	default:
		return fmt.Sprintf("type_%d", int(t))
	}
}
