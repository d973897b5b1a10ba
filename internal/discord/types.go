package discord

import "time"

type BotInfo struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	GuildCount int    `json:"guild_count"`
}

type GuildInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ChannelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Topic    string `json:"topic,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	Position int    `json:"position"`
}

type RoleInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Color   int    `json:"color"`
	Managed bool   `json:"managed"`
}

type UserInfo struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Bot         bool   `json:"bot"`
}

type MessageInfo struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channel_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Pinned     bool      `json:"pinned"`
}

// AttachmentLocator describes where attachment bytes can be fetched
// from. The gateway only ever ships locators, never the bytes.
type AttachmentLocator struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size"`
}

// InboundEvent is one mention or direct message delivered by the
// platform event stream.
type InboundEvent struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channel_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	DM         bool      `json:"dm"`
}
