package bridge

import (
	"fmt"
	"strings"

	"crabstack.local/projects/crab-bridge/internal/discord"
	"crabstack.local/projects/crab-bridge/internal/ledger"
)

// OpResult is the wire shape for tools whose only outcome is done or
// not done.
type OpResult struct {
	Success bool `json:"success"`
}

// SendResult is the wire shape for message-producing tools.
type SendResult struct {
	Success   bool   `json:"success"`
	ChannelID string `json:"channel_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

const timeLayout = "2006-01-02 15:04"

func FormatBotInfo(info discord.BotInfo) string {
	return fmt.Sprintf("Logged in as %s (id %s), connected to %d servers", info.Username, info.UserID, info.GuildCount)
}

func FormatGuilds(guilds []discord.GuildInfo) string {
	if len(guilds) == 0 {
		return "Not a member of any server"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d servers:\n", len(guilds))
	for _, g := range guilds {
		fmt.Fprintf(&b, "  %s (id %s)\n", g.Name, g.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatChannels renders categories with their channels indented under
// them, uncategorized channels last.
func FormatChannels(channels []discord.ChannelInfo) string {
	if len(channels) == 0 {
		return "No channels"
	}

	children := make(map[string][]discord.ChannelInfo)
	var categories, orphans []discord.ChannelInfo
	for _, ch := range channels {
		switch {
		case ch.Type == "category":
			categories = append(categories, ch)
		case ch.ParentID != "":
			children[ch.ParentID] = append(children[ch.ParentID], ch)
		default:
			orphans = append(orphans, ch)
		}
	}

	var b strings.Builder
	for _, cat := range categories {
		fmt.Fprintf(&b, "%s\n", cat.Name)
		for _, ch := range children[cat.ID] {
			fmt.Fprintf(&b, "  #%s (%s, id %s)\n", ch.Name, ch.Type, ch.ID)
		}
	}
	for _, ch := range orphans {
		fmt.Fprintf(&b, "#%s (%s, id %s)\n", ch.Name, ch.Type, ch.ID)
	}
	// Channels whose category was not in the listing still show up.
	for parent, chs := range children {
		known := false
		for _, cat := range categories {
			if cat.ID == parent {
				known = true
				break
			}
		}
		if known {
			continue
		}
		for _, ch := range chs {
			fmt.Fprintf(&b, "#%s (%s, id %s)\n", ch.Name, ch.Type, ch.ID)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatChannel(ch discord.ChannelInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%s (%s, id %s)", ch.Name, ch.Type, ch.ID)
	if ch.Topic != "" {
		fmt.Fprintf(&b, "\nTopic: %s", ch.Topic)
	}
	if ch.ParentID != "" {
		fmt.Fprintf(&b, "\nCategory: %s", ch.ParentID)
	}
	return b.String()
}

func FormatRoles(roles []discord.RoleInfo) string {
	if len(roles) == 0 {
		return "No roles"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d roles:\n", len(roles))
	for _, r := range roles {
		line := fmt.Sprintf("  %s (id %s)", r.Name, r.ID)
		if r.Managed {
			line += " [managed]"
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatUser(u discord.UserInfo) string {
	name := u.Username
	if u.DisplayName != "" && u.DisplayName != u.Username {
		name = fmt.Sprintf("%s (%s)", u.DisplayName, u.Username)
	}
	if u.Bot {
		name += " [bot]"
	}
	return fmt.Sprintf("%s, id %s", name, u.ID)
}

func FormatMessages(messages []discord.MessageInfo) string {
	if len(messages) == 0 {
		return "No messages"
	}
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp.UTC().Format(timeLayout), m.AuthorName, m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatEvents(kind string, events []discord.InboundEvent) string {
	if len(events) == 0 {
		return fmt.Sprintf("No pending %s", kind)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d pending %s:\n", len(events), kind)
	for _, e := range events {
		fmt.Fprintf(&b, "  [%s] %s in %s: %s\n", e.Timestamp.UTC().Format(timeLayout), e.AuthorName, e.ChannelID, e.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatAttachments(locators []discord.AttachmentLocator) string {
	if len(locators) == 0 {
		return "No attachments"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d attachments:\n", len(locators))
	for _, a := range locators {
		fmt.Fprintf(&b, "  %s (%s, %d bytes)\n    %s\n", a.Filename, orUnknown(a.ContentType), a.Size, a.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatEntries(entries []ledger.Entry) string {
	if len(entries) == 0 {
		return "No recorded history"
	}
	var b strings.Builder
	for _, e := range entries {
		who := e.Role
		if e.AuthorName != "" {
			who = e.AuthorName
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.CreatedAt.UTC().Format(timeLayout), who, e.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatSend(res SendResult) string {
	if !res.Success {
		return "Message was not sent"
	}
	return fmt.Sprintf("Message sent (id %s)", res.MessageID)
}

// FormatOp turns a bare success flag into a short confirmation, e.g.
// "Done: pin the message".
func FormatOp(res OpResult, verb string) string {
	if !res.Success {
		return fmt.Sprintf("Failed to %s", verb)
	}
	return fmt.Sprintf("Done: %s", verb)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown type"
	}
	return s
}
