// Package proxy executes tool calls against a remote gateway instead
// of a live connection. Each call is one HTTP round trip; the response
// payload is rendered with the same formatters the local path uses, so
// callers cannot tell the two modes apart by the text they get back.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"crabstack.local/projects/crab-bridge/internal/bridge"
	"crabstack.local/projects/crab-bridge/internal/catalog"
	"crabstack.local/projects/crab-bridge/internal/discord"
	"crabstack.local/projects/crab-bridge/internal/ledger"
)

const (
	defaultTimeout     = 30 * time.Second
	maxResponseBytes   = 4 << 20
	maxAttachmentBytes = 25 << 20
	defaultDownloadDir = "downloads"
	downloadDirMode    = 0o755
	attachmentFileMode = 0o644
)

type Client struct {
	logger      *log.Logger
	httpClient  *http.Client
	baseURL     string
	token       string
	downloadDir string
}

type Option func(*Client)

// WithHTTPClient swaps the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDownloadDir sets where fetched attachment bytes are written.
func WithDownloadDir(dir string) Option {
	return func(c *Client) { c.downloadDir = dir }
}

func NewClient(logger *log.Logger, baseURL, token string, opts ...Option) *Client {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	c := &Client{
		logger:      logger,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:       token,
		downloadDir: defaultDownloadDir,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute performs one tool call over HTTP. There are no retries; a
// failed round trip is an error result and the caller decides what to
// do next.
func (c *Client) Execute(ctx context.Context, name string, args map[string]any) bridge.ToolResult {
	// File bytes live on the caller's filesystem and the gateway only
	// accepts JSON, so the upload tool cannot be proxied.
	if name == catalog.ToolSendFile {
		return bridge.Errorf("discord_send_file is only available on the instance holding the live connection; run it there or place the file on that host")
	}

	raw, errResult := c.post(ctx, name, args)
	if errResult != nil {
		return *errResult
	}

	if name == catalog.ToolGetAttachments {
		return c.downloadAttachments(ctx, raw)
	}
	return formatPayload(name, raw)
}

func (c *Client) post(ctx context.Context, name string, args map[string]any) (json.RawMessage, *bridge.ToolResult) {
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		res := bridge.Errorf("encode arguments: %v", err)
		return nil, &res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tools/"+name, bytes.NewReader(body))
	if err != nil {
		res := bridge.Errorf("build request: %v", err)
		return nil, &res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		res := bridge.Errorf("gateway unreachable: %v", err)
		return nil, &res
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		res := bridge.Errorf("read gateway response: %v", err)
		return nil, &res
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res := bridge.Errorf("gateway error (%d): %s", resp.StatusCode, errorMessage(payload, resp.StatusCode))
		return nil, &res
	}
	return payload, nil
}

func errorMessage(body []byte, status int) string {
	var decoded struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error != "" {
		return decoded.Error
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}

// formatPayload decodes the gateway's JSON into the same types the
// local executor returns and renders them with the shared formatters.
func formatPayload(name string, raw json.RawMessage) bridge.ToolResult {
	switch name {
	case catalog.ToolLoginInfo:
		return decodeAs[discord.BotInfo](raw, func(v discord.BotInfo) string { return bridge.FormatBotInfo(v) })
	case catalog.ToolListGuilds:
		return decodeAs[[]discord.GuildInfo](raw, func(v []discord.GuildInfo) string { return bridge.FormatGuilds(v) })
	case catalog.ToolListChannels:
		return decodeAs[[]discord.ChannelInfo](raw, func(v []discord.ChannelInfo) string { return bridge.FormatChannels(v) })
	case catalog.ToolChannelInfo:
		return decodeAs[discord.ChannelInfo](raw, func(v discord.ChannelInfo) string { return bridge.FormatChannel(v) })
	case catalog.ToolListRoles:
		return decodeAs[[]discord.RoleInfo](raw, func(v []discord.RoleInfo) string { return bridge.FormatRoles(v) })
	case catalog.ToolUserInfo:
		return decodeAs[discord.UserInfo](raw, func(v discord.UserInfo) string { return bridge.FormatUser(v) })
	case catalog.ToolSendMessage, catalog.ToolSendDM:
		return decodeAs[bridge.SendResult](raw, func(v bridge.SendResult) string { return bridge.FormatSend(v) })
	case catalog.ToolReadMessages:
		return decodeAs[[]discord.MessageInfo](raw, func(v []discord.MessageInfo) string { return bridge.FormatMessages(v) })
	case catalog.ToolCreateChannel:
		return decodeAs[discord.ChannelInfo](raw, func(v discord.ChannelInfo) string { return "Created " + bridge.FormatChannel(v) })
	case catalog.ToolCreateCategory:
		return decodeAs[discord.ChannelInfo](raw, func(v discord.ChannelInfo) string {
			return fmt.Sprintf("Created category %s (id %s)", v.Name, v.ID)
		})
	case catalog.ToolCreateThread:
		return decodeAs[discord.ChannelInfo](raw, func(v discord.ChannelInfo) string {
			return fmt.Sprintf("Created thread %s (id %s)", v.Name, v.ID)
		})
	case catalog.ToolCheckMentions:
		return decodeAs[[]discord.InboundEvent](raw, func(v []discord.InboundEvent) string { return bridge.FormatEvents("mentions", v) })
	case catalog.ToolCheckDMs:
		return decodeAs[[]discord.InboundEvent](raw, func(v []discord.InboundEvent) string { return bridge.FormatEvents("direct messages", v) })
	case catalog.ToolConversationHistory:
		return decodeAs[[]ledger.Entry](raw, func(v []ledger.Entry) string { return bridge.FormatEntries(v) })
	}

	if verb, ok := opVerbs[name]; ok {
		return decodeAs[bridge.OpResult](raw, func(v bridge.OpResult) string { return bridge.FormatOp(v, verb) })
	}

	// A tool with no formatting rule falls back to the gateway's text.
	var generic struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &generic); err == nil && generic.Text != "" {
		return bridge.ToolResult{Text: generic.Text}
	}
	return bridge.ToolResult{Text: strings.TrimSpace(string(raw))}
}

// opVerbs mirrors the confirmations the local executor produces for
// bare success operations.
var opVerbs = map[string]string{
	catalog.ToolEditMessage:    "edit the message",
	catalog.ToolDeleteMessage:  "delete the message",
	catalog.ToolPinMessage:     "pin the message",
	catalog.ToolUnpinMessage:   "unpin the message",
	catalog.ToolAddReaction:    "add the reaction",
	catalog.ToolRemoveReaction: "remove the reaction",
	catalog.ToolDeleteChannel:  "delete the channel",
	catalog.ToolMoveChannel:    "move the channel",
	catalog.ToolArchiveThread:  "archive the thread",
	catalog.ToolAddRole:        "add the role",
	catalog.ToolRemoveRole:     "remove the role",
}

func decodeAs[T any](raw json.RawMessage, render func(T) string) bridge.ToolResult {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return bridge.Errorf("decode gateway payload: %v", err)
	}
	return bridge.ToolResult{Text: render(v), Payload: v}
}

// downloadAttachments resolves the locator list through the gateway and
// then fetches each URL directly, writing the bytes next to the proxy
// process. Attachment URLs point at the platform CDN, not the gateway.
func (c *Client) downloadAttachments(ctx context.Context, raw json.RawMessage) bridge.ToolResult {
	var locators []discord.AttachmentLocator
	if err := json.Unmarshal(raw, &locators); err != nil {
		return bridge.Errorf("decode gateway payload: %v", err)
	}
	if len(locators) == 0 {
		return bridge.ToolResult{Text: bridge.FormatAttachments(locators), Payload: locators}
	}

	if err := os.MkdirAll(c.downloadDir, downloadDirMode); err != nil {
		return bridge.Errorf("create download dir: %v", err)
	}

	var b strings.Builder
	b.WriteString(bridge.FormatAttachments(locators))
	b.WriteString("\nDownloaded:")
	for _, loc := range locators {
		path, err := c.fetchAttachment(ctx, loc)
		if err != nil {
			c.logger.Printf("attachment download failed file=%s err=%v", loc.Filename, err)
			fmt.Fprintf(&b, "\n  %s: download failed: %v", loc.Filename, err)
			continue
		}
		fmt.Fprintf(&b, "\n  %s", path)
	}
	return bridge.ToolResult{Text: b.String(), Payload: locators}
}

func (c *Client) fetchAttachment(ctx context.Context, loc discord.AttachmentLocator) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	path := filepath.Join(c.downloadDir, filepath.Base(loc.Filename))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, attachmentFileMode)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, io.LimitReader(resp.Body, maxAttachmentBytes)); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}
