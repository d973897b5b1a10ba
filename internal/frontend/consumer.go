// Package frontend turns inbound mentions and direct messages into
// replies. It is the event-driven counterpart to the tool surface:
// same ledger, same dispatcher, no polling.
package frontend

import (
	"context"
	"io"
	"log"
	"strings"

	"crabstack.local/projects/crab-bridge/internal/catalog"
	"crabstack.local/projects/crab-bridge/internal/discord"
	"crabstack.local/projects/crab-bridge/internal/dispatch"
	"crabstack.local/projects/crab-bridge/internal/ledger"
	"crabstack.local/projects/crab-bridge/internal/memctx"
	"crabstack.local/projects/crab-bridge/internal/model"
)

const (
	historyWindow = 20
	apologyText   = "Sorry, I couldn't put a reply together just now. Please try again in a bit."
)

type Consumer struct {
	logger     *log.Logger
	events     <-chan discord.InboundEvent
	ledger     *ledger.Ledger
	memory     *memctx.Cache
	provider   model.Provider
	dispatcher *dispatch.Dispatcher

	modelName   string
	persona     string
	ownerUserID string
}

type Options struct {
	ModelName   string
	Persona     string
	OwnerUserID string
}

func NewConsumer(
	logger *log.Logger,
	events <-chan discord.InboundEvent,
	led *ledger.Ledger,
	memory *memctx.Cache,
	provider model.Provider,
	dispatcher *dispatch.Dispatcher,
	opts Options,
) *Consumer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Consumer{
		logger:      logger,
		events:      events,
		ledger:      led,
		memory:      memory,
		provider:    provider,
		dispatcher:  dispatcher,
		modelName:   opts.ModelName,
		persona:     opts.Persona,
		ownerUserID: strings.TrimSpace(opts.OwnerUserID),
	}
}

// Run consumes events until the context is cancelled or the event
// stream closes. One event is handled at a time; replies to a busy
// channel queue up behind each other rather than interleave.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.events:
			if !ok {
				return
			}
			c.handle(ctx, event)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, event discord.InboundEvent) {
	if c.ownerUserID != "" && event.AuthorID != c.ownerUserID {
		c.logger.Printf("ignoring event from non-owner author=%s", event.AuthorID)
		return
	}

	conversationID := event.ChannelID
	if event.DM {
		conversationID = "dm:" + event.AuthorID
	}

	if err := c.ledger.Append(ctx, conversationID, ledger.Entry{
		Role:       ledger.RoleUser,
		Content:    event.Content,
		AuthorID:   event.AuthorID,
		AuthorName: event.AuthorName,
	}); err != nil {
		c.logger.Printf("ledger append failed conversation=%s err=%v", conversationID, err)
	}

	reply, err := c.draftReply(ctx, conversationID)
	if err != nil {
		c.logger.Printf("reply generation failed conversation=%s err=%v", conversationID, err)
		reply = apologyText
	}

	c.deliver(ctx, event, reply)
}

func (c *Consumer) draftReply(ctx context.Context, conversationID string) (string, error) {
	// Memory being unreachable degrades the reply, it does not block it.
	mem, err := c.memory.Context(ctx, false)
	if err != nil {
		c.logger.Printf("memory context unavailable err=%v", err)
	}

	messages := toModelMessages(c.ledger.Recent(conversationID, historyWindow))

	resp, err := c.provider.Complete(ctx, model.CompletionRequest{
		Model:        c.modelName,
		SystemPrompt: c.systemPrompt(mem),
		Messages:     messages,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// deliver goes through the dispatcher rather than the connection
// directly, so the assistant entry is recorded by the same path tool
// callers use.
func (c *Consumer) deliver(ctx context.Context, event discord.InboundEvent, reply string) {
	tool := catalog.ToolSendMessage
	args := map[string]any{"channel_id": event.ChannelID, "content": reply}
	if event.DM {
		tool = catalog.ToolSendDM
		args = map[string]any{"user_id": event.AuthorID, "content": reply}
	}

	result := c.dispatcher.Execute(ctx, tool, args)
	if result.IsError {
		c.logger.Printf("reply delivery failed channel=%s err=%s", event.ChannelID, result.Text)
	}
}

func (c *Consumer) systemPrompt(mem memctx.MemoryContext) string {
	parts := make([]string, 0, 3)
	if strings.TrimSpace(c.persona) != "" {
		parts = append(parts, strings.TrimSpace(c.persona))
	}
	if strings.TrimSpace(mem.CarryingForward) != "" {
		parts = append(parts, "Carrying forward from yesterday: "+mem.CarryingForward)
	}
	if strings.TrimSpace(mem.RecentSummary) != "" {
		parts = append(parts, "Recent days:\n"+mem.RecentSummary)
	}
	return strings.Join(parts, "\n\n")
}

func toModelMessages(entries []ledger.Entry) []model.Message {
	messages := make([]model.Message, 0, len(entries))
	for _, e := range entries {
		role := model.RoleUser
		if e.Role == ledger.RoleAssistant {
			role = model.RoleAssistant
		}
		content := e.Content
		if role == model.RoleUser && e.AuthorName != "" {
			content = e.AuthorName + ": " + e.Content
		}
		messages = append(messages, model.Message{Role: role, Content: content})
	}
	return messages
}
