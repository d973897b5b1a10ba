// Package ledger is the append-only per-conversation message history.
// Appends go through durable storage synchronously; reads are served
// from an in-memory mirror and never touch disk.
package ledger

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	mirrorCap     = 1000
	defaultRecent = 20
)

// Entry is one immutable conversation message.
type Entry struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	AuthorName string    `json:"author_name,omitempty"`
	AuthorID   string    `json:"author_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the durable side of the ledger.
type Store interface {
	SaveEntry(ctx context.Context, conversationID string, entry Entry) error
	LoadRecent(ctx context.Context, perConversation int) (map[string][]Entry, error)
	Close() error
}

type Ledger struct {
	logger *log.Logger
	store  Store

	mu     sync.Mutex
	mirror map[string][]Entry
}

// New loads the mirror from the store so Recent can serve without I/O
// from the first call on.
func New(logger *log.Logger, store Store) (*Ledger, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}

	mirror, err := store.LoadRecent(context.Background(), mirrorCap)
	if err != nil {
		return nil, fmt.Errorf("load ledger mirror: %w", err)
	}
	if mirror == nil {
		mirror = make(map[string][]Entry)
	}

	return &Ledger{logger: logger, store: store, mirror: mirror}, nil
}

// Append persists the entry, then updates the mirror. The mirror is
// only updated after a successful write, so a crash loses at most the
// in-flight append.
func (l *Ledger) Append(ctx context.Context, conversationID string, entry Entry) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return fmt.Errorf("conversation id is required")
	}
	if entry.Role != RoleUser && entry.Role != RoleAssistant {
		return fmt.Errorf("unsupported role %q", entry.Role)
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := l.store.SaveEntry(ctx, conversationID, entry); err != nil {
		return fmt.Errorf("persist ledger entry: %w", err)
	}

	l.mu.Lock()
	entries := append(l.mirror[conversationID], entry)
	if len(entries) > mirrorCap {
		entries = append([]Entry(nil), entries[len(entries)-mirrorCap:]...)
	}
	l.mirror[conversationID] = entries
	l.mu.Unlock()
	return nil
}

// Recent returns the most recent entries in chronological order. It
// reads only the mirror.
func (l *Ledger) Recent(conversationID string, limit int) []Entry {
	if limit <= 0 {
		limit = defaultRecent
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.mirror[conversationID]
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]Entry(nil), entries...)
}

func (l *Ledger) Close() error {
	return l.store.Close()
}
