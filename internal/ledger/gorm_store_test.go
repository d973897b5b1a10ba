package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestGormStoreSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	store, err := NewGormStore("sqlite", dbPath)
	if err != nil {
		t.Fatalf("new gorm store: %v", err)
	}

	ctx := context.Background()
	entries := []Entry{
		{ID: "e1", Role: RoleUser, Content: "hello", AuthorName: "alice", AuthorID: "u1", CreatedAt: time.Now().UTC()},
		{ID: "e2", Role: RoleAssistant, Content: "hi there", CreatedAt: time.Now().UTC()},
	}
	for _, e := range entries {
		if err := store.SaveEntry(ctx, "chan-1", e); err != nil {
			t.Fatalf("save entry %s: %v", e.ID, err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := NewGormStore("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	loaded, err := reopened.LoadRecent(ctx, 100)
	if err != nil {
		t.Fatalf("load recent: %v", err)
	}
	got := loaded["chan-1"]
	if len(got) != 2 {
		t.Fatalf("expected 2 entries after reopen, got %d", len(got))
	}
	if got[0].ID != "e1" || got[1].ID != "e2" {
		t.Fatalf("entries out of order: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].AuthorName != "alice" {
		t.Fatalf("lost author name: %+v", got[0])
	}
}

func TestGormStoreLoadRecentCapsPerConversation(t *testing.T) {
	store, err := NewGormStore("sqlite", filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("new gorm store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		e := Entry{ID: "e" + string(rune('0'+i)), Role: RoleUser, Content: "m", CreatedAt: time.Now().UTC()}
		if err := store.SaveEntry(ctx, "chan-1", e); err != nil {
			t.Fatalf("save entry: %v", err)
		}
	}

	loaded, err := store.LoadRecent(ctx, 4)
	if err != nil {
		t.Fatalf("load recent: %v", err)
	}
	if len(loaded["chan-1"]) != 4 {
		t.Fatalf("expected cap of 4, got %d", len(loaded["chan-1"]))
	}
	if loaded["chan-1"][0].ID != "e2" {
		t.Fatalf("expected oldest retained e2, got %s", loaded["chan-1"][0].ID)
	}
}
