package memctx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeMemoryService struct {
	latestCalls  int
	entriesCalls int
}

func (f *fakeMemoryService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/entries/latest", func(w http.ResponseWriter, r *http.Request) {
		f.latestCalls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(latestResponse{
			Date:            "2026-08-24",
			Title:           "Harbor walk",
			Mood:            "calm",
			CarryingForward: "still thinking about the tide schedule",
		})
	})
	mux.HandleFunc("/v1/entries", func(w http.ResponseWriter, r *http.Request) {
		f.entriesCalls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entriesResponse{Entries: []latestResponse{
			{Date: "2026-08-24", Title: "Harbor walk", Mood: "calm"},
			{Date: "2026-08-23", Title: "Storm day", Mood: "restless"},
		}})
	})
	return mux
}

func TestUnconfiguredCacheIsNoop(t *testing.T) {
	c := New(nil, "", "")
	got, err := c.Context(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CarryingForward != "" || got.RecentSummary != "" {
		t.Fatalf("expected empty context, got %+v", got)
	}
}

func TestSummaryServedOncePerDay(t *testing.T) {
	svc := &fakeMemoryService{}
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	c := New(nil, server.URL, "", WithClock(func() time.Time { return now }))

	first, err := c.Context(context.Background(), false)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.CarryingForward == "" {
		t.Fatal("expected carrying forward on first call")
	}
	if first.RecentSummary == "" {
		t.Fatal("expected recent summary on first call of the day")
	}

	second, err := c.Context(context.Background(), false)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.RecentSummary != "" {
		t.Fatalf("summary must appear at most once per day, got %q", second.RecentSummary)
	}
	if second.CarryingForward != first.CarryingForward {
		t.Fatal("carrying forward should stay cached within the day")
	}
	if svc.latestCalls != 1 {
		t.Fatalf("expected 1 latest fetch within the day, got %d", svc.latestCalls)
	}

	// Advance past midnight: both parts are refreshed.
	now = now.Add(24 * time.Hour)
	third, err := c.Context(context.Background(), false)
	if err != nil {
		t.Fatalf("third call: %v", err)
	}
	if third.RecentSummary == "" {
		t.Fatal("expected summary again after the day boundary")
	}
	if svc.latestCalls != 2 {
		t.Fatalf("expected refetch after boundary, got %d latest calls", svc.latestCalls)
	}
}

func TestForceRefreshRefetchesCarryingForward(t *testing.T) {
	svc := &fakeMemoryService{}
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	c := New(nil, server.URL, "", WithClock(func() time.Time { return now }))

	if _, err := c.Context(context.Background(), false); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := c.Context(context.Background(), true); err != nil {
		t.Fatalf("forced call: %v", err)
	}
	if svc.latestCalls != 2 {
		t.Fatalf("expected forced refetch, got %d latest calls", svc.latestCalls)
	}
}

func TestServiceErrorKeepsCachedCarryingForward(t *testing.T) {
	svc := &fakeMemoryService{}
	server := httptest.NewServer(svc.handler())

	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	c := New(nil, server.URL, "", WithClock(func() time.Time { return now }))

	first, err := c.Context(context.Background(), false)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}

	server.Close()
	now = now.Add(24 * time.Hour)

	got, err := c.Context(context.Background(), false)
	if err == nil {
		t.Fatal("expected error with service down")
	}
	if got.CarryingForward != first.CarryingForward {
		t.Fatalf("expected cached carrying forward on failure, got %q", got.CarryingForward)
	}
}

func TestCondense(t *testing.T) {
	got := condense([]latestResponse{
		{Date: "2026-08-24", Title: "Harbor walk", Mood: "calm"},
		{Date: "2026-08-23", Title: "Storm day"},
	})
	want := "- 2026-08-24 Harbor walk (calm)\n- 2026-08-23 Storm day"
	if got != want {
		t.Fatalf("unexpected summary:\n%q\nwant\n%q", got, want)
	}
}
