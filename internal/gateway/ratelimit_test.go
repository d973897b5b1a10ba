package gateway

import (
	"fmt"
	"testing"
	"time"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(3, time.Minute)
	l.clock = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, remaining, _ := l.Allow("10.0.0.1")
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if remaining != 2-i {
			t.Fatalf("request %d: remaining = %d, want %d", i+1, remaining, 2-i)
		}
	}

	allowed, remaining, resetAt := l.Allow("10.0.0.1")
	if allowed {
		t.Fatal("fourth request in the window must be rejected")
	}
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}
	if got := resetAt.Sub(now); got != time.Minute {
		t.Fatalf("reset offset = %v, want 1m", got)
	}

	now = now.Add(time.Minute)
	if allowed, _, _ := l.Allow("10.0.0.1"); !allowed {
		t.Fatal("new window should start fresh")
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	l := NewRateLimiter(1, time.Minute)

	if allowed, _, _ := l.Allow("a"); !allowed {
		t.Fatal("first client should be allowed")
	}
	if allowed, _, _ := l.Allow("a"); allowed {
		t.Fatal("first client should now be limited")
	}
	if allowed, _, _ := l.Allow("b"); !allowed {
		t.Fatal("second client has its own window")
	}
}

func TestRateLimiterSweepsExpiredWindows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(5, time.Minute)
	l.clock = func() time.Time { return now }

	for i := 0; i < limiterSweepThreshold+10; i++ {
		l.Allow(fmt.Sprintf("client-%d", i))
	}
	now = now.Add(2 * time.Minute)
	l.Allow("fresh")

	l.mu.Lock()
	n := len(l.windows)
	l.mu.Unlock()
	if n > 2 {
		t.Fatalf("expired windows not swept, %d remain", n)
	}
}
