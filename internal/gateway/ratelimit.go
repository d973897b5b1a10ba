package gateway

import (
	"sync"
	"time"
)

const limiterSweepThreshold = 256

// RateLimiter is a fixed-window counter per client identity. It is the
// one piece of shared state hit by concurrent requests, so it carries
// its own lock.
type RateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]*rateWindow
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clock:   time.Now,
		windows: make(map[string]*rateWindow),
	}
}

// Allow counts one request for id. It reports whether the request fits
// in the current window, plus the remaining quota and the reset time
// for the response headers, which are emitted on every request.
func (l *RateLimiter) Allow(id string) (bool, int, time.Time) {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[id]
	if !ok || !now.Before(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(l.window)}
		l.windows[id] = w
	}

	if len(l.windows) > limiterSweepThreshold {
		l.sweepLocked(now)
	}

	if w.count >= l.limit {
		return false, 0, w.resetAt
	}
	w.count++
	return true, l.limit - w.count, w.resetAt
}

func (l *RateLimiter) sweepLocked(now time.Time) {
	for id, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, id)
		}
	}
}
