// Package memctx is a read-through cache over the external long-term
// memory service. It supplies the carrying-forward line injected into
// every reply and, once per calendar day, a condensed summary of the
// most recent entries.
package memctx

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	summaryEntries = 5
	clientTimeout  = 10 * time.Second
	dayFormat      = "2006-01-02"
)

// MemoryContext is derived state, recomputed on day boundaries and
// never persisted.
type MemoryContext struct {
	CarryingForward string
	RecentSummary   string
}

type latestResponse struct {
	Date            string `json:"date"`
	Title           string `json:"title"`
	Mood            string `json:"mood"`
	CarryingForward string `json:"carrying_forward"`
}

type entriesResponse struct {
	Entries []latestResponse `json:"entries"`
}

type Option func(*Cache)

// WithClock replaces the wall clock, used by tests to simulate day
// boundaries.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

type Cache struct {
	logger *log.Logger
	client *resty.Client
	clock  func() time.Time

	mu        sync.Mutex
	fetchedOn string
	carrying  string
	summaryOn string
}

// New builds the cache. An empty baseURL puts it into degraded mode:
// every Context call returns an empty MemoryContext and no error.
func New(logger *log.Logger, baseURL, token string, opts ...Option) *Cache {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	c := &Cache{
		logger: logger,
		clock:  time.Now,
	}

	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL != "" {
		client := resty.New()
		client.SetBaseURL(baseURL)
		client.SetTimeout(clientTimeout)
		if strings.TrimSpace(token) != "" {
			client.SetAuthToken(token)
		}
		c.client = client
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Context returns the memory context for the current day. The carrying
// forward field is fetched once per day and cached; the recent summary
// is included at most once per day, on the first call after the
// boundary.
func (c *Cache) Context(ctx context.Context, forceRefresh bool) (MemoryContext, error) {
	if c.client == nil {
		return MemoryContext{}, nil
	}

	today := c.clock().UTC().Format(dayFormat)

	c.mu.Lock()
	needFetch := forceRefresh || c.fetchedOn != today
	needSummary := c.summaryOn != today
	cached := c.carrying
	c.mu.Unlock()

	out := MemoryContext{CarryingForward: cached}

	if needFetch {
		latest, err := c.fetchLatest(ctx)
		if err != nil {
			return out, err
		}
		c.mu.Lock()
		c.carrying = latest.CarryingForward
		c.fetchedOn = today
		c.mu.Unlock()
		out.CarryingForward = latest.CarryingForward
	}

	if needSummary {
		summary, err := c.fetchSummary(ctx)
		if err != nil {
			return out, err
		}
		c.mu.Lock()
		c.summaryOn = today
		c.mu.Unlock()
		out.RecentSummary = summary
	}

	return out, nil
}

func (c *Cache) fetchLatest(ctx context.Context) (latestResponse, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&latestResponse{}).
		Get("/v1/entries/latest")
	if err != nil {
		return latestResponse{}, fmt.Errorf("fetch latest memory entry: %w", err)
	}
	if resp.IsError() {
		return latestResponse{}, fmt.Errorf("memory service returned %s", resp.Status())
	}
	parsed, ok := resp.Result().(*latestResponse)
	if !ok || parsed == nil {
		return latestResponse{}, fmt.Errorf("unexpected latest entry response")
	}
	return *parsed, nil
}

func (c *Cache) fetchSummary(ctx context.Context) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", summaryEntries)).
		SetResult(&entriesResponse{}).
		Get("/v1/entries")
	if err != nil {
		return "", fmt.Errorf("fetch recent memory entries: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("memory service returned %s", resp.Status())
	}
	parsed, ok := resp.Result().(*entriesResponse)
	if !ok || parsed == nil {
		return "", fmt.Errorf("unexpected entries response")
	}
	return condense(parsed.Entries), nil
}

// condense keeps the summary short: dates, titles and moods only, no
// narrative.
func condense(entries []latestResponse) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range entries {
		line := "- " + strings.TrimSpace(e.Date)
		if title := strings.TrimSpace(e.Title); title != "" {
			line += " " + title
		}
		if mood := strings.TrimSpace(e.Mood); mood != "" {
			line += " (" + mood + ")"
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
