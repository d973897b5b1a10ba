// Package gateway is the network-facing surface of a connected
// instance. Every route except the health check goes through rate
// limiting, then bearer authentication, then the local executor.
package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"crabstack.local/projects/crab-bridge/internal/catalog"
	"crabstack.local/projects/crab-bridge/internal/dispatch"
	"crabstack.local/projects/crab-bridge/internal/ids"
)

const maxToolRequestBytes int64 = 1 << 20

type server struct {
	logger  *log.Logger
	exec    dispatch.Executor
	secret  string
	limiter *RateLimiter
}

// NewServer builds the gateway http.Server. exec is always the local
// executor; a proxy-mode process never runs a gateway.
func NewServer(logger *log.Logger, addr string, exec dispatch.Executor, secret string, limiter *RateLimiter) *http.Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &server{
		logger:  logger,
		exec:    exec,
		secret:  secret,
		limiter: limiter,
	}

	return &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/tools", s.protect(s.handleDiscovery))
	mux.HandleFunc("/v1/tools/", s.protect(s.handleToolCall))
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// protect applies the two ordered gate stages. The rate-limit headers
// are set on every response, allowed or not.
func (s *server) protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetAt := s.limiter.Allow(clientIdentity(r))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if !allowed {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate limit exceeded"})
			return
		}

		header := strings.TrimSpace(r.Header.Get("Authorization"))
		const prefix = "Bearer "
		if header == "" || !strings.HasPrefix(header, prefix) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing or malformed authorization header"})
			return
		}
		if !tokenMatches(header[len(prefix):], s.secret) {
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "invalid token"})
			return
		}

		next(w, r)
	}
}

type discoveredTool struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	InputSchema mcp.ToolInputSchema `json:"input_schema"`
}

func (s *server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := catalog.All()
	tools := make([]discoveredTool, 0, len(all))
	for _, t := range all {
		tools = append(tools, discoveredTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (s *server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/v1/tools/")
	tool, ok := catalog.Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown tool: " + name})
		return
	}

	defer r.Body.Close()
	args := map[string]any{}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxToolRequestBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "read body failed"})
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json: " + err.Error()})
			return
		}
	}

	if err := catalog.ValidateArgs(tool, args); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	requestID := ids.New()
	s.logger.Printf("tool call request=%s tool=%s client=%s", requestID, name, clientIdentity(r))

	result := s.exec.Execute(r.Context(), name, args)
	if result.IsError {
		s.logger.Printf("tool call failed request=%s tool=%s err=%s", requestID, name, result.Text)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": result.Text})
		return
	}
	if result.Payload != nil {
		writeJSON(w, http.StatusOK, result.Payload)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": result.Text})
}

// tokenMatches hashes both sides before the constant-time compare so
// the comparison length never depends on the secret.
func tokenMatches(token, secret string) bool {
	a := sha256.Sum256([]byte(token))
	b := sha256.Sum256([]byte(secret))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

func clientIdentity(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
