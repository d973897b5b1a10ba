// Package bridge holds the types shared by every execution path: the
// uniform tool call result, and the wire shapes the gateway and proxy
// exchange. Both the local and the proxied path produce the same
// ToolResult shape; callers never see which one ran.
package bridge

import "fmt"

// ToolResult is the single result shape for every tool call. Text is
// always set. Payload carries the structured form for HTTP callers and
// may be nil for plain confirmations.
type ToolResult struct {
	Text    string `json:"text"`
	Payload any    `json:"payload,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

func Textf(format string, args ...any) ToolResult {
	return ToolResult{Text: fmt.Sprintf(format, args...)}
}

func Errorf(format string, args ...any) ToolResult {
	return ToolResult{Text: fmt.Sprintf(format, args...), IsError: true}
}
