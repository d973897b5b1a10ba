// Package dispatch routes every tool call to exactly one executor.
// Callers always get a structured result back, never a panic or an
// error value; the result shape is identical in both execution modes.
package dispatch

import (
	"context"
	"io"
	"log"

	"crabstack.local/projects/crab-bridge/internal/bridge"
	"crabstack.local/projects/crab-bridge/internal/catalog"
)

// Executor performs one tool call. Local and proxy executors are the
// two implementations; the binding is chosen once at construction.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) bridge.ToolResult
}

type Dispatcher struct {
	logger     *log.Logger
	exec       Executor
	remoteMode bool
}

func New(logger *log.Logger, exec Executor, remoteMode bool) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Dispatcher{
		logger:     logger,
		exec:       exec,
		remoteMode: remoteMode,
	}
}

// Execute validates and routes one call. Validation failures and
// unknown tools never reach the executor.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]any) (result bridge.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("tool handler panic tool=%s err=%v", name, r)
			result = bridge.Errorf("internal error executing %s", name)
		}
	}()

	tool, ok := catalog.Lookup(name)
	if !ok {
		return bridge.Errorf("unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := catalog.ValidateArgs(tool, args); err != nil {
		return bridge.Errorf("invalid arguments for %s: %v", name, err)
	}

	// The pending queues exist only in the memory of the process that
	// holds the live connection; a proxy has nothing to report.
	if d.remoteMode && (name == catalog.ToolCheckMentions || name == catalog.ToolCheckDMs) {
		return bridge.Textf("Pending queues live on the connected instance; mentions and DMs are answered there as they arrive.")
	}

	return d.exec.Execute(ctx, name, args)
}
