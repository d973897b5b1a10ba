// Package mcpserver exposes the tool catalogue over the Model Context
// Protocol on stdio. It is a thin shell: every handler forwards to the
// dispatcher and converts the result.
package mcpserver

import (
	"context"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"crabstack.local/projects/crab-bridge/internal/catalog"
	"crabstack.local/projects/crab-bridge/internal/dispatch"
)

const (
	serverName    = "crab-bridge"
	serverVersion = "1.0.0"
)

type Server struct {
	logger     *log.Logger
	dispatcher *dispatch.Dispatcher
	mcp        *server.MCPServer
}

func New(logger *log.Logger, dispatcher *dispatch.Dispatcher) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		logger:     logger,
		dispatcher: dispatcher,
	}

	s.mcp = server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	for _, tool := range catalog.All() {
		s.mcp.AddTool(tool, s.handlerFor(tool.Name))
	}
	return s
}

func (s *Server) handlerFor(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := s.dispatcher.Execute(ctx, name, req.GetArguments())
		if result.IsError {
			return mcp.NewToolResultError(result.Text), nil
		}
		return mcp.NewToolResultText(result.Text), nil
	}
}

// ServeStdio blocks until stdin closes or the context is cancelled.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// Underlying exposes the wrapped MCP server, used by tests to drive
// requests without stdio.
func (s *Server) Underlying() *server.MCPServer {
	return s.mcp
}
