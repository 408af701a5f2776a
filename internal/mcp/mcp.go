// Package mcp implements the Model Context Protocol server for the digital
// twin demo.
//
// The MCP server exposes the presentation and live metrics through MCP
// tools and resources, so an MCP-compatible assistant can narrate or drive
// an investor demo alongside the web page.
package mcp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/retrofitforge/twin/internal/livemetrics"
	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/internal/sequencer"
)

// Config holds the dependencies of the MCP server.
type Config struct {
	Sequencer *sequencer.Sequencer
	Metrics   *livemetrics.Source
	// OnControl receives the presentation state after every successful
	// control action. Optional.
	OnControl func(model.PresentationState)
	Version   string
	Logger    *slog.Logger
	// Now overrides the report timestamp clock. Optional.
	Now func() time.Time
}

// Server wraps the MCP server with the presentation and metrics services.
type Server struct {
	mcpServer *mcpserver.MCPServer
	sequencer *sequencer.Sequencer
	metrics   *livemetrics.Source
	onControl func(model.PresentationState)
	version   string
	logger    *slog.Logger
	now       func() time.Time
}

// New creates and configures a new MCP server with all tools, resources and
// prompts.
func New(cfg Config) *Server {
	s := &Server{
		sequencer: cfg.Sequencer,
		metrics:   cfg.Metrics,
		onControl: cfg.OnControl,
		version:   cfg.Version,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"twin",
		cfg.Version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// jsonResult renders v as indented JSON text content.
func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
