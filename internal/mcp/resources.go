package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/retrofitforge/twin/internal/narration"
)

// Resource URIs.
const (
	scriptURI     = "twin://presentation/script"
	scriptYAMLURI  = "twin://presentation/script.yaml"
	catalogueURI  = "twin://metrics/catalogue"
)

func (s *Server) registerResources() {
	// The narration script with timings and camera actions.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			scriptURI,
			"Presentation Script",
			mcplib.WithResourceDescription("Narration steps of the investor presentation with sections, timings and camera actions"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleScript,
	)

	// Same script in the file format accepted by TWIN_SCRIPT_PATH.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			scriptYAMLURI,
			"Presentation Script (YAML)",
			mcplib.WithResourceDescription("The narration script as a loadable YAML file"),
			mcplib.WithMIMEType("application/yaml"),
		),
		s.handleScriptYAML,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			catalogueURI,
			"Live Metric Catalogue",
			mcplib.WithResourceDescription("Live metric names with their baselines and jitter spread"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleCatalogue,
	)
}

func (s *Server) handleScript(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	script := s.sequencer.Script()
	data, err := json.MarshalIndent(map[string]any{
		"summary": script.Summary(),
		"steps":   script.Steps(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal script: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      scriptURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleScriptYAML(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := narration.Marshal(s.sequencer.Script())
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal script yaml: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      scriptYAMLURI,
			MIMEType: "application/yaml",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleCatalogue(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(s.metrics.Catalogue(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal catalogue: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      catalogueURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
