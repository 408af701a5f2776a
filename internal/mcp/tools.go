package mcp

import (
	"context"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/retrofitforge/twin/internal/building"
	"github.com/retrofitforge/twin/internal/ctxutil"
	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/internal/sequencer"
)

// Report kinds accepted by twin_building_report.
const (
	reportInfo       = "info"
	reportAnalysis   = "analysis"
	reportCarbon     = "carbon"
	reportInvestment = "investment"
	reportPointCloud = "pointcloud"
	reportExport     = "export"
)

// Control actions accepted by twin_presentation_control.
const (
	actionStart    = "start"
	actionPause    = "pause"
	actionResume   = "resume"
	actionNext     = "next"
	actionPrevious = "previous"
	actionStop     = "stop"
)

func (s *Server) registerTools() {
	// twin_presentation_status: where the narrated walkthrough is right now.
	s.mcpServer.AddTool(
		mcplib.NewTool("twin_presentation_status",
			mcplib.WithDescription(`Report the state of the narrated investor presentation.

WHAT YOU GET BACK:
- state.status: idle, running, paused or completed
- state.step: the narration line on screen, its section and camera action
- state.remaining_ms: time left on the current step
- script: step count, total duration and section ids

Use this before narrating so your commentary matches the screen.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handlePresentationStatus,
	)

	// twin_live_metrics: the live dashboard readings.
	s.mcpServer.AddTool(
		mcplib.NewTool("twin_live_metrics",
			mcplib.WithDescription(`Read the live AI analysis dashboard for the demo building.

Readings drift slightly on every tick around fixed baselines. Pass metric
to read a single raw sample instead of the rounded dashboard.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("metric",
				mcplib.Description("Optional metric name, e.g. accuracy, processing_speed, energy_savings"),
			),
		),
		s.handleLiveMetrics,
	)

	// twin_building_report: the static building reports.
	s.mcpServer.AddTool(
		mcplib.NewTool("twin_building_report",
			mcplib.WithDescription(`Fetch one of the building reports shown in the demo.

REPORTS:
- info: location, specifications and retrofit potential
- analysis: component analysis with live AI readings
- carbon: current versus retrofit emissions
- investment: scenarios, ROI and payback
- pointcloud: scan coverage per building system
- export: the full bundle as exported for investors`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("report",
				mcplib.Description("Which report to fetch"),
				mcplib.Enum(reportInfo, reportAnalysis, reportCarbon, reportInvestment, reportPointCloud, reportExport),
				mcplib.Required(),
			),
			mcplib.WithString("building_id",
				mcplib.Description("Building identifier. Defaults to the demo building."),
				mcplib.DefaultString(building.DemoID),
			),
		),
		s.handleBuildingReport,
	)

	// twin_presentation_control: drive the walkthrough.
	s.mcpServer.AddTool(
		mcplib.NewTool("twin_presentation_control",
			mcplib.WithDescription(`Control the narrated investor presentation.

start begins from the first step and is only valid when idle or completed.
pause and resume hold and continue the current step. next and
previous move one step. stop ends the walkthrough without completing it.
Invalid actions for the current state return an error and change nothing.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("action",
				mcplib.Description("Control action"),
				mcplib.Enum(actionStart, actionPause, actionResume, actionNext, actionPrevious, actionStop),
				mcplib.Required(),
			),
		),
		s.handlePresentationControl,
	)
}

func (s *Server) presentation() model.PresentationResponse {
	return model.PresentationResponse{
		State:  s.sequencer.State(),
		Script: s.sequencer.Script().Summary(),
	}
}

func (s *Server) handlePresentationStatus(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return jsonResult(s.presentation())
}

func (s *Server) handleLiveMetrics(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := request.GetString("metric", "")
	if name == "" {
		return jsonResult(s.metrics.Dashboard())
	}
	sample, err := s.metrics.CurrentValue(model.MetricName(name))
	if err != nil {
		return errorResult(fmt.Sprintf("unknown metric %q", name)), nil
	}
	return jsonResult(sample)
}

func (s *Server) handleBuildingReport(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id := request.GetString("building_id", building.DemoID)
	b, err := building.Lookup(id)
	if err != nil {
		if errors.Is(err, building.ErrUnknownBuilding) {
			return errorResult(fmt.Sprintf("building %q not found", id)), nil
		}
		return nil, fmt.Errorf("mcp: lookup building: %w", err)
	}

	now := s.now()
	switch report := request.GetString("report", ""); report {
	case reportInfo:
		return jsonResult(b.Info(now))
	case reportAnalysis:
		return jsonResult(b.Analysis(now, s.metrics.BuildingLive()))
	case reportCarbon:
		return jsonResult(b.Carbon(now))
	case reportInvestment:
		return jsonResult(b.Investment(now))
	case reportPointCloud:
		return jsonResult(b.PointCloud(now))
	case reportExport:
		return jsonResult(b.Export(now, s.version))
	case "":
		return errorResult("report is required"), nil
	default:
		return errorResult(fmt.Sprintf("unknown report %q", report)), nil
	}
}

func (s *Server) handlePresentationControl(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	action := request.GetString("action", "")
	var op func() error
	switch action {
	case actionStart:
		op = s.sequencer.Start
	case actionPause:
		op = s.sequencer.Pause
	case actionResume:
		op = s.sequencer.Resume
	case actionNext:
		op = s.sequencer.Next
	case actionPrevious:
		op = s.sequencer.Previous
	case actionStop:
		op = s.sequencer.Stop
	case "":
		return errorResult("action is required"), nil
	default:
		return errorResult(fmt.Sprintf("unknown action %q", action)), nil
	}

	if err := op(); err != nil {
		if errors.Is(err, sequencer.ErrInvalidTransition) {
			return errorResult(err.Error()), nil
		}
		return nil, fmt.Errorf("mcp: presentation %s: %w", action, err)
	}

	resp := s.presentation()
	if s.onControl != nil {
		s.onControl(resp.State)
	}
	s.logger.Info("mcp: presentation control", "action", action, "status", resp.State.Status,
		"request_id", ctxutil.RequestIDFromContext(ctx))
	return jsonResult(resp)
}
