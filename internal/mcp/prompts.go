package mcp

import (
	"context"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// investor-walkthrough: how to run the demo for a named investor.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("investor-walkthrough",
			mcplib.WithPromptDescription("Run the narrated digital twin walkthrough for an investor"),
			mcplib.WithArgument("investor_name",
				mcplib.ArgumentDescription("Who the demo is for. Used to personalise the opening."),
			),
		),
		s.handleWalkthroughPrompt,
	)

	// narrate-step: expand the on-screen narration line.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("narrate-step",
			mcplib.WithPromptDescription("Expand the current narration step into a short spoken commentary"),
		),
		s.handleNarrateStepPrompt,
	)
}

func (s *Server) handleWalkthroughPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	audience := "the investor"
	if name := strings.TrimSpace(request.Params.Arguments["investor_name"]); name != "" {
		audience = name
	}
	summary := s.sequencer.Script().Summary()

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Digital twin walkthrough for %s", audience),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`You are presenting the RetroFit digital twin to %s.

The walkthrough has %d narrated steps across %d sections and runs for about %d seconds.

1. CALL twin_presentation_control with action="start".
2. CALL twin_presentation_status whenever the section changes and speak to
   what is on screen. Never read the narration line verbatim.
3. When the investment section is on screen, CALL twin_building_report with
   report="investment" and quote the ROI and payback figures exactly.
4. CALL twin_live_metrics to cite current accuracy and processing speed.
5. If %s asks a question, CALL twin_presentation_control with action="pause",
   answer, then resume.

Keep every figure you quote identical to the tool output.`,
						audience, summary.Steps, len(summary.Sections), summary.TotalDurationMillis/1000, audience),
				},
			},
		},
	}, nil
}

func (s *Server) handleNarrateStepPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	state := s.sequencer.State()
	if state.Step == nil {
		return nil, fmt.Errorf("no narration step is active (presentation is %s)", state.Status)
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Commentary for step %d of %d", state.CurrentIndex+1, state.TotalSteps),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`The screen shows this narration line:

%q

The camera action is %q and the step lasts %d ms. Expand it into two or
three spoken sentences for an investor audience. Stay within the figures the
line states.`, state.Step.Text, state.Step.Action, state.Step.DurationMillis),
				},
			},
		},
	}, nil
}
