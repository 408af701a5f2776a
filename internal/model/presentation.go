package model

import "time"

// PresentationStatus is the lifecycle state of a presentation sequencer.
type PresentationStatus string

const (
	PresentationIdle      PresentationStatus = "idle"
	PresentationRunning   PresentationStatus = "running"
	PresentationPaused    PresentationStatus = "paused"
	PresentationCompleted PresentationStatus = "completed"
)

// PresentationState is a point-in-time copy of a sequencer's state.
// CurrentIndex and Step are only meaningful while running or paused.
type PresentationState struct {
	Status          PresentationStatus `json:"status"`
	CurrentIndex    int                `json:"current_index"`
	TotalSteps      int                `json:"total_steps"`
	Step            *NarrationStep     `json:"step,omitempty"`
	SectionID       *int               `json:"section_id,omitempty"`
	StepStartedAt   *time.Time         `json:"step_started_at,omitempty"`
	RemainingMillis int64              `json:"remaining_ms"`
}

// Active reports whether the state has a current step.
func (s PresentationState) Active() bool {
	return s.Status == PresentationRunning || s.Status == PresentationPaused
}

// ScriptSummary describes a narration script without its text.
type ScriptSummary struct {
	Steps               int   `json:"steps"`
	TotalDurationMillis int64 `json:"total_duration_ms"`
	Sections            []int `json:"sections"`
}

// PresentationResponse is returned by GET /api/presentation and by every
// presentation control endpoint.
type PresentationResponse struct {
	State  PresentationState `json:"state"`
	Script ScriptSummary     `json:"script"`
}
