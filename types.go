package twin

import "time"

// Step is the public representation of one narration step.
// No internal package imports, so it is safe to use from outside the module.
type Step struct {
	Index    int
	Section  int
	Text     string
	Duration time.Duration
	// Action is a UI hint such as "focus-building" or "highlight-savings".
	Action string
}

// Status is the presentation lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)
