// Package model defines the domain types shared across the twin engine:
// narration steps, presentation state, live metric samples, demo sessions
// and the HTTP API envelopes.
package model

import "time"

// NarrationStep is one timed unit of the scripted presentation.
// Index is the playback position; SectionID groups consecutive steps that
// share a UI focus area. Action is an opaque tag the frontend interprets.
type NarrationStep struct {
	Index          int    `json:"index"`
	SectionID      int    `json:"section_id"`
	Text           string `json:"text"`
	DurationMillis int64  `json:"duration_ms"`
	Action         string `json:"action"`
}

// Duration returns the step's active time as a time.Duration.
func (s NarrationStep) Duration() time.Duration {
	return time.Duration(s.DurationMillis) * time.Millisecond
}
