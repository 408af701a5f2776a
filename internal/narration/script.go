// Package narration holds the scripted investor walkthrough: an ordered,
// immutable list of timed steps consumed by the presentation sequencer.
package narration

import (
	"errors"
	"fmt"
	"time"

	"github.com/retrofitforge/twin/internal/model"
)

// ErrEmptyScript is returned when a script has no steps.
var ErrEmptyScript = errors.New("narration: script has no steps")

// Script is an immutable, validated sequence of narration steps.
// The zero value is an empty script and is not usable by a sequencer.
type Script struct {
	steps []model.NarrationStep
}

// NewScript validates steps and returns a Script holding a private copy.
// Indexes must be contiguous from 0 and every duration must be positive.
func NewScript(steps []model.NarrationStep) (Script, error) {
	if len(steps) == 0 {
		return Script{}, ErrEmptyScript
	}
	for i, s := range steps {
		if s.Index != i {
			return Script{}, fmt.Errorf("narration: step %d has index %d, want %d", i, s.Index, i)
		}
		if s.DurationMillis <= 0 {
			return Script{}, fmt.Errorf("narration: step %d: duration_ms must be positive (got %d)", i, s.DurationMillis)
		}
	}
	cp := make([]model.NarrationStep, len(steps))
	copy(cp, steps)
	return Script{steps: cp}, nil
}

// Build assigns indexes from slice position and validates the result.
func Build(steps []model.NarrationStep) (Script, error) {
	indexed := make([]model.NarrationStep, len(steps))
	for i, s := range steps {
		s.Index = i
		indexed[i] = s
	}
	return NewScript(indexed)
}

// MustBuild is like Build but panics on error. Intended for built-in scripts.
func MustBuild(steps []model.NarrationStep) Script {
	s, err := Build(steps)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of steps.
func (s Script) Len() int { return len(s.steps) }

// Step returns the step at index i. It panics if i is out of range.
func (s Script) Step(i int) model.NarrationStep { return s.steps[i] }

// Steps returns a copy of all steps in playback order.
func (s Script) Steps() []model.NarrationStep {
	cp := make([]model.NarrationStep, len(s.steps))
	copy(cp, s.steps)
	return cp
}

// TotalDuration is the uninterrupted running time of the whole script.
func (s Script) TotalDuration() time.Duration {
	var total time.Duration
	for _, st := range s.steps {
		total += st.Duration()
	}
	return total
}

// Sections returns the distinct section ids in order of first appearance.
func (s Script) Sections() []int {
	seen := make(map[int]bool, len(s.steps))
	var out []int
	for _, st := range s.steps {
		if !seen[st.SectionID] {
			seen[st.SectionID] = true
			out = append(out, st.SectionID)
		}
	}
	return out
}

// Summary describes the script for API responses.
func (s Script) Summary() model.ScriptSummary {
	return model.ScriptSummary{
		Steps:               s.Len(),
		TotalDurationMillis: s.TotalDuration().Milliseconds(),
		Sections:            s.Sections(),
	}
}
