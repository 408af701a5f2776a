// Package sequencer drives a narration script forward in time.
//
// A Sequencer owns a single logical timeline: exactly one step is active at
// a time, advancing either when its duration of active (unpaused) time has
// elapsed or when a caller skips manually. Every transition, whether fired
// by the step timer or by a control call, is serialized by one mutex.
// Timer callbacks carry a generation token so a timeout that lost the race
// against Pause, Stop or a manual move is discarded instead of applied.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/internal/narration"
	"github.com/retrofitforge/twin/internal/telemetry"
)

// ErrInvalidTransition is returned when a control is not valid in the
// current state. The call is a no-op; callers may check State and retry.
var ErrInvalidTransition = errors.New("sequencer: invalid state transition")

var meter = telemetry.Meter("twin/sequencer")

// event is one pending observer callback.
type event func(Observer)

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(s *Sequencer) { s.clock = c }
}

// WithLogger sets the logger used for transition logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) { s.logger = l }
}

// Sequencer plays a narration.Script. Create one per presentation with New.
type Sequencer struct {
	script      narration.Script
	observer    Observer
	clock       Clock
	logger      *slog.Logger
	transitions otelmetric.Int64Counter

	mu            sync.Mutex
	status        model.PresentationStatus
	index         int
	stepStartedAt time.Time
	remaining     time.Duration // active time still owed to the current step
	timer         Timer
	gen           uint64 // bumped on every reschedule; stale timeouts compare unequal
	run           uint64 // bumped on every Start
	section       int
	hasSection    bool

	pending    []event
	delivering bool
}

// New creates an idle sequencer for script. observer may be nil.
func New(script narration.Script, observer Observer, opts ...Option) (*Sequencer, error) {
	if script.Len() == 0 {
		return nil, fmt.Errorf("sequencer: %w", narration.ErrEmptyScript)
	}
	if observer == nil {
		observer = Funcs{}
	}
	s := &Sequencer{
		script:   script,
		observer: observer,
		clock:    SystemClock(),
		logger:   slog.Default(),
		status:   model.PresentationIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Best-effort: a nil counter just means transitions are not metered.
	if c, err := meter.Int64Counter("twin.presentation.transitions"); err == nil {
		s.transitions = c
	}
	return s, nil
}

// Script returns the script being played.
func (s *Sequencer) Script() narration.Script {
	return s.script
}

// Status returns the current lifecycle status.
func (s *Sequencer) Status() model.PresentationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// State returns a snapshot of the sequencer.
func (s *Sequencer) State() model.PresentationState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := model.PresentationState{
		Status:     s.status,
		TotalSteps: s.script.Len(),
	}
	if s.status != model.PresentationRunning && s.status != model.PresentationPaused {
		return st
	}
	step := s.script.Step(s.index)
	section := step.SectionID
	started := s.stepStartedAt
	st.CurrentIndex = s.index
	st.Step = &step
	st.SectionID = &section
	st.StepStartedAt = &started
	st.RemainingMillis = s.remainingLocked().Milliseconds()
	return st
}

// Start begins the presentation at step 0. Valid from Idle and Completed.
func (s *Sequencer) Start() error {
	return s.StartWith(nil)
}

// StartWith is Start with a hook that runs inside the transition, before
// any event of the new run is delivered and before any later control can
// interleave. The hook receives the run number that RunObserver callbacks
// for this run will carry. It must not call back into the Sequencer.
func (s *Sequencer) StartWith(hook func(run uint64)) error {
	s.mu.Lock()
	if s.status != model.PresentationIdle && s.status != model.PresentationCompleted {
		return s.rejectLocked("start")
	}
	s.run++
	s.status = model.PresentationRunning
	s.index = 0
	s.hasSection = false
	events := s.activateLocked()
	if hook != nil {
		hook(s.run)
	}
	s.logger.Info("presentation started", "run", s.run, "steps", s.script.Len())
	s.commitLocked("start", events)
	return nil
}

// Pause freezes the current step, remembering how much of its duration is
// still owed. Valid only while Running.
func (s *Sequencer) Pause() error {
	s.mu.Lock()
	if s.status != model.PresentationRunning {
		return s.rejectLocked("pause")
	}
	s.remaining = s.remainingLocked()
	s.cancelTimerLocked()
	s.status = model.PresentationPaused
	s.logger.Debug("presentation paused", "step", s.index, "remaining_ms", s.remaining.Milliseconds())
	s.commitLocked("pause", nil)
	return nil
}

// Resume continues a paused step; it advances once the remaining time
// recorded by Pause has elapsed. Valid only while Paused.
func (s *Sequencer) Resume() error {
	s.mu.Lock()
	if s.status != model.PresentationPaused {
		return s.rejectLocked("resume")
	}
	s.status = model.PresentationRunning
	s.stepStartedAt = s.clock.Now()
	s.scheduleLocked(s.remaining)
	s.logger.Debug("presentation resumed", "step", s.index, "remaining_ms", s.remaining.Milliseconds())
	s.commitLocked("resume", nil)
	return nil
}

// Next skips to the following step, or completes the presentation when the
// last step is active. Valid while Running or Paused; a paused sequencer
// stays paused on the new step.
func (s *Sequencer) Next() error {
	s.mu.Lock()
	if s.status != model.PresentationRunning && s.status != model.PresentationPaused {
		return s.rejectLocked("next")
	}
	events := s.advanceLocked()
	s.commitLocked("next", events)
	return nil
}

// Previous moves back one step and restarts that step's full duration.
// Valid while Running or Paused with a step before the current one.
func (s *Sequencer) Previous() error {
	s.mu.Lock()
	if (s.status != model.PresentationRunning && s.status != model.PresentationPaused) || s.index == 0 {
		return s.rejectLocked("previous")
	}
	s.index--
	events := s.activateLocked()
	s.commitLocked("previous", events)
	return nil
}

// Stop discards the current position and returns to Idle, cancelling any
// pending timeout. Valid from Running, Paused and Completed.
func (s *Sequencer) Stop() error {
	s.mu.Lock()
	if s.status == model.PresentationIdle {
		return s.rejectLocked("stop")
	}
	s.cancelTimerLocked()
	s.status = model.PresentationIdle
	s.index = 0
	s.remaining = 0
	s.hasSection = false
	s.logger.Info("presentation stopped")
	run := s.run
	s.commitLocked("stop", []event{func(o Observer) { notifyStopped(o, run) }})
	return nil
}

// Close stops the sequencer if it is doing anything. Stopping an idle
// sequencer is not an error here, which suits deferred shutdown.
func (s *Sequencer) Close() {
	_ = s.Stop()
}

// onTimeout is the step timer callback.
func (s *Sequencer) onTimeout(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.status != model.PresentationRunning {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	events := s.advanceLocked()
	s.commitLocked("timeout", events)
}

// advanceLocked moves to the next step or completes the run.
func (s *Sequencer) advanceLocked() []event {
	if s.index >= s.script.Len()-1 {
		s.cancelTimerLocked()
		s.status = model.PresentationCompleted
		s.remaining = 0
		s.logger.Info("presentation completed")
		run := s.run
		return []event{func(o Observer) { notifyCompleted(o, run) }}
	}
	s.index++
	return s.activateLocked()
}

// activateLocked makes s.index the current step with its full duration
// owed, arming the timer only while Running.
func (s *Sequencer) activateLocked() []event {
	step := s.script.Step(s.index)
	s.stepStartedAt = s.clock.Now()
	s.remaining = step.Duration()
	if s.status == model.PresentationRunning {
		s.scheduleLocked(s.remaining)
	} else {
		s.cancelTimerLocked()
	}

	var events []event
	if !s.hasSection || step.SectionID != s.section {
		s.section = step.SectionID
		s.hasSection = true
		id := step.SectionID
		events = append(events, func(o Observer) { o.SectionChanged(id) })
	}
	s.logger.Debug("presentation step", "index", step.Index, "section", step.SectionID, "action", step.Action)
	return append(events, func(o Observer) { o.StepActivated(step) })
}

func (s *Sequencer) scheduleLocked(d time.Duration) {
	s.cancelTimerLocked()
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() { s.onTimeout(gen) })
}

func (s *Sequencer) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// remainingLocked is the active time still owed to the current step.
func (s *Sequencer) remainingLocked() time.Duration {
	if s.status != model.PresentationRunning {
		return s.remaining
	}
	r := s.remaining - s.clock.Now().Sub(s.stepStartedAt)
	if r < 0 {
		return 0
	}
	return r
}

// rejectLocked releases the lock and reports an invalid transition.
func (s *Sequencer) rejectLocked(op string) error {
	status := s.status
	s.mu.Unlock()
	s.logger.Debug("presentation control rejected", "op", op, "status", status)
	return fmt.Errorf("sequencer: %s while %s: %w", op, status, ErrInvalidTransition)
}

// commitLocked queues events and releases the lock. If no other goroutine is
// delivering, this one drains the queue with the lock released so observers
// run in transition order without ever holding mu.
func (s *Sequencer) commitLocked(op string, events []event) {
	if s.transitions != nil {
		s.transitions.Add(context.Background(), 1,
			otelmetric.WithAttributes(attribute.String("op", op)))
	}
	s.pending = append(s.pending, events...)
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	for len(s.pending) > 0 {
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()
		for _, e := range batch {
			s.deliver(e)
		}
		s.mu.Lock()
	}
	s.delivering = false
	s.mu.Unlock()
}

// deliver runs one observer callback. A panicking observer is logged and
// must not wedge delivery for everyone else.
func (s *Sequencer) deliver(e event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sequencer: observer panic", "panic", r)
		}
	}()
	e(s.observer)
}
