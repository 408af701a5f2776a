package sequencer

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/internal/narration"
)

// fakeClock fires AfterFunc callbacks synchronously from Advance, in due
// order, with its own lock released.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

// recorder captures observer callbacks as short strings.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) StepActivated(step model.NarrationStep) { r.add(fmt.Sprintf("step:%d", step.Index)) }
func (r *recorder) SectionChanged(id int)                   { r.add(fmt.Sprintf("section:%d", id)) }
func (r *recorder) Completed()                              { r.add("completed") }
func (r *recorder) Stopped()                                { r.add("stopped") }

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func (r *recorder) count(e string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.events {
		if got == e {
			n++
		}
	}
	return n
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scenarioScript is [{1000,s1},{2000,s1},{1000,s2}].
func scenarioScript() narration.Script {
	return narration.MustBuild([]model.NarrationStep{
		{SectionID: 1, DurationMillis: 1000, Action: "a"},
		{SectionID: 1, DurationMillis: 2000, Action: "b"},
		{SectionID: 2, DurationMillis: 1000, Action: "c"},
	})
}

func newTestSequencer(t *testing.T, script narration.Script) (*Sequencer, *fakeClock, *recorder) {
	t.Helper()
	clock := newFakeClock()
	rec := &recorder{}
	s, err := New(script, rec, WithClock(clock), WithLogger(quietLogger()))
	require.NoError(t, err)
	return s, clock, rec
}

func TestNewRejectsEmptyScript(t *testing.T) {
	_, err := New(narration.Script{}, nil)
	require.ErrorIs(t, err, narration.ErrEmptyScript)
}

func TestStartActivatesFirstStep(t *testing.T) {
	s, _, rec := newTestSequencer(t, scenarioScript())

	require.NoError(t, s.Start())

	assert.Equal(t, []string{"section:1", "step:0"}, rec.take())
	st := s.State()
	assert.Equal(t, model.PresentationRunning, st.Status)
	assert.Equal(t, 0, st.CurrentIndex)
	require.NotNil(t, st.Step)
	assert.Equal(t, "a", st.Step.Action)
	assert.Equal(t, int64(1000), st.RemainingMillis)
}

func TestAutoAdvanceNoEarlierThanDuration(t *testing.T) {
	s, clock, rec := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	rec.take()

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, s.State().CurrentIndex)
	assert.Empty(t, rec.take())

	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, s.State().CurrentIndex)
	assert.Equal(t, []string{"step:1"}, rec.take())
}

func TestSectionChangeScenario(t *testing.T) {
	s, clock, rec := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	rec.take()

	// Step 0 -> 1: section 1 -> 1, no section change.
	clock.Advance(1000 * time.Millisecond)
	assert.Equal(t, []string{"step:1"}, rec.take())

	// Step 1 -> 2: section 1 -> 2, exactly one section change.
	clock.Advance(2000 * time.Millisecond)
	assert.Equal(t, []string{"section:2", "step:2"}, rec.take())

	// Last step times out.
	clock.Advance(1000 * time.Millisecond)
	assert.Equal(t, []string{"completed"}, rec.take())
	assert.Equal(t, model.PresentationCompleted, s.Status())
}

func TestNextReachesCompletedExactlyOnce(t *testing.T) {
	for n := 1; n <= 6; n++ {
		t.Run(fmt.Sprintf("steps=%d", n), func(t *testing.T) {
			steps := make([]model.NarrationStep, n)
			for i := range steps {
				steps[i] = model.NarrationStep{SectionID: i % 2, DurationMillis: 500}
			}
			s, clock, rec := newTestSequencer(t, narration.MustBuild(steps))
			require.NoError(t, s.Start())

			for range n - 1 {
				require.NoError(t, s.Next())
			}
			assert.Equal(t, n-1, s.State().CurrentIndex)
			assert.Equal(t, 0, rec.count("completed"))

			require.NoError(t, s.Next())
			assert.Equal(t, model.PresentationCompleted, s.Status())
			assert.Equal(t, 1, rec.count("completed"))

			// Nothing can complete it again.
			require.ErrorIs(t, s.Next(), ErrInvalidTransition)
			clock.Advance(time.Hour)
			assert.Equal(t, 1, rec.count("completed"))
		})
	}
}

func TestPauseResumeHonorsRemainingTime(t *testing.T) {
	s, clock, rec := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	rec.take()

	clock.Advance(400 * time.Millisecond)
	require.NoError(t, s.Pause())
	assert.Equal(t, int64(600), s.State().RemainingMillis)

	// Time spent paused does not count.
	clock.Advance(10 * time.Second)
	assert.Equal(t, model.PresentationPaused, s.Status())
	assert.Equal(t, 0, s.State().CurrentIndex)
	assert.Empty(t, rec.take())

	require.NoError(t, s.Resume())
	clock.Advance(599 * time.Millisecond)
	assert.Equal(t, 0, s.State().CurrentIndex)

	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, s.State().CurrentIndex)
	assert.Equal(t, []string{"step:1"}, rec.take())
}

func TestRepeatedPauseResumeSumsToDuration(t *testing.T) {
	s, clock, _ := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	clock.Advance(time.Second) // now on step 1 (2000ms)

	for range 3 {
		clock.Advance(500 * time.Millisecond)
		require.NoError(t, s.Pause())
		clock.Advance(time.Minute)
		require.NoError(t, s.Resume())
	}
	// 1500ms of active time spent; 500ms still owed.
	assert.Equal(t, int64(500), s.State().RemainingMillis)
	clock.Advance(499 * time.Millisecond)
	assert.Equal(t, 1, s.State().CurrentIndex)
	clock.Advance(time.Millisecond)
	assert.Equal(t, 2, s.State().CurrentIndex)
}

func TestPreviousResetsFullDuration(t *testing.T) {
	s, clock, rec := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	clock.Advance(time.Second)
	clock.Advance(1500 * time.Millisecond) // 1500ms into step 1
	rec.take()

	require.NoError(t, s.Previous())
	assert.Equal(t, []string{"step:0"}, rec.take())
	st := s.State()
	assert.Equal(t, 0, st.CurrentIndex)
	assert.Equal(t, int64(1000), st.RemainingMillis)

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, s.State().CurrentIndex)
	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, s.State().CurrentIndex)
}

func TestPreviousAcrossSectionsSignalsSection(t *testing.T) {
	s, _, rec := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	require.NoError(t, s.Next())
	require.NoError(t, s.Next())
	rec.take()

	require.NoError(t, s.Previous())
	assert.Equal(t, []string{"section:1", "step:1"}, rec.take())
}

func TestPreviousAtFirstStepRejected(t *testing.T) {
	s, _, rec := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	rec.take()

	err := s.Previous()
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, rec.take())
	assert.Equal(t, model.PresentationRunning, s.Status())
}

func TestStopThenStartRestartsAtZero(t *testing.T) {
	s, clock, rec := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	require.NoError(t, s.Next())
	require.NoError(t, s.Next())
	rec.take()

	require.NoError(t, s.Stop())
	assert.Equal(t, []string{"stopped"}, rec.take())
	assert.Equal(t, model.PresentationIdle, s.Status())

	// The cancelled timeout must not fire after stop.
	clock.Advance(time.Hour)
	assert.Empty(t, rec.take())

	require.NoError(t, s.Start())
	assert.Equal(t, []string{"section:1", "step:0"}, rec.take())
	assert.Equal(t, 0, s.State().CurrentIndex)
}

func TestStopWhilePausedDiscardsPosition(t *testing.T) {
	s, clock, rec := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	require.NoError(t, s.Next())
	require.NoError(t, s.Pause())
	rec.take()

	require.NoError(t, s.Stop())
	assert.Equal(t, []string{"stopped"}, rec.take())
	clock.Advance(time.Hour)
	assert.Empty(t, rec.take())
	assert.Equal(t, model.PresentationState{Status: model.PresentationIdle, TotalSteps: 3}, s.State())
}

func TestStartFromCompletedIsFresh(t *testing.T) {
	s, clock, rec := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	clock.Advance(4 * time.Second)
	require.Equal(t, model.PresentationCompleted, s.Status())
	rec.take()

	require.NoError(t, s.Start())
	assert.Equal(t, []string{"section:1", "step:0"}, rec.take())
	assert.Equal(t, int64(1000), s.State().RemainingMillis)
}

func TestStopFromCompleted(t *testing.T) {
	s, clock, rec := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	clock.Advance(4 * time.Second)
	rec.take()

	require.NoError(t, s.Stop())
	assert.Equal(t, []string{"stopped"}, rec.take())
	assert.Equal(t, model.PresentationIdle, s.Status())
}

func TestInvalidTransitionsAreNoOps(t *testing.T) {
	s, _, rec := newTestSequencer(t, scenarioScript())

	for name, op := range map[string]func() error{
		"pause":    s.Pause,
		"resume":   s.Resume,
		"next":     s.Next,
		"previous": s.Previous,
		"stop":     s.Stop,
	} {
		err := op()
		require.ErrorIs(t, err, ErrInvalidTransition, name)
		assert.Contains(t, err.Error(), name)
		assert.Equal(t, model.PresentationIdle, s.Status(), name)
	}
	assert.Empty(t, rec.take())

	require.NoError(t, s.Start())
	require.ErrorIs(t, s.Start(), ErrInvalidTransition)
	require.ErrorIs(t, s.Resume(), ErrInvalidTransition)
	require.NoError(t, s.Pause())
	require.ErrorIs(t, s.Pause(), ErrInvalidTransition)
	require.ErrorIs(t, s.Start(), ErrInvalidTransition)
}

func TestNextWhilePausedStaysPaused(t *testing.T) {
	s, clock, rec := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	clock.Advance(300 * time.Millisecond)
	require.NoError(t, s.Pause())
	rec.take()

	require.NoError(t, s.Next())
	assert.Equal(t, []string{"step:1"}, rec.take())
	st := s.State()
	assert.Equal(t, model.PresentationPaused, st.Status)
	assert.Equal(t, 1, st.CurrentIndex)
	assert.Equal(t, int64(2000), st.RemainingMillis)

	clock.Advance(time.Hour)
	assert.Equal(t, 1, s.State().CurrentIndex)

	require.NoError(t, s.Resume())
	clock.Advance(2 * time.Second)
	assert.Equal(t, 2, s.State().CurrentIndex)
}

func TestNextAtLastStepWhilePausedCompletes(t *testing.T) {
	s, _, rec := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	require.NoError(t, s.Next())
	require.NoError(t, s.Next())
	require.NoError(t, s.Pause())
	rec.take()

	require.NoError(t, s.Next())
	assert.Equal(t, []string{"completed"}, rec.take())
	assert.Equal(t, model.PresentationCompleted, s.Status())
}

func TestManualNextCancelsPendingTimeout(t *testing.T) {
	s, clock, rec := newTestSequencer(t, scenarioScript())
	require.NoError(t, s.Start())
	clock.Advance(900 * time.Millisecond)
	require.NoError(t, s.Next()) // step 1 starts with a fresh 2000ms
	rec.take()

	// The old step-0 deadline (100ms from now) must not advance step 1.
	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, s.State().CurrentIndex)
	assert.Empty(t, rec.take())

	clock.Advance(1900 * time.Millisecond)
	assert.Equal(t, 2, s.State().CurrentIndex)
}

func TestObserverMayReadStateDuringCallback(t *testing.T) {
	clock := newFakeClock()
	var seen []model.PresentationStatus
	var s *Sequencer
	obs := Funcs{
		OnStep:      func(model.NarrationStep) { seen = append(seen, s.State().Status) },
		OnCompleted: func() { seen = append(seen, s.State().Status) },
	}
	var err error
	s, err = New(scenarioScript(), obs, WithClock(clock), WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	clock.Advance(4 * time.Second)
	assert.Equal(t, []model.PresentationStatus{
		model.PresentationRunning,
		model.PresentationRunning,
		model.PresentationRunning,
		model.PresentationCompleted,
	}, seen)
}

func TestObserverMayIssueControls(t *testing.T) {
	clock := newFakeClock()
	var s *Sequencer
	rec := &recorder{}
	obs := Observers{rec, Funcs{
		OnStep: func(step model.NarrationStep) {
			if step.Index == 1 {
				_ = s.Pause()
			}
		},
	}}
	var err error
	s, err = New(scenarioScript(), obs, WithClock(clock), WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	clock.Advance(time.Second)
	assert.Equal(t, model.PresentationPaused, s.Status())
	assert.Equal(t, 1, s.State().CurrentIndex)
	assert.Equal(t, []string{"section:1", "step:0", "step:1"}, rec.take())
}

func TestObserverPanicDoesNotWedgeDelivery(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	obs := Observers{Funcs{OnStep: func(step model.NarrationStep) {
		if step.Index == 0 {
			panic("boom")
		}
	}}, rec}
	s, err := New(scenarioScript(), obs, WithClock(clock), WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.NoError(t, s.Next())
	assert.Contains(t, rec.take(), "step:1")
}

func TestConcurrentControlsAreSerialized(t *testing.T) {
	steps := make([]model.NarrationStep, 50)
	for i := range steps {
		steps[i] = model.NarrationStep{SectionID: i / 5, DurationMillis: int64(time.Hour / time.Millisecond)}
	}
	rec := &recorder{}
	s, err := New(narration.MustBuild(steps), rec, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				switch (g + i) % 4 {
				case 0:
					_ = s.Next()
				case 1:
					_ = s.Pause()
				case 2:
					_ = s.Resume()
				case 3:
					_ = s.State()
				}
			}
		}()
	}
	wg.Wait()

	// Drive whatever is left to the end.
	_ = s.Resume()
	for s.Status() != model.PresentationCompleted {
		require.NoError(t, s.Next())
	}
	assert.Equal(t, 1, rec.count("completed"))
}

func TestSystemClockRunsToCompletion(t *testing.T) {
	done := make(chan struct{})
	script := narration.MustBuild([]model.NarrationStep{
		{SectionID: 1, DurationMillis: 5},
		{SectionID: 2, DurationMillis: 5},
	})
	s, err := New(script, Funcs{OnCompleted: func() { close(done) }}, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("presentation did not complete on the system clock")
	}
	assert.Equal(t, model.PresentationCompleted, s.Status())
}

// lateClock hands out timers that can never be stopped, as when the timer
// has already fired and its callback is waiting on the sequencer's lock.
type lateClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []func()
}

type lateTimer struct{}

func (lateTimer) Stop() bool { return false }

func (c *lateClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *lateClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, f)
	return lateTimer{}
}

// fireOldest runs the oldest scheduled callback regardless of Stop.
func (c *lateClock) fireOldest() {
	c.mu.Lock()
	f := c.pending[0]
	c.pending = c.pending[1:]
	c.mu.Unlock()
	f()
}

func TestStaleTimeoutAfterControlIsDropped(t *testing.T) {
	clock := &lateClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	s, err := New(scenarioScript(), rec, WithClock(clock), WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.NoError(t, s.Pause())
	rec.take()

	// The start timer lost the race against Pause.
	clock.fireOldest()
	st := s.State()
	assert.Equal(t, model.PresentationPaused, st.Status)
	assert.Equal(t, 0, st.CurrentIndex)
	assert.Empty(t, rec.take())

	// The resume timer lost the race against a manual Next.
	require.NoError(t, s.Resume())
	require.NoError(t, s.Next())
	assert.Equal(t, []string{"step:1"}, rec.take())
	clock.fireOldest()
	assert.Equal(t, 1, s.State().CurrentIndex)
	assert.Empty(t, rec.take())

	// The step 1 timer lost the race against Stop.
	require.NoError(t, s.Stop())
	assert.Equal(t, []string{"stopped"}, rec.take())
	clock.fireOldest()
	assert.Equal(t, model.PresentationIdle, s.Status())
	assert.Empty(t, rec.take())

	// The live timer still advances.
	require.NoError(t, s.Start())
	rec.take()
	clock.fireOldest()
	assert.Equal(t, 1, s.State().CurrentIndex)
	assert.Equal(t, []string{"step:1"}, rec.take())
}

func TestObserversIsolatePanickingMember(t *testing.T) {
	rec := &recorder{}
	obs := Observers{Funcs{
		OnStep:      func(model.NarrationStep) { panic("boom") },
		OnSection:   func(int) { panic("boom") },
		OnCompleted: func() { panic("boom") },
		OnStopped:   func() { panic("boom") },
	}, rec}
	s, err := New(scenarioScript(), obs, WithClock(newFakeClock()), WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.NoError(t, s.Next())
	require.NoError(t, s.Next())
	require.NoError(t, s.Next())
	require.NoError(t, s.Stop())

	assert.Equal(t, []string{
		"section:1", "step:0", "step:1", "section:2", "step:2", "completed", "stopped",
	}, rec.take())
}

// runRecorder tracks run numbers on completion and stop.
type runRecorder struct {
	recorder
}

func (r *runRecorder) RunCompleted(run uint64) { r.add(fmt.Sprintf("completed:%d", run)) }
func (r *runRecorder) RunStopped(run uint64)   { r.add(fmt.Sprintf("stopped:%d", run)) }

func TestRunObserverReceivesRunNumbers(t *testing.T) {
	rec := &runRecorder{}
	plain := &recorder{}
	s, err := New(scenarioScript(), Observers{rec, plain}, WithClock(newFakeClock()), WithLogger(quietLogger()))
	require.NoError(t, err)

	var hooked []uint64
	require.NoError(t, s.StartWith(func(run uint64) { hooked = append(hooked, run) }))
	require.NoError(t, s.Stop())
	require.NoError(t, s.StartWith(func(run uint64) { hooked = append(hooked, run) }))
	for range 3 {
		require.NoError(t, s.Next())
	}

	assert.Equal(t, []uint64{1, 2}, hooked)
	events := rec.take()
	assert.Contains(t, events, "stopped:1")
	assert.Contains(t, events, "completed:2")
	assert.NotContains(t, events, "completed")
	assert.Equal(t, 1, plain.count("stopped"))
	assert.Equal(t, 1, plain.count("completed"))
}
