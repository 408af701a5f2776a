package sequencer

import (
	"fmt"
	"log/slog"

	"github.com/retrofitforge/twin/internal/model"
)

// Observer receives presentation side effects. Callbacks are delivered in
// transition order and never while the sequencer's state lock is held, so an
// observer may call State or even issue further controls.
type Observer interface {
	// StepActivated fires whenever a step becomes the current step. The
	// step's Action tag is for the host UI to interpret.
	StepActivated(step model.NarrationStep)
	// SectionChanged fires before StepActivated when the new step's section
	// differs from the previously active one.
	SectionChanged(sectionID int)
	// Completed fires once per run, when the last step ends.
	Completed()
	// Stopped fires when Stop discards the current position.
	Stopped()
}

// RunObserver is implemented by observers that must tell runs apart.
// Delivery can lag behind the transition that queued it, so a Stopped from
// an earlier run may arrive after a later Start. When an observer implements
// RunObserver, RunCompleted and RunStopped are called instead of Completed
// and Stopped, carrying the run number that StartWith handed out.
type RunObserver interface {
	RunCompleted(run uint64)
	RunStopped(run uint64)
}

func notifyCompleted(o Observer, run uint64) {
	if ro, ok := o.(RunObserver); ok {
		ro.RunCompleted(run)
		return
	}
	o.Completed()
}

func notifyStopped(o Observer, run uint64) {
	if ro, ok := o.(RunObserver); ok {
		ro.RunStopped(run)
		return
	}
	o.Stopped()
}

// Funcs adapts optional callbacks to an Observer. Nil fields are skipped.
type Funcs struct {
	OnStep      func(model.NarrationStep)
	OnSection   func(int)
	OnCompleted func()
	OnStopped   func()
}

func (f Funcs) StepActivated(step model.NarrationStep) {
	if f.OnStep != nil {
		f.OnStep(step)
	}
}

func (f Funcs) SectionChanged(sectionID int) {
	if f.OnSection != nil {
		f.OnSection(sectionID)
	}
}

func (f Funcs) Completed() {
	if f.OnCompleted != nil {
		f.OnCompleted()
	}
}

func (f Funcs) Stopped() {
	if f.OnStopped != nil {
		f.OnStopped()
	}
}

// Observers fans every callback out to each member in order. A member that
// panics is logged and skipped; the remaining members still run.
type Observers []Observer

func (obs Observers) StepActivated(step model.NarrationStep) {
	obs.each(func(o Observer) { o.StepActivated(step) })
}

func (obs Observers) SectionChanged(sectionID int) {
	obs.each(func(o Observer) { o.SectionChanged(sectionID) })
}

func (obs Observers) Completed() {
	obs.each(func(o Observer) { o.Completed() })
}

func (obs Observers) Stopped() {
	obs.each(func(o Observer) { o.Stopped() })
}

// RunCompleted passes the run on to members that track runs.
func (obs Observers) RunCompleted(run uint64) {
	obs.each(func(o Observer) { notifyCompleted(o, run) })
}

// RunStopped passes the run on to members that track runs.
func (obs Observers) RunStopped(run uint64) {
	obs.each(func(o Observer) { notifyStopped(o, run) })
}

func (obs Observers) each(fn func(Observer)) {
	for _, o := range obs {
		callGuarded(o, fn)
	}
}

func callGuarded(o Observer, fn func(Observer)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().Error("sequencer: observer panic",
				"observer", fmt.Sprintf("%T", o), "panic", r)
		}
	}()
	fn(o)
}
