package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/retrofitforge/twin/internal/model"
)

// completeTimeout bounds the store write made when a presentation ends.
const completeTimeout = 5 * time.Second

// Binding ties a running presentation to a demo session: when the
// presentation completes, the bound session is completed too. Stopping the
// presentation drops the binding without completing anything.
//
// Binding satisfies the presentation sequencer's Observer and RunObserver
// interfaces. A binding made with BindRun only reacts to the end of that
// run, so a late Stopped or Completed from an earlier run leaves it alone.
type Binding struct {
	registry *Registry

	mu     sync.Mutex
	bound  *uuid.UUID
	run    uint64
	hasRun bool
}

// NewBinding returns a Binding that completes sessions through registry.
func NewBinding(registry *Registry) *Binding {
	return &Binding{registry: registry}
}

// Bind attaches id to whichever presentation ends next, replacing any
// earlier binding.
func (b *Binding) Bind(id uuid.UUID) {
	b.mu.Lock()
	b.bound, b.run, b.hasRun = &id, 0, false
	b.mu.Unlock()
}

// BindRun attaches id to presentation run, replacing any earlier binding.
func (b *Binding) BindRun(run uint64, id uuid.UUID) {
	b.mu.Lock()
	b.bound, b.run, b.hasRun = &id, run, true
	b.mu.Unlock()
}

// Unbind drops the current binding, if any.
func (b *Binding) Unbind() {
	b.mu.Lock()
	b.bound, b.run, b.hasRun = nil, 0, false
	b.mu.Unlock()
}

// Bound returns the attached session id.
func (b *Binding) Bound() (uuid.UUID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bound == nil {
		return uuid.Nil, false
	}
	return *b.bound, true
}

// take detaches the bound id if the binding belongs to run. A nil run
// matches any binding.
func (b *Binding) take(run *uint64) (uuid.UUID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bound == nil {
		return uuid.Nil, false
	}
	if run != nil && b.hasRun && b.run != *run {
		return uuid.Nil, false
	}
	id := *b.bound
	b.bound, b.run, b.hasRun = nil, 0, false
	return id, true
}

func (b *Binding) StepActivated(model.NarrationStep) {}

func (b *Binding) SectionChanged(int) {}

// Completed completes the bound session. A session that was already
// completed by hand is not an error here.
func (b *Binding) Completed() { b.complete(nil) }

// RunCompleted completes the bound session if it belongs to run.
func (b *Binding) RunCompleted(run uint64) { b.complete(&run) }

func (b *Binding) complete(run *uint64) {
	id, ok := b.take(run)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), completeTimeout)
	defer cancel()
	if _, err := b.registry.Complete(ctx, id); err != nil {
		if errors.Is(err, ErrAlreadyCompleted) {
			b.registry.logger.Info("bound demo session already completed", "session_id", id)
			return
		}
		b.registry.logger.Error("complete bound demo session", "session_id", id, "error", err)
	}
}

func (b *Binding) Stopped() { b.take(nil) }

// RunStopped drops the binding if it belongs to run.
func (b *Binding) RunStopped(run uint64) { b.take(&run) }
