// Package sessions records investor demo sessions: created when a walkthrough
// starts, completed at most once, never deleted.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/retrofitforge/twin/internal/model"
)

// Sentinel errors. Stores return these (possibly wrapped) so callers can
// match with errors.Is regardless of backend.
var (
	ErrNotFound         = model.ErrSessionNotFound
	ErrAlreadyCompleted = model.ErrSessionAlreadyCompleted
)

// DefaultListLimit bounds List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// Store persists sessions.
type Store interface {
	CreateSession(ctx context.Context, s model.DemoSession) error
	// CompleteSession marks id completed at endedAt. It must be atomic with
	// respect to concurrent completions of the same id.
	CompleteSession(ctx context.Context, id uuid.UUID, endedAt time.Time) (model.DemoSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (model.DemoSession, error)
	ListSessions(ctx context.Context, limit int) ([]model.DemoSession, error)
}

// Registry creates and completes demo sessions on top of a Store.
type Registry struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

// NewRegistry returns a Registry backed by store. A nil store selects an
// in-memory store.
func NewRegistry(store Store, logger *slog.Logger) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, logger: logger, now: time.Now, newID: uuid.New}
}

// Start creates a new, incomplete session.
func (r *Registry) Start(ctx context.Context, investorInfo map[string]any) (model.DemoSession, error) {
	if err := model.ValidateInvestorInfo(investorInfo); err != nil {
		return model.DemoSession{}, fmt.Errorf("sessions: start: %w", err)
	}
	s := model.DemoSession{
		SessionID:    r.newID(),
		StartedAt:    r.now().UTC(),
		InvestorInfo: investorInfo,
	}
	if err := r.store.CreateSession(ctx, s); err != nil {
		return model.DemoSession{}, fmt.Errorf("sessions: start: %w", err)
	}
	r.logger.Info("demo session started", "session_id", s.SessionID)
	return s, nil
}

// Complete marks a session completed. Completing an unknown session returns
// ErrNotFound; completing twice returns ErrAlreadyCompleted.
func (r *Registry) Complete(ctx context.Context, id uuid.UUID) (model.DemoSession, error) {
	s, err := r.store.CompleteSession(ctx, id, r.now().UTC())
	if err != nil {
		return model.DemoSession{}, fmt.Errorf("sessions: complete %s: %w", id, err)
	}
	r.logger.Info("demo session completed", "session_id", id, "duration", s.EndedAt.Sub(s.StartedAt))
	return s, nil
}

// Get returns a session by id.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (model.DemoSession, error) {
	s, err := r.store.GetSession(ctx, id)
	if err != nil {
		return model.DemoSession{}, fmt.Errorf("sessions: get %s: %w", id, err)
	}
	return s, nil
}

// List returns the most recently started sessions first.
func (r *Registry) List(ctx context.Context, limit int) ([]model.DemoSession, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	list, err := r.store.ListSessions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("sessions: list: %w", err)
	}
	return list, nil
}
