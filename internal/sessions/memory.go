package sessions

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/retrofitforge/twin/internal/model"
)

// MemoryStore is an in-process Store. Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]model.DemoSession
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]model.DemoSession)}
}

func (m *MemoryStore) CreateSession(_ context.Context, s model.DemoSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.InvestorInfo = maps.Clone(s.InvestorInfo)
	m.sessions[s.SessionID] = s
	return nil
}

func (m *MemoryStore) CompleteSession(_ context.Context, id uuid.UUID, endedAt time.Time) (model.DemoSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.DemoSession{}, ErrNotFound
	}
	if s.Completed {
		return model.DemoSession{}, ErrAlreadyCompleted
	}
	s.Completed = true
	s.EndedAt = &endedAt
	m.sessions[id] = s
	return clone(s), nil
}

func (m *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (model.DemoSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.DemoSession{}, ErrNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) ListSessions(_ context.Context, limit int) ([]model.DemoSession, error) {
	m.mu.RLock()
	out := make([]model.DemoSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, clone(s))
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.DemoSession) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clone(s model.DemoSession) model.DemoSession {
	s.InvestorInfo = maps.Clone(s.InvestorInfo)
	if s.EndedAt != nil {
		t := *s.EndedAt
		s.EndedAt = &t
	}
	return s
}
