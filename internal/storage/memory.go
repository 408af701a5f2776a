package storage

import (
	"context"
	"sync"

	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/internal/sessions"
)

// memorySampleCap bounds the in-process sample log.
const memorySampleCap = 10_000

// Memory keeps sessions and samples in process memory. Samples beyond
// memorySampleCap are dropped oldest first.
type Memory struct {
	*sessions.MemoryStore

	mu      sync.RWMutex
	samples []model.MetricSample
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{MemoryStore: sessions.NewMemoryStore()}
}

func (m *Memory) Backend() string { return "memory" }

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close(context.Context) {}

func (m *Memory) RecordSamples(_ context.Context, samples []model.MetricSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, samples...)
	if over := len(m.samples) - memorySampleCap; over > 0 {
		m.samples = append(m.samples[:0:0], m.samples[over:]...)
	}
	return nil
}

func (m *Memory) RecentSamples(_ context.Context, name model.MetricName, limit int) ([]model.MetricSample, error) {
	limit = sampleLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.MetricSample
	for i := len(m.samples) - 1; i >= 0 && len(out) < limit; i-- {
		if name == "" || m.samples[i].Name == name {
			out = append(out, m.samples[i])
		}
	}
	return out, nil
}
