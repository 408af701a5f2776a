package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/internal/storage"
)

func TestSampleRetentionPruneOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	st := storage.NewMemory()
	require.NoError(t, st.RecordSamples(ctx, []model.MetricSample{
		{Name: model.MetricAccuracy, Value: 96.1, Timestamp: now.Add(-48 * time.Hour)},
		{Name: model.MetricAccuracy, Value: 96.2, Timestamp: now.Add(-25 * time.Hour)},
		{Name: model.MetricAccuracy, Value: 96.3, Timestamp: now.Add(-time.Hour)},
	}))

	r := storage.SampleRetention{
		Store:  st,
		MaxAge: 24 * time.Hour,
		Logger: quietLogger(),
		Now:    func() time.Time { return now },
	}
	assert.EqualValues(t, 2, r.PruneOnce(ctx))

	left, err := st.RecentSamples(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.InDelta(t, 96.3, left[0].Value, 1e-9)
}

func TestSampleRetentionDisabled(t *testing.T) {
	st := storage.NewMemory()
	r := storage.SampleRetention{Store: st, MaxAge: 0, Logger: quietLogger()}

	// Returns immediately without waiting for cancellation.
	assert.NoError(t, r.Run(context.Background()))
}

func TestSampleRetentionRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := storage.NewMemory()
	r := storage.SampleRetention{Store: st, MaxAge: time.Hour, Interval: time.Hour, Logger: quietLogger()}

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("retention loop did not stop")
	}
}
