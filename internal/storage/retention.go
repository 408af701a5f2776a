package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Retention defaults.
const (
	DefaultSampleRetention   = 24 * time.Hour
	DefaultRetentionInterval = time.Hour
)

// SampleRetention prunes logged metric samples older than MaxAge on a
// fixed interval. A non-positive MaxAge disables pruning.
type SampleRetention struct {
	Store    Store
	MaxAge   time.Duration
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

// Run prunes once immediately and then every Interval until ctx is done.
// It always returns nil so it can run in an errgroup next to the server.
func (r SampleRetention) Run(ctx context.Context) error {
	if r.MaxAge <= 0 {
		return nil
	}
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.PruneOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PruneOnce deletes samples older than MaxAge and logs the outcome.
func (r SampleRetention) PruneOnce(ctx context.Context) int64 {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	cutoff := now().Add(-r.MaxAge)
	n, err := r.Store.PurgeSamplesBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("retention: purge samples failed", "error", err)
		}
		return 0
	}
	if n > 0 {
		logger.Info("retention: purged samples", "count", n, "cutoff", cutoff)
	}
	return n
}

func (s *SQLite) PurgeSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := WithRetry(ctx, 3, 20*time.Millisecond, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM metric_samples WHERE recorded_at < ?`, cutoff.UTC().Format(sqliteTimeLayout))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("storage: purge samples: %w", err)
	}
	return n, nil
}

func (db *Postgres) PurgeSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := WithRetry(ctx, 3, 20*time.Millisecond, func() error {
		tag, err := db.pool.Exec(ctx, `DELETE FROM metric_samples WHERE recorded_at < $1`, cutoff.UTC())
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("storage: purge samples: %w", err)
	}
	return n, nil
}

func (m *Memory) PurgeSamplesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.samples[:0:0]
	for _, s := range m.samples {
		if !s.Timestamp.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	n := int64(len(m.samples) - len(kept))
	m.samples = kept
	return n, nil
}
