// Package storage persists demo sessions and logged live-metric samples.
//
// Three backends share one interface: SQLite (the default, a single local
// file through modernc.org/sqlite), PostgreSQL (through pgxpool) and an
// in-process memory store. Open picks one from a URL.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/retrofitforge/twin/internal/livemetrics"
	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/internal/sessions"
)

// DefaultSampleLimit bounds RecentSamples when the caller passes a
// non-positive limit.
const DefaultSampleLimit = 100

// Store is the full persistence surface used by the server.
type Store interface {
	sessions.Store
	livemetrics.Sink

	// RecentSamples returns logged samples newest first. An empty name
	// matches every metric.
	RecentSamples(ctx context.Context, name model.MetricName, limit int) ([]model.MetricSample, error)
	// PurgeSamplesBefore deletes samples recorded before cutoff and
	// returns how many were removed.
	PurgeSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// Backend names the backend: "sqlite", "postgres" or "memory".
	Backend() string
	Ping(ctx context.Context) error
	Close(ctx context.Context)
}

// Open connects to the store named by url and applies pending migrations.
//
//	memory               in-process, nothing persisted
//	sqlite://path.db     SQLite file (created if missing)
//	postgres://...       PostgreSQL (postgresql:// is accepted too)
func Open(ctx context.Context, url string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case url == "" || url == "memory":
		return NewMemory(), nil
	case strings.HasPrefix(url, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(url, "sqlite://"), logger)
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return OpenPostgres(ctx, url, logger)
	default:
		return nil, fmt.Errorf("storage: unsupported database url %q", redact(url))
	}
}

// redact strips credentials from a URL before it is logged or returned.
func redact(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}

func sampleLimit(limit int) int {
	if limit <= 0 {
		return DefaultSampleLimit
	}
	return limit
}
