package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/migrations"
)

// Postgres stores sessions and samples in PostgreSQL through a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres creates a connection pool for dsn, verifies connectivity and
// runs pending migrations.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse pool DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}

	db := &Postgres{pool: pool, logger: logger}
	if err := runMigrations(ctx, db, migrations.Postgres(), logger); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("storage: postgres ready", "dsn", redact(dsn))
	return db, nil
}

// Pool returns the underlying connection pool.
func (db *Postgres) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *Postgres) Backend() string { return "postgres" }

// Ping checks connectivity to the database.
func (db *Postgres) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *Postgres) Close(_ context.Context) {
	db.pool.Close()
}

func (db *Postgres) CreateSession(ctx context.Context, s model.DemoSession) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO demo_sessions (session_id, started_at, completed, investor_info)
		 VALUES ($1, $2, false, $3)`,
		s.SessionID, s.StartedAt.UTC(), infoOrNil(s.InvestorInfo),
	)
	if err != nil {
		return fmt.Errorf("storage: create session: %w", err)
	}
	return nil
}

// CompleteSession flips completed in a single conditional UPDATE, so two
// racing completions cannot both succeed.
func (db *Postgres) CompleteSession(ctx context.Context, id uuid.UUID, endedAt time.Time) (model.DemoSession, error) {
	var s model.DemoSession
	err := WithRetry(ctx, 3, 20*time.Millisecond, func() error {
		var err error
		s, err = scanPostgresSession(db.pool.QueryRow(ctx,
			`UPDATE demo_sessions SET ended_at = $1, completed = true
			 WHERE session_id = $2 AND completed = false
			 RETURNING session_id, started_at, ended_at, completed, investor_info`,
			endedAt.UTC(), id,
		))
		return err
	})
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.DemoSession{}, fmt.Errorf("storage: complete session: %w", err)
	}
	// Nothing updated: either the row is missing or it was already completed.
	if _, err := db.GetSession(ctx, id); err != nil {
		return model.DemoSession{}, err
	}
	return model.DemoSession{}, ErrAlreadyCompleted
}

func (db *Postgres) GetSession(ctx context.Context, id uuid.UUID) (model.DemoSession, error) {
	s, err := scanPostgresSession(db.pool.QueryRow(ctx,
		`SELECT session_id, started_at, ended_at, completed, investor_info
		 FROM demo_sessions WHERE session_id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.DemoSession{}, ErrNotFound
		}
		return model.DemoSession{}, fmt.Errorf("storage: get session: %w", err)
	}
	return s, nil
}

func (db *Postgres) ListSessions(ctx context.Context, limit int) ([]model.DemoSession, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT session_id, started_at, ended_at, completed, investor_info
		 FROM demo_sessions ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list sessions: %w", err)
	}
	defer rows.Close()

	var out []model.DemoSession
	for rows.Next() {
		s, err := scanPostgresSession(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordSamples logs one tick of samples with COPY.
func (db *Postgres) RecordSamples(ctx context.Context, samples []model.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}
	_, err := db.pool.CopyFrom(ctx,
		pgx.Identifier{"metric_samples"},
		[]string{"name", "value", "recorded_at"},
		pgx.CopyFromSlice(len(samples), func(i int) ([]any, error) {
			m := samples[i]
			return []any{string(m.Name), m.Value, m.Timestamp.UTC()}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("storage: record samples: %w", err)
	}
	return nil
}

func (db *Postgres) RecentSamples(ctx context.Context, name model.MetricName, limit int) ([]model.MetricSample, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT name, value, recorded_at FROM metric_samples
		 WHERE ($1 = '' OR name = $1)
		 ORDER BY recorded_at DESC, id DESC LIMIT $2`,
		string(name), sampleLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: recent samples: %w", err)
	}
	defer rows.Close()

	var out []model.MetricSample
	for rows.Next() {
		var (
			m      model.MetricSample
			metric string
		)
		if err := rows.Scan(&metric, &m.Value, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("storage: scan sample: %w", err)
		}
		m.Name = model.MetricName(metric)
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanPostgresSession(row pgx.Row) (model.DemoSession, error) {
	var s model.DemoSession
	err := row.Scan(&s.SessionID, &s.StartedAt, &s.EndedAt, &s.Completed, &s.InvestorInfo)
	return s, err
}

// infoOrNil keeps empty payloads as SQL NULL.
func infoOrNil(info map[string]any) any {
	if len(info) == 0 {
		return nil
	}
	return info
}

// migrator implementation.

func (db *Postgres) ensureTracking(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

func (db *Postgres) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := db.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (db *Postgres) applyMigration(ctx context.Context, name, body string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, body); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, name,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
