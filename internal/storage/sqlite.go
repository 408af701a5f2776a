package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/migrations"
)

// sqliteTimeLayout is fixed width so TEXT columns sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite stores everything in a single local database file.
type SQLite struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database file at path in WAL
// mode and runs pending migrations.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("storage: sqlite path is empty")
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping sqlite: %w", err)
	}

	s := &SQLite{db: db, path: path, logger: logger}
	if err := runMigrations(ctx, s, migrations.SQLite(), logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("storage: sqlite ready", "path", path)
	return s, nil
}

func (s *SQLite) Backend() string { return "sqlite" }

// Ping checks the database file is still reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLite) Close(_ context.Context) {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("storage: close sqlite", "error", err)
	}
}

func (s *SQLite) CreateSession(ctx context.Context, ds model.DemoSession) error {
	info, err := encodeInfo(ds.InvestorInfo)
	if err != nil {
		return err
	}
	err = WithRetry(ctx, 3, 20*time.Millisecond, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO demo_sessions (session_id, started_at, ended_at, completed, investor_info)
			 VALUES (?, ?, NULL, 0, ?)`,
			ds.SessionID.String(), ds.StartedAt.UTC().Format(sqliteTimeLayout), info,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("storage: create session: %w", err)
	}
	return nil
}

func (s *SQLite) CompleteSession(ctx context.Context, id uuid.UUID, endedAt time.Time) (model.DemoSession, error) {
	var affected int64
	err := WithRetry(ctx, 3, 20*time.Millisecond, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE demo_sessions SET ended_at = ?, completed = 1
			 WHERE session_id = ? AND completed = 0`,
			endedAt.UTC().Format(sqliteTimeLayout), id.String(),
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return model.DemoSession{}, fmt.Errorf("storage: complete session: %w", err)
	}

	ds, err := s.GetSession(ctx, id)
	if err != nil {
		return model.DemoSession{}, err
	}
	if affected == 0 {
		return model.DemoSession{}, ErrAlreadyCompleted
	}
	return ds, nil
}

func (s *SQLite) GetSession(ctx context.Context, id uuid.UUID) (model.DemoSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, started_at, ended_at, completed, investor_info
		 FROM demo_sessions WHERE session_id = ?`, id.String())
	ds, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DemoSession{}, ErrNotFound
	}
	if err != nil {
		return model.DemoSession{}, fmt.Errorf("storage: get session: %w", err)
	}
	return ds, nil
}

func (s *SQLite) ListSessions(ctx context.Context, limit int) ([]model.DemoSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, started_at, ended_at, completed, investor_info
		 FROM demo_sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.DemoSession
	for rows.Next() {
		ds, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan session: %w", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// RecordSamples logs one tick of samples in a single transaction.
func (s *SQLite) RecordSamples(ctx context.Context, samples []model.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}
	err := WithRetry(ctx, 3, 20*time.Millisecond, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO metric_samples (name, value, recorded_at) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for _, m := range samples {
			if _, err := stmt.ExecContext(ctx, string(m.Name), m.Value, m.Timestamp.UTC().Format(sqliteTimeLayout)); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("storage: record samples: %w", err)
	}
	return nil
}

func (s *SQLite) RecentSamples(ctx context.Context, name model.MetricName, limit int) ([]model.MetricSample, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if name == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT name, value, recorded_at FROM metric_samples
			 ORDER BY recorded_at DESC, id DESC LIMIT ?`, sampleLimit(limit))
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT name, value, recorded_at FROM metric_samples
			 WHERE name = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`, string(name), sampleLimit(limit))
	}
	if err != nil {
		return nil, fmt.Errorf("storage: recent samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.MetricSample
	for rows.Next() {
		var (
			m      model.MetricSample
			metric string
			at     string
		)
		if err := rows.Scan(&metric, &m.Value, &at); err != nil {
			return nil, fmt.Errorf("storage: scan sample: %w", err)
		}
		m.Name = model.MetricName(metric)
		if m.Timestamp, err = time.Parse(sqliteTimeLayout, at); err != nil {
			return nil, fmt.Errorf("storage: parse sample time: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (model.DemoSession, error) {
	var (
		ds        model.DemoSession
		id        string
		startedAt string
		endedAt   sql.NullString
		info      sql.NullString
	)
	if err := row.Scan(&id, &startedAt, &endedAt, &ds.Completed, &info); err != nil {
		return model.DemoSession{}, err
	}
	var err error
	if ds.SessionID, err = uuid.Parse(id); err != nil {
		return model.DemoSession{}, fmt.Errorf("parse session id: %w", err)
	}
	if ds.StartedAt, err = time.Parse(sqliteTimeLayout, startedAt); err != nil {
		return model.DemoSession{}, fmt.Errorf("parse started_at: %w", err)
	}
	if endedAt.Valid {
		t, err := time.Parse(sqliteTimeLayout, endedAt.String)
		if err != nil {
			return model.DemoSession{}, fmt.Errorf("parse ended_at: %w", err)
		}
		ds.EndedAt = &t
	}
	if info.Valid && info.String != "" {
		if err := json.Unmarshal([]byte(info.String), &ds.InvestorInfo); err != nil {
			return model.DemoSession{}, fmt.Errorf("decode investor_info: %w", err)
		}
	}
	return ds, nil
}

// encodeInfo returns nil for an empty payload so the column stays NULL.
func encodeInfo(info map[string]any) (any, error) {
	if len(info) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("storage: encode investor_info: %w", err)
	}
	return string(raw), nil
}

// migrator implementation.

func (s *SQLite) ensureTracking(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (s *SQLite) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

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

func (s *SQLite) applyMigration(ctx context.Context, name, body string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES (?) ON CONFLICT DO NOTHING`, name); err != nil {
		return err
	}
	return tx.Commit()
}
