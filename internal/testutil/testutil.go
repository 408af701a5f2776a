// Package testutil provides shared test infrastructure for integration tests
// that require a PostgreSQL container.
//
// Usage:
//
//	func TestPostgres(t *testing.T) {
//	    testutil.RequireIntegration(t)
//	    tc := testutil.MustStartPostgres(t)
//	    db, _ := tc.NewTestDB(context.Background(), testutil.TestLogger())
//	}
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/retrofitforge/twin/internal/storage"
)

// IntegrationEnv gates tests that need Docker.
const IntegrationEnv = "TWIN_INTEGRATION"

// TestContainer wraps a testcontainers container with a DSN for connecting.
type TestContainer struct {
	Container testcontainers.Container
	DSN       string
}

// RequireIntegration skips t unless TWIN_INTEGRATION=1.
func RequireIntegration(t testing.TB) {
	t.Helper()
	if os.Getenv(IntegrationEnv) != "1" {
		t.Skipf("set %s=1 to run integration tests", IntegrationEnv)
	}
}

// MustStartPostgres starts a PostgreSQL container and registers its
// termination with t.Cleanup. Fails the test on error.
func MustStartPostgres(t testing.TB) *TestContainer {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "twin",
			"POSTGRES_PASSWORD": "twin",
			"POSTGRES_DB":       "twin",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("testutil: failed to start container: %v", err)
	}
	tc := &TestContainer{Container: container}
	t.Cleanup(tc.Terminate)

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("testutil: failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("testutil: failed to get container port: %v", err)
	}

	tc.DSN = fmt.Sprintf("postgres://twin:twin@%s:%s/twin?sslmode=disable", host, port.Port())
	return tc
}

// NewTestDB opens a Postgres store against this container. Migrations run
// as part of opening.
func (tc *TestContainer) NewTestDB(ctx context.Context, logger *slog.Logger) (*storage.Postgres, error) {
	db, err := storage.OpenPostgres(ctx, tc.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("testutil: open postgres: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container.
func (tc *TestContainer) Terminate() {
	_ = tc.Container.Terminate(context.Background())
}

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
