package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retrofitforge/twin/internal/testutil"
)

func TestPostgresStoreContract(t *testing.T) {
	testutil.RequireIntegration(t)
	tc := testutil.MustStartPostgres(t)

	ctx := context.Background()
	db, err := tc.NewTestDB(ctx, testutil.TestLogger())
	require.NoError(t, err)
	defer db.Close(ctx)

	require.NoError(t, db.Ping(ctx))
	exerciseStore(t, db)

	// A second open sees every migration as applied.
	again, err := tc.NewTestDB(ctx, testutil.TestLogger())
	require.NoError(t, err)
	again.Close(ctx)
}
