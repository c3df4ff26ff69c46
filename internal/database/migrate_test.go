//go:build integration

package database_test

import (
	"context"
	"testing"

	"github.com/cloo-solutions/labelrag/internal/database"
	"github.com/cloo-solutions/labelrag/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	require.NoError(t, database.RunMigrations(pc.ConnectionString(), "../../migrations"))
	// A second run is a no-op.
	require.NoError(t, database.RunMigrations(pc.ConnectionString(), "../../migrations"))

	pool, err := database.NewPool(ctx, database.Config{URL: pc.ConnectionString(), MaxConns: 4})
	require.NoError(t, err)
	defer pool.Close()

	var tables int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_name IN ('chunks', 'ingestion_jobs')`,
	).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 2, tables)

	require.NoError(t, database.RollbackMigrations(pc.ConnectionString(), "../../migrations", 1))
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'ingestion_jobs'`,
	).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 0, tables)
}

func TestNewPool_BadURL(t *testing.T) {
	_, err := database.NewPool(context.Background(), database.Config{URL: "://not-a-url"})
	assert.Error(t, err)
}
