//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/cloo-solutions/labelrag/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(label string) *domain.IngestionJob {
	return domain.NewIngestionJob(uuid.NewString(), "https://example.com/labels/"+label, label,
		time.Now().UTC().Truncate(time.Microsecond))
}

func TestIngestionJobRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestionJobRepository(pool)
	job := newTestJob("drug-a")
	require.NoError(t, repo.Create(ctx, job))

	retrieved, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, retrieved.ID)
	assert.Equal(t, job.URL, retrieved.URL)
	assert.Equal(t, "drug-a", retrieved.Label)
	assert.Equal(t, domain.IngestionJobStatusPending, retrieved.Status)
	assert.Equal(t, int32(0), retrieved.Retries)
	assert.Empty(t, retrieved.Error)
	assert.Nil(t, retrieved.ProcessedAt)
}

func TestIngestionJobRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestionJobRepository(pool)
	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrIngestionJobNotFound)
}

func TestIngestionJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestionJobRepository(pool)
	job := newTestJob("drug-b")
	require.NoError(t, repo.Create(ctx, job))

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.IngestionJobStatusProcessing, claimed[0].Status)

	again, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, repo.IncrementRetries(ctx, job.ID))
	require.NoError(t, repo.SetChunkCount(ctx, job.ID, 7))
	require.NoError(t, repo.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusCompleted, ""))

	done, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionJobStatusCompleted, done.Status)
	assert.Equal(t, int32(1), done.Retries)
	assert.Equal(t, 7, done.ChunkCount)
	assert.NotNil(t, done.ProcessedAt)
}

func TestIngestionJobRepository_UpdateStatus_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestionJobRepository(pool)
	err := repo.UpdateStatus(ctx, uuid.NewString(), domain.IngestionJobStatusFailed, "boom")
	assert.ErrorIs(t, err, domain.ErrIngestionJobNotFound)
}

func TestIngestionJobRepository_ConcurrentClaimsDoNotOverlap(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestionJobRepository(pool)
	for i := 0; i < 20; i++ {
		require.NoError(t, repo.Create(ctx, newTestJob(uuid.NewString())))
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			jobs, err := repo.ClaimPending(ctx, 5)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, j := range jobs {
				seen[j.ID]++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 20)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s claimed more than once", id)
	}
}
