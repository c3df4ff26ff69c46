package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedded(source string, idx int, vec ...float32) domain.EmbeddedChunk {
	return domain.EmbeddedChunk{
		Chunk:  domain.Chunk{SourceID: source, SequenceIndex: idx, Text: fmt.Sprintf("%s-%d", source, idx)},
		Vector: vec,
	}
}

func TestMemoryChunkStore_SearchReturnsExactMatchFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryChunkStore()

	require.NoError(t, store.Append(ctx, []domain.EmbeddedChunk{
		embedded("a", 0, 1, 0, 0),
		embedded("a", 1, 0, 1, 0),
		embedded("b", 0, 0, 0, 1),
	}))

	results, err := store.Search(ctx, []float32{0, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Chunk.SourceID)
	assert.Equal(t, 1, results[0].Chunk.SequenceIndex)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestMemoryChunkStore_SearchEmpty(t *testing.T) {
	store := NewMemoryChunkStore()

	results, err := store.Search(context.Background(), []float32{1, 2}, 4)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestMemoryChunkStore_SearchTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryChunkStore()

	require.NoError(t, store.Append(ctx, []domain.EmbeddedChunk{
		embedded("first", 0, 1, 1),
		embedded("second", 0, 2, 2),
		embedded("third", 0, 3, 3),
	}))

	results, err := store.Search(ctx, []float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Chunk.SourceID)
	assert.Equal(t, "second", results[1].Chunk.SourceID)
	assert.Equal(t, "third", results[2].Chunk.SourceID)
}

func TestMemoryChunkStore_SearchFewerThanK(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryChunkStore()
	require.NoError(t, store.Append(ctx, []domain.EmbeddedChunk{embedded("a", 0, 1, 0)}))

	results, err := store.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestMemoryChunkStore_AppendRejectsMismatchedBatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryChunkStore()
	require.NoError(t, store.Append(ctx, []domain.EmbeddedChunk{embedded("a", 0, 1, 0)}))

	err := store.Append(ctx, []domain.EmbeddedChunk{
		embedded("b", 0, 1, 0),
		embedded("b", 1, 1, 0, 0),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	// Nothing from the rejected batch is visible.
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	seqs, err := store.IndexedSequences(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, seqs)
}

func TestMemoryChunkStore_AppendRejectsEmptyVector(t *testing.T) {
	store := NewMemoryChunkStore()

	err := store.Append(context.Background(), []domain.EmbeddedChunk{embedded("a", 0)})
	assert.ErrorIs(t, err, domain.ErrEmptyVector)
}

func TestMemoryChunkStore_AppendCopiesVectors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryChunkStore()
	vec := []float32{1, 0}
	require.NoError(t, store.Append(ctx, []domain.EmbeddedChunk{{Chunk: domain.Chunk{SourceID: "a"}, Vector: vec}}))

	vec[0] = 0
	vec[1] = 1

	results, err := store.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestMemoryChunkStore_DimensionAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryChunkStore()

	dim, err := store.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, dim)

	require.NoError(t, store.Append(ctx, []domain.EmbeddedChunk{embedded("a", 0, 1, 2, 3)}))
	dim, err = store.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dim)

	require.NoError(t, store.Clear(ctx))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	seqs, err := store.IndexedSequences(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, seqs)
}

func TestMemoryChunkStore_ZeroVectorScoresZero(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryChunkStore()
	require.NoError(t, store.Append(ctx, []domain.EmbeddedChunk{embedded("a", 0, 0, 0)}))

	results, err := store.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float32(0), results[0].Score)
}

func TestMemoryChunkStore_ConcurrentReadersDuringAppend(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryChunkStore()
	require.NoError(t, store.Append(ctx, []domain.EmbeddedChunk{embedded("seed", 0, 1, 0)}))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				results, err := store.Search(ctx, []float32{1, 0}, 3)
				assert.NoError(t, err)
				assert.NotEmpty(t, results)
			}
		}()
	}

	for i := 0; i < 50; i++ {
		require.NoError(t, store.Append(ctx, []domain.EmbeddedChunk{embedded("w", i, 0, 1)}))
	}
	wg.Wait()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 51, count)
}

func TestMemoryChunkStore_IndexedSequences(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryChunkStore()
	require.NoError(t, store.Append(ctx, []domain.EmbeddedChunk{
		embedded("a", 0, 1, 0),
		embedded("a", 2, 1, 0),
		embedded("b", 1, 1, 0),
	}))

	seqs, err := store.IndexedSequences(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{0: true, 2: true}, seqs)

	// The returned set is a copy.
	seqs[5] = true
	again, err := store.IndexedSequences(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, again, 2)
}
