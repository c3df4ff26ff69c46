package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/cloo-solutions/labelrag/internal/domain"
)

const defaultEmbeddingBatchSize = 32

// ChunkStore persists embedded chunks and answers similarity queries.
// Search must order by descending score with ties broken by insertion order,
// and Append must publish a batch atomically to concurrent readers.
type ChunkStore interface {
	Append(ctx context.Context, entries []domain.EmbeddedChunk) error
	Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error)
	Count(ctx context.Context) (int, error)
	Dimension(ctx context.Context) (int, error)
	// IndexedSequences returns the sequence indexes already stored for sourceID.
	IndexedSequences(ctx context.Context, sourceID string) (map[int]bool, error)
	Clear(ctx context.Context) error
}

// DuplicatePolicy decides what happens when a source id is ingested twice.
type DuplicatePolicy string

const (
	// DuplicatePolicyAllow appends the chunks again.
	DuplicatePolicyAllow DuplicatePolicy = "allow"
	// DuplicatePolicySkip keeps the chunks already indexed for the source.
	DuplicatePolicySkip DuplicatePolicy = "skip"
)

// ParseDuplicatePolicy accepts "allow" or "skip".
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case DuplicatePolicyAllow, DuplicatePolicySkip:
		return DuplicatePolicy(s), nil
	}
	return "", domain.NewConfigurationError(fmt.Sprintf("unknown duplicate policy %q (want allow or skip)", s))
}

// IndexConfig controls a VectorIndex.
type IndexConfig struct {
	// Dimension fixes the vector length. Zero means the first stored vector decides.
	Dimension  int
	BatchSize  int
	Duplicates DuplicatePolicy
}

// DefaultIndexConfig returns the default index configuration.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		BatchSize:  defaultEmbeddingBatchSize,
		Duplicates: DuplicatePolicySkip,
	}
}

// AddReport summarizes one Add call. On failure Added counts the chunks that
// were stored before the failing one.
type AddReport struct {
	Added   int
	Skipped int
}

// VectorIndex embeds chunks through an Embedder and keeps them in a ChunkStore.
type VectorIndex struct {
	embedder Embedder
	store    ChunkStore
	cfg      IndexConfig

	writeMu   sync.Mutex
	dimension atomic.Int64
}

// NewVectorIndex creates a VectorIndex with the default configuration.
func NewVectorIndex(embedder Embedder, store ChunkStore) *VectorIndex {
	return NewVectorIndexWithConfig(embedder, store, DefaultIndexConfig())
}

// NewVectorIndexWithConfig creates a VectorIndex with explicit configuration.
func NewVectorIndexWithConfig(embedder Embedder, store ChunkStore, cfg IndexConfig) *VectorIndex {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultEmbeddingBatchSize
	}
	if cfg.Duplicates == "" {
		cfg.Duplicates = DuplicatePolicySkip
	}
	idx := &VectorIndex{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}
	idx.dimension.Store(int64(cfg.Dimension))
	return idx
}

// Add embeds chunks in order and appends them to the store. Concurrent
// callers are serialized so each source keeps its sequence order.
func (x *VectorIndex) Add(ctx context.Context, chunks []domain.Chunk) (AddReport, error) {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	var report AddReport

	if err := x.loadDimension(ctx); err != nil {
		return report, err
	}

	pending, skipped, err := x.filterDuplicates(ctx, chunks)
	if err != nil {
		return report, err
	}
	report.Skipped = skipped

	for start := 0; start < len(pending); start += x.cfg.BatchSize {
		end := start + x.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		embedded, embedErr := x.embedBatch(ctx, batch)
		if len(embedded) > 0 {
			if err := x.store.Append(ctx, embedded); err != nil {
				return report, fmt.Errorf("failed to append chunks: %w", err)
			}
			report.Added += len(embedded)
		}
		if embedErr != nil {
			return report, embedErr
		}
	}

	return report, nil
}

// Search returns the k stored chunks most similar to vector, best first.
func (x *VectorIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, domain.NewConfigurationError(fmt.Sprintf("k must be positive, got %d", k))
	}
	if len(vector) == 0 {
		return nil, domain.NewEmbeddingFailure(domain.StageRetrieval, domain.ErrEmptyVector)
	}

	if dim := int(x.dimension.Load()); dim > 0 && len(vector) != dim {
		return nil, domain.NewDimensionMismatch(domain.StageRetrieval, dim, len(vector))
	}

	results, err := x.store.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	if results == nil {
		results = []domain.ScoredChunk{}
	}
	return results, nil
}

// Len returns the number of stored chunks.
func (x *VectorIndex) Len(ctx context.Context) (int, error) {
	return x.store.Count(ctx)
}

// Dimension returns the vector length of the index, or 0 before the first vector.
func (x *VectorIndex) Dimension() int {
	return int(x.dimension.Load())
}

// Clear drops every stored chunk. A dimension learned from data is forgotten.
func (x *VectorIndex) Clear(ctx context.Context) error {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	if err := x.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	x.dimension.Store(int64(x.cfg.Dimension))
	return nil
}

func (x *VectorIndex) loadDimension(ctx context.Context) error {
	if x.dimension.Load() > 0 {
		return nil
	}
	dim, err := x.store.Dimension(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index dimension: %w", err)
	}
	x.dimension.Store(int64(dim))
	return nil
}

// filterDuplicates drops chunks whose (source, sequence index) is already
// stored, so a source left partial by a failed Add is completed on retry.
func (x *VectorIndex) filterDuplicates(ctx context.Context, chunks []domain.Chunk) ([]domain.Chunk, int, error) {
	if x.cfg.Duplicates != DuplicatePolicySkip {
		return chunks, 0, nil
	}

	indexed := make(map[string]map[int]bool)
	for _, c := range chunks {
		if _, seen := indexed[c.SourceID]; seen {
			continue
		}
		seqs, err := x.store.IndexedSequences(ctx, c.SourceID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to check source %q: %w", c.SourceID, err)
		}
		if seqs == nil {
			seqs = map[int]bool{}
		}
		indexed[c.SourceID] = seqs
	}

	pending := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !indexed[c.SourceID][c.SequenceIndex] {
			pending = append(pending, c)
		}
	}

	skipped := len(chunks) - len(pending)
	if skipped > 0 {
		log.Printf("index: skipping %d already indexed chunks, %d to add", skipped, len(pending))
	}
	return pending, skipped, nil
}

// embedBatch returns the embedded prefix of batch that succeeded, plus the
// failure that stopped it, if any.
func (x *VectorIndex) embedBatch(ctx context.Context, batch []domain.Chunk) ([]domain.EmbeddedChunk, error) {
	vectors, failedAt, err := x.vectorsFor(ctx, batch)

	embedded := make([]domain.EmbeddedChunk, 0, len(vectors))
	for i, vec := range vectors {
		if verr := x.checkVector(vec); verr != nil {
			return embedded, chunkFailure(batch[i], verr)
		}
		embedded = append(embedded, domain.EmbeddedChunk{Chunk: batch[i], Vector: vec})
	}

	if err != nil {
		return embedded, chunkFailure(batch[failedAt], err)
	}
	return embedded, nil
}

// vectorsFor embeds the batch. On error, failedAt is the index of the chunk
// that could not be embedded and the returned vectors cover batch[:failedAt].
func (x *VectorIndex) vectorsFor(ctx context.Context, batch []domain.Chunk) ([][]float32, int, error) {
	if be, ok := x.embedder.(BatchEmbedder); ok && len(batch) > 1 {
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := be.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, 0, err
		}
		if len(vectors) != len(batch) {
			return nil, 0, fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(batch))
		}
		return vectors, 0, nil
	}

	vectors := make([][]float32, 0, len(batch))
	for i, c := range batch {
		vec, err := x.embedder.Embed(ctx, c.Text)
		if err != nil {
			return vectors, i, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, 0, nil
}

// checkVector fixes the index dimension on first use and rejects mismatches.
func (x *VectorIndex) checkVector(vec []float32) error {
	if len(vec) == 0 {
		return domain.ErrEmptyVector
	}
	dim := int(x.dimension.Load())
	if dim == 0 {
		x.dimension.Store(int64(len(vec)))
		return nil
	}
	if len(vec) != dim {
		return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, dim, len(vec))
	}
	return nil
}

func chunkFailure(c domain.Chunk, cause error) error {
	return domain.NewEmbeddingFailure(domain.StageEmbedding, fmt.Errorf("chunk %s: %w", c.Key(), cause))
}
