package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/cloo-solutions/labelrag/internal/telemetry"
)

const (
	// DefaultRetrievalK is the number of chunks retrieved per question.
	DefaultRetrievalK = 4
	// DefaultMaxRetrievalK bounds the k a caller may request.
	DefaultMaxRetrievalK = 100
)

// SearchIndex is the read side of a VectorIndex.
type SearchIndex interface {
	Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error)
}

// Retriever embeds queries and looks up the closest chunks.
type Retriever struct {
	embedder Embedder
	index    SearchIndex
	k        int
	maxK     int
}

// NewRetriever creates a Retriever that returns k chunks when callers pass k == 0.
func NewRetriever(embedder Embedder, index SearchIndex, k int) *Retriever {
	if k <= 0 {
		k = DefaultRetrievalK
	}
	maxK := DefaultMaxRetrievalK
	if k > maxK {
		maxK = k
	}
	return &Retriever{embedder: embedder, index: index, k: k, maxK: maxK}
}

// WithMaxK sets the largest k RetrieveScored accepts. Values below the
// default k are raised to it.
func (r *Retriever) WithMaxK(maxK int) *Retriever {
	if maxK < r.k {
		maxK = r.k
	}
	r.maxK = maxK
	return r
}

// MaxK returns the largest accepted retrieval breadth.
func (r *Retriever) MaxK() int {
	return r.maxK
}

// K returns the configured retrieval breadth.
func (r *Retriever) K() int {
	return r.k
}

// Retrieve returns at most k chunks ordered best match first.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.Chunk, error) {
	scored, err := r.RetrieveScored(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return domain.Chunks(scored), nil
}

// RetrieveScored is Retrieve with similarity scores kept for diagnostics.
func (r *Retriever) RetrieveScored(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if k == 0 {
		k = r.k
	}

	ctx, span := telemetry.StartSpan(ctx, "Retriever.Retrieve", telemetry.SpanAttributes{
		Operation: domain.StageRetrieval,
		K:         k,
	})
	defer span.End()

	if k < 0 {
		return nil, domain.NewConfigurationError(fmt.Sprintf("k must be positive, got %d", k))
	}
	if k > r.maxK {
		return nil, domain.NewConfigurationError(fmt.Sprintf("k must be at most %d, got %d", r.maxK, k))
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewEmbeddingFailure(domain.StageRetrieval, err)
	}

	results, err := r.index.Search(ctx, vector, k)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	span.SetCount("results", len(results))
	return results, nil
}
