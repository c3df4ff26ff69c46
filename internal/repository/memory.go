package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cloo-solutions/labelrag/internal/domain"
)

// MemoryChunkStore keeps embedded chunks in process memory and searches them
// by brute-force cosine similarity.
type MemoryChunkStore struct {
	mu      sync.RWMutex
	entries []memoryEntry
	sources map[string]map[int]bool
}

type memoryEntry struct {
	chunk  domain.Chunk
	vector []float32
	norm   float64
}

func NewMemoryChunkStore() *MemoryChunkStore {
	return &MemoryChunkStore{sources: make(map[string]map[int]bool)}
}

// Append validates the whole batch, then publishes it under the write lock.
func (s *MemoryChunkStore) Append(ctx context.Context, entries []domain.EmbeddedChunk) error {
	if len(entries) == 0 {
		return nil
	}

	prepared := make([]memoryEntry, len(entries))
	for i, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("chunk %s: %w", e.Chunk.Key(), domain.ErrEmptyVector)
		}
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		prepared[i] = memoryEntry{chunk: e.Chunk, vector: vec, norm: l2norm(vec)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := len(prepared[0].vector)
	if len(s.entries) > 0 {
		dim = len(s.entries[0].vector)
	}
	for _, p := range prepared {
		if len(p.vector) != dim {
			return fmt.Errorf("chunk %s: %w: expected %d, got %d", p.chunk.Key(), domain.ErrDimensionMismatch, dim, len(p.vector))
		}
	}

	s.entries = append(s.entries, prepared...)
	for _, p := range prepared {
		seqs, ok := s.sources[p.chunk.SourceID]
		if !ok {
			seqs = make(map[int]bool)
			s.sources[p.chunk.SourceID] = seqs
		}
		seqs[p.chunk.SequenceIndex] = true
	}
	return nil
}

// Search scores every entry and returns the best k. Equal scores keep
// insertion order.
func (s *MemoryChunkStore) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	s.mu.RLock()
	entries := s.entries
	s.mu.RUnlock()

	qnorm := l2norm(vector)
	results := make([]domain.ScoredChunk, 0, len(entries))
	for _, e := range entries {
		if len(e.vector) != len(vector) {
			return nil, fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, len(e.vector), len(vector))
		}
		results = append(results, domain.ScoredChunk{
			Chunk: e.chunk,
			Score: cosine(e.vector, vector, e.norm, qnorm),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *MemoryChunkStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *MemoryChunkStore) Dimension(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return 0, nil
	}
	return len(s.entries[0].vector), nil
}

func (s *MemoryChunkStore) IndexedSequences(ctx context.Context, sourceID string) (map[int]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seqs := make(map[int]bool, len(s.sources[sourceID]))
	for seq := range s.sources[sourceID] {
		seqs[seq] = true
	}
	return seqs, nil
}

func (s *MemoryChunkStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.sources = make(map[string]map[int]bool)
	return nil
}

func l2norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero length.
func cosine(a, b []float32, anorm, bnorm float64) float32 {
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (anorm * bnorm))
}
