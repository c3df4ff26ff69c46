package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"

	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockEmbedder mocks an embedding provider
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockBatchEmbedder mocks a provider with a batch endpoint
type MockBatchEmbedder struct {
	MockEmbedder
}

func (m *MockBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// MockGenerator mocks a generation provider
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockChunkRetriever mocks the retrieval dependency of the Orchestrator
type MockChunkRetriever struct {
	mock.Mock
}

func (m *MockChunkRetriever) RetrieveScored(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredChunk), args.Error(1)
}

// vocabEmbedder is a deterministic bag-of-words embedder. Each distinct
// lowercase word gets its own dimension on first sight.
type vocabEmbedder struct {
	dim   int
	mu    sync.Mutex
	vocab map[string]int
	calls int
}

func newVocabEmbedder(dim int) *vocabEmbedder {
	return &vocabEmbedder{dim: dim, vocab: make(map[string]int)}
}

func (e *vocabEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++

	vec := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		slot, ok := e.vocab[w]
		if !ok {
			slot = len(e.vocab) % e.dim
			e.vocab[w] = slot
		}
		vec[slot]++
	}
	return vec, nil
}

// failingEmbedder fails on any text containing trigger.
type failingEmbedder struct {
	inner   Embedder
	trigger string
}

var errProviderDown = errors.New("provider unavailable")

func (e *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, e.trigger) {
		return nil, errProviderDown
	}
	return e.inner.Embed(ctx, text)
}

// fixedEmbedder returns vectors of a fixed length, one per call.
type fixedEmbedder struct {
	dim int
}

func (e fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for i := range vec {
		vec[i] = 1
	}
	return vec, nil
}

// alwaysFailingGenerator simulates a generation provider that is down.
type alwaysFailingGenerator struct{}

func (alwaysFailingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "partial garbled outp", errProviderDown
}

// echoGenerator returns the prompt it was given.
type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return prompt, nil
}

// flakyEmbedder fails exactly once, on call number failOn.
type flakyEmbedder struct {
	inner  Embedder
	failOn int

	mu    sync.Mutex
	calls int
}

func (e *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()

	if call == e.failOn {
		return nil, errProviderDown
	}
	return e.inner.Embed(ctx, text)
}
