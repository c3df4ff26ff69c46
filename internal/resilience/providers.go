package resilience

import (
	"context"

	"github.com/cloo-solutions/labelrag/internal/service"
)

type retryingEmbedder struct {
	inner service.Embedder
	cfg   RetryConfig
}

func (e *retryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return Retry(ctx, e.cfg, "embed", func(ctx context.Context) ([]float32, error) {
		return e.inner.Embed(ctx, text)
	})
}

type retryingBatchEmbedder struct {
	retryingEmbedder
	batch service.BatchEmbedder
}

func (e *retryingBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return Retry(ctx, e.cfg, "embed batch", func(ctx context.Context) ([][]float32, error) {
		return e.batch.EmbedBatch(ctx, texts)
	})
}

// WrapEmbedder retries failed embedding calls. A batch-capable provider stays
// batch-capable.
func WrapEmbedder(inner service.Embedder, cfg RetryConfig) service.Embedder {
	base := retryingEmbedder{inner: inner, cfg: cfg}
	if b, ok := inner.(service.BatchEmbedder); ok {
		return &retryingBatchEmbedder{retryingEmbedder: base, batch: b}
	}
	return &base
}

type retryingGenerator struct {
	inner service.Generator
	cfg   RetryConfig
}

// WrapGenerator retries failed generation calls. A failed attempt never
// leaks partial output; only a successful completion is returned.
func WrapGenerator(inner service.Generator, cfg RetryConfig) service.Generator {
	return &retryingGenerator{inner: inner, cfg: cfg}
}

func (g *retryingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return Retry(ctx, g.cfg, "generate", func(ctx context.Context) (string, error) {
		return g.inner.Generate(ctx, prompt)
	})
}
