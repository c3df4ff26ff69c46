package service

import "context"

// Embedder maps text to a fixed-length vector. Implementations must return an
// error instead of a zero or empty vector when the provider fails.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by providers that can embed several texts in
// one call. The returned slice is index-aligned with texts.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
