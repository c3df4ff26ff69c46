package admin

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/labelrag/internal/config"
	"github.com/cloo-solutions/labelrag/internal/source"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		ChunkSize:          512,
		ChunkOverlap:       50,
		RetrievalK:         4,
		MaxRetrievalK:      50,
		DuplicatePolicy:    "skip",
		EmbeddingProvider:  config.ProviderOllama,
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingBatchSize: 32,
		GenerationProvider: config.ProviderOllama,
		GenerationModel:    "gpt-4o-mini",
		OllamaURL:          "http://localhost:11434",
		ProviderTimeout:    time.Second,
		ProviderRetries:    1,
	}
}

func TestBuildStack_InMemory(t *testing.T) {
	stack, err := BuildStack(context.Background(), memoryConfig(), StackOptions{NeedGenerator: true})
	require.NoError(t, err)
	defer stack.Close()

	assert.Nil(t, stack.Pool)
	assert.Nil(t, stack.Jobs)
	assert.Nil(t, stack.Archive)
	assert.NotNil(t, stack.Index)
	assert.NotNil(t, stack.Retriever)
	assert.NotNil(t, stack.Ingestion)
	assert.NotNil(t, stack.Orchestrator)
	assert.Equal(t, 0, stack.Index.Dimension())
	assert.Equal(t, 50, stack.Retriever.MaxK())
}

func TestBuildStack_WithoutGenerator(t *testing.T) {
	stack, err := BuildStack(context.Background(), memoryConfig(), StackOptions{})
	require.NoError(t, err)
	defer stack.Close()

	assert.Nil(t, stack.Orchestrator)
}

func TestBuildStack_RejectsBadChunking(t *testing.T) {
	cfg := memoryConfig()
	cfg.ChunkOverlap = cfg.ChunkSize

	_, err := BuildStack(context.Background(), cfg, StackOptions{})
	assert.Error(t, err)
}

func TestBuildStack_RejectsUnknownDuplicatePolicy(t *testing.T) {
	cfg := memoryConfig()
	cfg.DuplicatePolicy = "sometimes"

	_, err := BuildStack(context.Background(), cfg, StackOptions{})
	assert.Error(t, err)
}

func TestNewEmbedder(t *testing.T) {
	t.Run("openai fixes the dimension", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.EmbeddingProvider = config.ProviderOpenAI
		cfg.EmbeddingDimensions = 256
		cfg.OpenAIAPIKey = "sk-test"

		embedder, dim, err := NewEmbedder(cfg)
		require.NoError(t, err)
		assert.NotNil(t, embedder)
		assert.Equal(t, 256, dim)
	})

	t.Run("openai without a key", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.EmbeddingProvider = config.ProviderOpenAI

		_, _, err := NewEmbedder(cfg)
		assert.ErrorContains(t, err, "LABELRAG_OPENAI_API_KEY")
	})

	t.Run("ollama learns the dimension", func(t *testing.T) {
		embedder, dim, err := NewEmbedder(memoryConfig())
		require.NoError(t, err)
		assert.NotNil(t, embedder)
		assert.Equal(t, 0, dim)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.EmbeddingProvider = "cohere"

		_, _, err := NewEmbedder(cfg)
		assert.ErrorContains(t, err, "cohere")
	})
}

func TestNewGenerator(t *testing.T) {
	cfg := memoryConfig()
	cfg.GenerationProvider = "bard"
	_, err := NewGenerator(cfg)
	assert.Error(t, err)

	cfg.GenerationProvider = config.ProviderOpenAI
	_, err = NewGenerator(cfg)
	assert.Error(t, err)

	cfg.OpenAIAPIKey = "sk-test"
	generator, err := NewGenerator(cfg)
	require.NoError(t, err)
	assert.NotNil(t, generator)
}

func TestOllamaModel(t *testing.T) {
	assert.Equal(t, "", ollamaModel("gpt-4o-mini", "gpt-4o-mini"))
	assert.Equal(t, "llama3.2", ollamaModel("llama3.2", "gpt-4o-mini"))
	assert.Equal(t, "", ollamaModel("", "gpt-4o-mini"))
}

func TestParsePageArg(t *testing.T) {
	tests := []struct {
		arg  string
		want source.Page
	}{
		{"NDA-1=https://example.com/a", source.Page{Label: "NDA-1", URL: "https://example.com/a"}},
		{"https://example.com/a?x=1", source.Page{URL: "https://example.com/a?x=1"}},
		{"example.com/a", source.Page{URL: "example.com/a"}},
		{"bare", source.Page{URL: "bare"}},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePageArg(tt.arg))
		})
	}
}

func TestSeedSources(t *testing.T) {
	stack, err := BuildStack(context.Background(), memoryConfig(), StackOptions{})
	require.NoError(t, err)

	cmd := &cobra.Command{Use: "test"}
	addSeedFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--url", "A=https://example.com/a",
		"--url", "https://example.com/b",
		"--dir", t.TempDir(),
	}))

	sources := seedSources(cmd, stack)
	assert.Len(t, sources, 2)

	empty := &cobra.Command{Use: "empty"}
	addSeedFlags(empty)
	assert.Empty(t, seedSources(empty, stack))
}

func TestMigrateCmd_Subcommands(t *testing.T) {
	cmd := MigrateCmd()
	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"up", "down"}, names)
}
