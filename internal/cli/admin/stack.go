package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/labelrag/internal/config"
	"github.com/cloo-solutions/labelrag/internal/database"
	"github.com/cloo-solutions/labelrag/internal/ollama"
	"github.com/cloo-solutions/labelrag/internal/openai"
	"github.com/cloo-solutions/labelrag/internal/repository"
	"github.com/cloo-solutions/labelrag/internal/resilience"
	"github.com/cloo-solutions/labelrag/internal/service"
	"github.com/cloo-solutions/labelrag/internal/source"
	"github.com/cloo-solutions/labelrag/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
)

// Stack is the wired pipeline shared by serve, ingest and ask.
type Stack struct {
	Config       *config.Config
	Pool         *pgxpool.Pool                      // nil without a database
	Jobs         *repository.IngestionJobRepository // nil without a database
	Archive      *storage.S3Client                  // nil without S3
	Index        *service.VectorIndex
	Retriever    *service.Retriever
	Orchestrator *service.Orchestrator
	Ingestion    *service.IngestionService
}

// StackOptions controls optional startup steps.
type StackOptions struct {
	Migrate bool
	// NeedGenerator is false for commands that never answer questions.
	NeedGenerator bool
}

// BuildStack connects storage and providers according to cfg.
func BuildStack(ctx context.Context, cfg *config.Config, opts StackOptions) (*Stack, error) {
	chunkCfg := service.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
	if err := chunkCfg.Validate(); err != nil {
		return nil, err
	}
	duplicates, err := service.ParseDuplicatePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return nil, err
	}

	embedder, dimension, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	stack := &Stack{Config: cfg}

	var store service.ChunkStore
	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, err
		}
		stack.Pool = pool
		log.Println("connected to database")

		if opts.Migrate {
			if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
				stack.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		store = repository.NewChunkRepository(pool)
		stack.Jobs = repository.NewIngestionJobRepository(pool)
	} else {
		log.Println("no database configured, keeping the index in memory")
		store = repository.NewMemoryChunkStore()
	}

	if cfg.HasS3() {
		archive, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			stack.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			stack.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		stack.Archive = archive
	}

	stack.Index = service.NewVectorIndexWithConfig(embedder, store, service.IndexConfig{
		Dimension:  dimension,
		BatchSize:  cfg.EmbeddingBatchSize,
		Duplicates: duplicates,
	})
	stack.Retriever = service.NewRetriever(embedder, stack.Index, cfg.RetrievalK).WithMaxK(cfg.MaxRetrievalK)
	stack.Ingestion = service.NewIngestionService(stack.Index, chunkCfg)

	if opts.NeedGenerator {
		generator, err := NewGenerator(cfg)
		if err != nil {
			stack.Close()
			return nil, err
		}
		stack.Orchestrator = service.NewOrchestrator(stack.Retriever, generator, cfg.RetrievalK)
	}

	return stack, nil
}

// PageSource returns a PageSource that archives to S3 when configured.
func (s *Stack) PageSource(pages ...source.Page) *source.PageSource {
	cfg := source.PageSourceConfig{}
	if s.Archive != nil {
		cfg.Archive = s.Archive
	}
	return source.NewPageSource(cfg, pages...)
}

func (s *Stack) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func retryConfig(cfg *config.Config) resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxRetries = cfg.ProviderRetries
	rc.Timeout = cfg.ProviderTimeout
	return rc
}

// NewEmbedder builds the configured embedding provider wrapped with retries.
// The returned dimension is zero when the provider does not fix one, in which
// case the index learns it from the first vector.
func NewEmbedder(cfg *config.Config) (service.Embedder, int, error) {
	var (
		embedder  service.Embedder
		dimension int
	)

	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		if !cfg.HasOpenAI() {
			return nil, 0, fmt.Errorf("LABELRAG_OPENAI_API_KEY is required for the openai embedding provider")
		}
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		})
		embedder, dimension = client, client.Dimensions()
	case config.ProviderOllama:
		embedder = ollama.NewClient(ollama.Config{
			BaseURL:        cfg.OllamaURL,
			Token:          cfg.OllamaToken,
			EmbeddingModel: ollamaModel(cfg.EmbeddingModel, openai.DefaultEmbeddingModel),
		})
	default:
		return nil, 0, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}

	log.Printf("embedding provider: %s (%s)", cfg.EmbeddingProvider, cfg.EmbeddingModel)
	return resilience.WrapEmbedder(embedder, retryConfig(cfg)), dimension, nil
}

// NewGenerator builds the configured generation provider wrapped with retries.
func NewGenerator(cfg *config.Config) (service.Generator, error) {
	var generator service.Generator

	switch cfg.GenerationProvider {
	case config.ProviderOpenAI:
		if !cfg.HasOpenAI() {
			return nil, fmt.Errorf("LABELRAG_OPENAI_API_KEY is required for the openai generation provider")
		}
		generator = openai.NewClientWithConfig(openai.Config{
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			ChatModel: cfg.GenerationModel,
		})
	case config.ProviderOllama:
		generator = ollama.NewClient(ollama.Config{
			BaseURL:   cfg.OllamaURL,
			Token:     cfg.OllamaToken,
			ChatModel: ollamaModel(cfg.GenerationModel, openai.DefaultChatModel),
		})
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.GenerationProvider)
	}

	log.Printf("generation provider: %s (%s)", cfg.GenerationProvider, cfg.GenerationModel)
	return resilience.WrapGenerator(generator, retryConfig(cfg)), nil
}

// ollamaModel drops the OpenAI default model names, which Ollama does not
// serve, so the Ollama client falls back to its own defaults.
func ollamaModel[T ~string](model string, openaiDefault T) string {
	if model == string(openaiDefault) {
		return ""
	}
	return model
}
