package config

import (
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "LABELRAG"

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Empty keeps the index in memory and disables the job queue.
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"migrations"`

	// Empty leaves the API open.
	APIKey string `envconfig:"API_KEY"`

	ChunkSize       int    `envconfig:"CHUNK_SIZE" default:"512"`
	ChunkOverlap    int    `envconfig:"CHUNK_OVERLAP" default:"50"`
	RetrievalK      int    `envconfig:"RETRIEVAL_K" default:"4"`
	MaxRetrievalK   int    `envconfig:"MAX_RETRIEVAL_K" default:"100"`
	DuplicatePolicy string `envconfig:"DUPLICATE_POLICY" default:"skip"`

	EmbeddingProvider   string `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbeddingBatchSize  int    `envconfig:"EMBEDDING_BATCH_SIZE" default:"32"`
	GenerationProvider  string `envconfig:"GENERATION_PROVIDER" default:"openai"`
	GenerationModel     string `envconfig:"GENERATION_MODEL" default:"gpt-4o-mini"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	OllamaURL     string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaToken   string `envconfig:"OLLAMA_TOKEN"`

	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"60s"`
	ProviderRetries int           `envconfig:"PROVIDER_RETRIES" default:"2"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"labelrag-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"10s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects tuning parameters the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return domain.NewConfigurationError(fmt.Sprintf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	case c.ChunkOverlap < 0:
		return domain.NewConfigurationError(fmt.Sprintf("CHUNK_OVERLAP cannot be negative, got %d", c.ChunkOverlap))
	case c.ChunkOverlap >= c.ChunkSize:
		return domain.NewConfigurationError(fmt.Sprintf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize))
	case c.RetrievalK <= 0:
		return domain.NewConfigurationError(fmt.Sprintf("RETRIEVAL_K must be positive, got %d", c.RetrievalK))
	case c.MaxRetrievalK < c.RetrievalK:
		return domain.NewConfigurationError(fmt.Sprintf("MAX_RETRIEVAL_K (%d) cannot be smaller than RETRIEVAL_K (%d)", c.MaxRetrievalK, c.RetrievalK))
	case c.EmbeddingDimensions < 0:
		return domain.NewConfigurationError(fmt.Sprintf("EMBEDDING_DIMENSIONS cannot be negative, got %d", c.EmbeddingDimensions))
	case c.ProviderRetries < 0:
		return domain.NewConfigurationError(fmt.Sprintf("PROVIDER_RETRIES cannot be negative, got %d", c.ProviderRetries))
	}

	if c.DuplicatePolicy != "skip" && c.DuplicatePolicy != "allow" {
		return domain.NewConfigurationError(fmt.Sprintf("DUPLICATE_POLICY must be skip or allow, got %q", c.DuplicatePolicy))
	}
	if !validProvider(c.EmbeddingProvider) {
		return domain.NewConfigurationError(fmt.Sprintf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider))
	}
	if !validProvider(c.GenerationProvider) {
		return domain.NewConfigurationError(fmt.Sprintf("unknown GENERATION_PROVIDER %q", c.GenerationProvider))
	}

	return nil
}

func validProvider(p string) bool {
	return p == ProviderOpenAI || p == ProviderOllama
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// NeedsOpenAI reports whether either provider is OpenAI.
func (c *Config) NeedsOpenAI() bool {
	return c.EmbeddingProvider == ProviderOpenAI || c.GenerationProvider == ProviderOpenAI
}
