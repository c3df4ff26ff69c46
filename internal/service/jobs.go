package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/google/uuid"
)

// UUIDGenerator defines the interface for generating UUIDs
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// IngestionJobRepositoryInterface defines persistence for queued ingestion jobs
type IngestionJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestionJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestionJob, error)
}

// JobService queues document pages for background ingestion.
type JobService struct {
	repo    IngestionJobRepositoryInterface
	uuidGen UUIDGenerator
}

// NewJobService creates a new JobService instance
func NewJobService(repo IngestionJobRepositoryInterface) *JobService {
	return &JobService{repo: repo, uuidGen: &DefaultUUIDGenerator{}}
}

// NewJobServiceWithUUIDGen creates a JobService with a custom id generator.
func NewJobServiceWithUUIDGen(repo IngestionJobRepositoryInterface, uuidGen UUIDGenerator) *JobService {
	return &JobService{repo: repo, uuidGen: uuidGen}
}

// Enqueue validates and stores a pending job for rawURL.
func (s *JobService) Enqueue(ctx context.Context, rawURL, label string) (*domain.IngestionJob, error) {
	job := domain.NewIngestionJob(s.uuidGen.NewString(), rawURL, label, time.Now().UTC())
	if err := domain.ValidateIngestionJob(job); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid ingestion request", err)
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob returns the job with the given id.
func (s *JobService) GetJob(ctx context.Context, id string) (*domain.IngestionJob, error) {
	if id == "" {
		return nil, domain.ErrIngestionJobNotFound
	}
	return s.repo.GetByID(ctx, id)
}
