package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/cloo-solutions/labelrag/internal/service"
	"github.com/cloo-solutions/labelrag/internal/source"
	"github.com/cloo-solutions/labelrag/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3
)

// IngestionJobRepository defines the interface for ingestion job persistence
type IngestionJobRepository interface {
	// GetPendingJobs retrieves and claims pending ingestion jobs
	GetPendingJobs(ctx context.Context) ([]*domain.IngestionJob, error)

	// UpdateJobStatus updates the status of an ingestion job
	UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestionJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error

	// SetChunkCount records how many chunks the job added to the index
	SetChunkCount(ctx context.Context, jobID string, count int) error
}

// PageFetcher resolves a document page to its text.
type PageFetcher interface {
	Fetch(ctx context.Context, p source.Page) (*domain.SourceDocument, error)
}

// DocumentIngester chunks and indexes one document.
type DocumentIngester interface {
	IngestDocument(ctx context.Context, doc domain.SourceDocument) (service.AddReport, error)
}

// IngestionWorker processes ingestion jobs
type IngestionWorker struct {
	repo     IngestionJobRepository
	fetcher  PageFetcher
	ingester DocumentIngester
}

// NewIngestionWorker creates a new IngestionWorker instance
func NewIngestionWorker(repo IngestionJobRepository, fetcher PageFetcher, ingester DocumentIngester) *IngestionWorker {
	return &IngestionWorker{
		repo:     repo,
		fetcher:  fetcher,
		ingester: ingester,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestionWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending ingestion jobs", len(jobs))

	for i, job := range jobs {
		if ctx.Err() != nil {
			// The rest were claimed but never started.
			for _, rest := range jobs[i:] {
				if err := w.releaseJob(ctx, rest, ctx.Err()); err != nil {
					log.Printf("Error releasing job %s: %v", rest.ID, err)
				}
			}
			break
		}
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IngestionWorker) processJob(ctx context.Context, job *domain.IngestionJob) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionWorker.processJob", telemetry.SpanAttributes{
		SourceID:  job.Label,
		JobID:     job.ID,
		Operation: domain.StageIngestion,
	})
	defer span.End()

	log.Printf("Processing job %s for %s", job.ID, job.URL)

	doc, err := w.fetcher.Fetch(ctx, source.Page{URL: job.URL, Label: job.Label})
	if err != nil {
		span.SetError(err)
		return w.handleJobFailure(ctx, job, err)
	}

	report, err := w.ingester.IngestDocument(ctx, *doc)
	if err != nil {
		span.SetError(err)
		return w.handleJobFailure(ctx, job, err)
	}

	// Status writes outlive a cancelled run so the job never stays processing.
	writeCtx := context.WithoutCancel(ctx)
	if err := w.repo.SetChunkCount(writeCtx, job.ID, report.Added); err != nil {
		return fmt.Errorf("failed to record chunk count: %w", err)
	}

	if err := w.repo.UpdateJobStatus(writeCtx, job.ID, domain.IngestionJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed successfully (%d chunks, %d skipped)", job.ID, report.Added, report.Skipped)
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *IngestionWorker) handleJobFailure(ctx context.Context, job *domain.IngestionJob, jobErr error) error {
	if ctx.Err() != nil {
		return w.releaseJob(ctx, job, jobErr)
	}

	log.Printf("Job %s failed: %v", job.ID, jobErr)
	ctx = context.WithoutCancel(ctx)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if isPermanentJobError(jobErr) {
		log.Printf("Job %s cannot succeed on retry, marking as failed", job.ID)
		telemetry.CaptureMessage(ctx, fmt.Sprintf("ingestion job %s failed: %v", job.ID, jobErr))
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestionJobStatusFailed, jobErr.Error()); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		telemetry.CaptureMessage(ctx, fmt.Sprintf("ingestion job %s exceeded max retries: %v", job.ID, jobErr))
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestionJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestionJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}

// releaseJob puts a job interrupted by shutdown back to pending. The attempt
// does not count against MaxRetries.
func (w *IngestionWorker) releaseJob(ctx context.Context, job *domain.IngestionJob, cause error) error {
	log.Printf("Job %s interrupted, returning to pending: %v", job.ID, cause)
	errMsg := fmt.Sprintf("interrupted: %v", cause)
	if err := w.repo.UpdateJobStatus(context.WithoutCancel(ctx), job.ID, domain.IngestionJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to release interrupted job: %w", err)
	}
	return nil
}

// isPermanentJobError reports failures that the same page and config will
// reproduce on every attempt.
func isPermanentJobError(err error) bool {
	return domain.IsConfigurationError(err) ||
		errors.Is(err, domain.ErrDimensionMismatch) ||
		errors.Is(err, source.ErrNoPDFLink) ||
		errors.Is(err, source.ErrEmptyDocument) ||
		errors.Is(err, source.ErrTooLarge)
}
