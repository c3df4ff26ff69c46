package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/cloo-solutions/labelrag/internal/openai"
	"github.com/cloo-solutions/labelrag/internal/service"
	"github.com/cloo-solutions/labelrag/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIngestionJobRepository is a mock implementation of IngestionJobRepository
type MockIngestionJobRepository struct {
	mock.Mock
}

func (m *MockIngestionJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.IngestionJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IngestionJob), args.Error(1)
}

func (m *MockIngestionJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestionJobStatus, errMsg string) error {
	args := m.Called(ctx, jobID, status, errMsg)
	return args.Error(0)
}

func (m *MockIngestionJobRepository) IncrementRetries(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockIngestionJobRepository) SetChunkCount(ctx context.Context, jobID string, count int) error {
	args := m.Called(ctx, jobID, count)
	return args.Error(0)
}

// MockPageFetcher is a mock implementation of PageFetcher
type MockPageFetcher struct {
	mock.Mock
}

func (m *MockPageFetcher) Fetch(ctx context.Context, p source.Page) (*domain.SourceDocument, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SourceDocument), args.Error(1)
}

// MockDocumentIngester is a mock implementation of DocumentIngester
type MockDocumentIngester struct {
	mock.Mock
}

func (m *MockDocumentIngester) IngestDocument(ctx context.Context, doc domain.SourceDocument) (service.AddReport, error) {
	args := m.Called(ctx, doc)
	return args.Get(0).(service.AddReport), args.Error(1)
}

func pendingJob(id string, retries int32) *domain.IngestionJob {
	return &domain.IngestionJob{
		ID:      id,
		URL:     "https://example.com/" + id,
		Label:   "label-" + id,
		Status:  domain.IngestionJobStatusPending,
		Retries: retries,
	}
}

func pageFor(job *domain.IngestionJob) source.Page {
	return source.Page{URL: job.URL, Label: job.Label}
}

func nonEmpty(msg string) bool { return msg != "" }

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_NotifyWakesBeforeInterval tests that Notify triggers a poll without waiting for the ticker
func TestWorker_NotifyWakesBeforeInterval(t *testing.T) {
	called := make(chan struct{}, 1)
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil).Run(func(mock.Arguments) {
		select {
		case called <- struct{}{}:
		default:
		}
	})

	worker := NewWorker(mockProcessor, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Start(ctx)
	worker.Notify()
	worker.Notify() // coalesces, never blocks

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not wake up on Notify")
	}

	worker.Stop()
	worker.Stop()
}

// TestIngestionWorker_ProcessJobs_NoPendingJobs tests when there are no pending jobs
func TestIngestionWorker_ProcessJobs_NoPendingJobs(t *testing.T) {
	mockRepo := new(MockIngestionJobRepository)
	mockFetcher := new(MockPageFetcher)
	mockIngester := new(MockDocumentIngester)

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestionJob{}, nil)

	worker := NewIngestionWorker(mockRepo, mockFetcher, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockFetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	mockIngester.AssertNotCalled(t, "IngestDocument", mock.Anything, mock.Anything)
}

// TestIngestionWorker_ProcessJobs_Success tests successful job processing
func TestIngestionWorker_ProcessJobs_Success(t *testing.T) {
	mockRepo := new(MockIngestionJobRepository)
	mockFetcher := new(MockPageFetcher)
	mockIngester := new(MockDocumentIngester)

	job := pendingJob("job-1", 0)
	doc := domain.NewSourceDocument(job.Label, "Drug A: indicated for condition X.")

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestionJob{job}, nil)
	mockFetcher.On("Fetch", mock.Anything, pageFor(job)).Return(doc, nil)
	mockIngester.On("IngestDocument", mock.Anything, *doc).Return(service.AddReport{Added: 2}, nil)
	mockRepo.On("SetChunkCount", mock.Anything, "job-1", 2).Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestionJobStatusCompleted, "").Return(nil)

	worker := NewIngestionWorker(mockRepo, mockFetcher, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockFetcher.AssertExpectations(t)
	mockIngester.AssertExpectations(t)
}

// TestIngestionWorker_ProcessJobs_FailureWithRetry tests job failure with retry
func TestIngestionWorker_ProcessJobs_FailureWithRetry(t *testing.T) {
	mockRepo := new(MockIngestionJobRepository)
	mockFetcher := new(MockPageFetcher)
	mockIngester := new(MockDocumentIngester)

	job := pendingJob("job-1", 0)

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestionJob{job}, nil)
	mockFetcher.On("Fetch", mock.Anything, pageFor(job)).
		Return(nil, domain.NewIngestionFailure(job.Label, errors.New("connection reset")))
	mockRepo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestionJobStatusPending, mock.MatchedBy(nonEmpty)).Return(nil)

	worker := NewIngestionWorker(mockRepo, mockFetcher, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockIngester.AssertNotCalled(t, "IngestDocument", mock.Anything, mock.Anything)
}

// TestIngestionWorker_ProcessJobs_MaxRetriesExceeded tests job failure after max retries
func TestIngestionWorker_ProcessJobs_MaxRetriesExceeded(t *testing.T) {
	mockRepo := new(MockIngestionJobRepository)
	mockFetcher := new(MockPageFetcher)
	mockIngester := new(MockDocumentIngester)

	job := pendingJob("job-1", 2)
	doc := domain.NewSourceDocument(job.Label, "text")

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestionJob{job}, nil)
	mockFetcher.On("Fetch", mock.Anything, pageFor(job)).Return(doc, nil)
	mockIngester.On("IngestDocument", mock.Anything, *doc).
		Return(service.AddReport{}, domain.NewEmbeddingFailure(domain.StageEmbedding, errors.New("503")))
	mockRepo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestionJobStatusFailed, mock.MatchedBy(func(msg string) bool {
		return strings.HasPrefix(msg, "max retries exceeded")
	})).Return(nil)

	worker := NewIngestionWorker(mockRepo, mockFetcher, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "SetChunkCount", mock.Anything, mock.Anything, mock.Anything)
}

// TestIngestionWorker_ProcessJobs_PermanentFailure tests that unrecoverable errors skip retries
func TestIngestionWorker_ProcessJobs_PermanentFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"no pdf link", domain.NewIngestionFailure("label-job-1", source.ErrNoPDFLink)},
		{"empty document", domain.NewIngestionFailure("label-job-1", source.ErrEmptyDocument)},
		{"dimension mismatch", domain.NewDimensionMismatch(domain.StageEmbedding, 3, 2)},
		{"configuration", fmt.Errorf("chunking: %w", domain.NewConfigurationError("overlap must be smaller than size"))},
		{"provider wrong dimensions", domain.NewEmbeddingFailure(domain.StageEmbedding, fmt.Errorf("%w: input 0", openai.ErrWrongDimensions))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockIngestionJobRepository)
			mockFetcher := new(MockPageFetcher)
			mockIngester := new(MockDocumentIngester)

			job := pendingJob("job-1", 0)

			mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestionJob{job}, nil)
			mockFetcher.On("Fetch", mock.Anything, pageFor(job)).Return(nil, tt.err)
			mockRepo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
			mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestionJobStatusFailed, mock.MatchedBy(nonEmpty)).Return(nil)

			worker := NewIngestionWorker(mockRepo, mockFetcher, mockIngester)
			err := worker.ProcessJobs(context.Background())

			assert.NoError(t, err)
			mockRepo.AssertExpectations(t)
			mockRepo.AssertNotCalled(t, "UpdateJobStatus", mock.Anything, "job-1", domain.IngestionJobStatusPending, mock.Anything)
		})
	}
}

// TestIngestionWorker_ProcessJobs_MultipleJobs tests that one failing job does not block the rest
func TestIngestionWorker_ProcessJobs_MultipleJobs(t *testing.T) {
	mockRepo := new(MockIngestionJobRepository)
	mockFetcher := new(MockPageFetcher)
	mockIngester := new(MockDocumentIngester)

	job1 := pendingJob("job-1", 0)
	job2 := pendingJob("job-2", 0)
	doc2 := domain.NewSourceDocument(job2.Label, "Drug B: indicated for condition Y.")

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestionJob{job1, job2}, nil)

	// Job 1 fails and goes back to pending
	mockFetcher.On("Fetch", mock.Anything, pageFor(job1)).Return(nil, errors.New("timeout"))
	mockRepo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestionJobStatusPending, mock.MatchedBy(nonEmpty)).Return(nil)

	// Job 2 succeeds
	mockFetcher.On("Fetch", mock.Anything, pageFor(job2)).Return(doc2, nil)
	mockIngester.On("IngestDocument", mock.Anything, *doc2).Return(service.AddReport{Added: 1}, nil)
	mockRepo.On("SetChunkCount", mock.Anything, "job-2", 1).Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-2", domain.IngestionJobStatusCompleted, "").Return(nil)

	worker := NewIngestionWorker(mockRepo, mockFetcher, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockFetcher.AssertExpectations(t)
	mockIngester.AssertExpectations(t)
}

// TestIngestionWorker_ProcessJobs_CancelledMidJob tests that a shutdown during
// ingestion returns claimed jobs to pending without spending a retry
func TestIngestionWorker_ProcessJobs_CancelledMidJob(t *testing.T) {
	mockRepo := new(MockIngestionJobRepository)
	mockFetcher := new(MockPageFetcher)
	mockIngester := new(MockDocumentIngester)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job1 := pendingJob("job-1", 0)
	job2 := pendingJob("job-2", 0)
	doc := domain.NewSourceDocument(job1.Label, "Drug A: indicated for condition X.")

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestionJob{job1, job2}, nil)
	mockFetcher.On("Fetch", mock.Anything, pageFor(job1)).Return(doc, nil)
	mockIngester.On("IngestDocument", mock.Anything, *doc).
		Run(func(mock.Arguments) { cancel() }).
		Return(service.AddReport{}, domain.NewEmbeddingFailure(domain.StageEmbedding, context.Canceled))

	var writeCtxs []context.Context
	interrupted := mock.MatchedBy(func(msg string) bool { return strings.HasPrefix(msg, "interrupted") })
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestionJobStatusPending, interrupted).
		Run(func(args mock.Arguments) { writeCtxs = append(writeCtxs, args.Get(0).(context.Context)) }).
		Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-2", domain.IngestionJobStatusPending, interrupted).
		Run(func(args mock.Arguments) { writeCtxs = append(writeCtxs, args.Get(0).(context.Context)) }).
		Return(nil)

	worker := NewIngestionWorker(mockRepo, mockFetcher, mockIngester)
	err := worker.ProcessJobs(ctx)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "IncrementRetries", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "UpdateJobStatus", mock.Anything, mock.Anything, domain.IngestionJobStatusFailed, mock.Anything)
	mockFetcher.AssertNotCalled(t, "Fetch", mock.Anything, pageFor(job2))
	for _, wctx := range writeCtxs {
		assert.NoError(t, wctx.Err())
	}
}

// TestIngestionWorker_ProcessJobs_RepositoryError tests repository error handling
func TestIngestionWorker_ProcessJobs_RepositoryError(t *testing.T) {
	mockRepo := new(MockIngestionJobRepository)
	mockFetcher := new(MockPageFetcher)
	mockIngester := new(MockDocumentIngester)

	mockRepo.On("GetPendingJobs", mock.Anything).Return(nil, errors.New("database error"))

	worker := NewIngestionWorker(mockRepo, mockFetcher, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch pending jobs")
	mockRepo.AssertExpectations(t)
}
