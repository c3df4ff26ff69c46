package service

import (
	"context"
	"testing"

	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockIngestionJobRepository mocks IngestionJobRepositoryInterface
type MockIngestionJobRepository struct {
	mock.Mock
}

func (m *MockIngestionJobRepository) Create(ctx context.Context, job *domain.IngestionJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockIngestionJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestionJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestionJob), args.Error(1)
}

type staticUUID string

func (s staticUUID) NewString() string { return string(s) }

func TestJobService_Enqueue(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIngestionJobRepository)
	svc := NewJobServiceWithUUIDGen(repo, staticUUID("job-1"))

	repo.On("Create", ctx, mock.MatchedBy(func(j *domain.IngestionJob) bool {
		return j.ID == "job-1" && j.URL == "https://example.com/label" && j.Label == "drug-a" &&
			j.Status == domain.IngestionJobStatusPending
	})).Return(nil)

	job, err := svc.Enqueue(ctx, "https://example.com/label", "drug-a")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	repo.AssertExpectations(t)
}

func TestJobService_Enqueue_DefaultsLabelToURL(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIngestionJobRepository)
	svc := NewJobService(repo)

	repo.On("Create", ctx, mock.Anything).Return(nil)

	job, err := svc.Enqueue(ctx, "https://example.com/label", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/label", job.Label)
	assert.NotEmpty(t, job.ID)
}

func TestJobService_Enqueue_InvalidURL(t *testing.T) {
	repo := new(MockIngestionJobRepository)
	svc := NewJobService(repo)

	for _, u := range []string{"", "ftp://example.com/x", "/relative/path", "https://"} {
		_, err := svc.Enqueue(context.Background(), u, "")
		require.Error(t, err, u)
		assert.Equal(t, domain.ErrCodeValidation, domain.ErrorCode(err))
	}
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestJobService_GetJob(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIngestionJobRepository)
	svc := NewJobService(repo)

	job := &domain.IngestionJob{ID: "job-1", Status: domain.IngestionJobStatusCompleted}
	repo.On("GetByID", ctx, "job-1").Return(job, nil)
	repo.On("GetByID", ctx, "missing").Return(nil, domain.ErrIngestionJobNotFound)

	got, err := svc.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job, got)

	_, err = svc.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrIngestionJobNotFound)

	_, err = svc.GetJob(ctx, "")
	assert.ErrorIs(t, err, domain.ErrIngestionJobNotFound)
}
