package domain

import (
	"fmt"
	"net/url"
	"time"
)

// IngestionJobStatus represents the status of an ingestion job
type IngestionJobStatus string

const (
	IngestionJobStatusPending    IngestionJobStatus = "pending"
	IngestionJobStatusProcessing IngestionJobStatus = "processing"
	IngestionJobStatusCompleted  IngestionJobStatus = "completed"
	IngestionJobStatusFailed     IngestionJobStatus = "failed"
)

// IngestionJob is a queued request to fetch a document page, extract its PDF
// text and add it to the index.
type IngestionJob struct {
	ID          string
	URL         string
	Label       string // source id given to the resulting document
	Status      IngestionJobStatus
	Retries     int32
	Error       string
	ChunkCount  int
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewIngestionJob creates a pending IngestionJob. An empty label defaults to the URL.
func NewIngestionJob(id, rawURL, label string, createdAt time.Time) *IngestionJob {
	if label == "" {
		label = rawURL
	}
	return &IngestionJob{
		ID:        id,
		URL:       rawURL,
		Label:     label,
		Status:    IngestionJobStatusPending,
		CreatedAt: createdAt,
	}
}

// ValidateIngestionJob validates an IngestionJob instance
func ValidateIngestionJob(j *IngestionJob) error {
	if j == nil {
		return fmt.Errorf("ingestion job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("ingestion job ID is required")
	}

	if j.URL == "" {
		return fmt.Errorf("ingestion job URL is required")
	}

	u, err := url.Parse(j.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ingestion job URL must be an absolute http(s) URL: %q", j.URL)
	}

	if !isValidIngestionJobStatus(j.Status) {
		return fmt.Errorf("ingestion job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("ingestion job Retries cannot be negative")
	}

	return nil
}

// Terminal reports whether the job will not be picked up again.
func (j *IngestionJob) Terminal() bool {
	return j.Status == IngestionJobStatusCompleted || j.Status == IngestionJobStatusFailed
}

func isValidIngestionJobStatus(s IngestionJobStatus) bool {
	switch s {
	case IngestionJobStatusPending, IngestionJobStatusProcessing,
		IngestionJobStatusCompleted, IngestionJobStatusFailed:
		return true
	}
	return false
}
