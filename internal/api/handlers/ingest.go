package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/cloo-solutions/labelrag/internal/api"
	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/cloo-solutions/labelrag/internal/service"
	"github.com/cloo-solutions/labelrag/internal/source"
	"github.com/go-chi/chi/v5"
)

type DocumentIngester interface {
	IngestDocument(ctx context.Context, doc domain.SourceDocument) (service.AddReport, error)
}

type JobQueue interface {
	Enqueue(ctx context.Context, rawURL, label string) (*domain.IngestionJob, error)
	GetJob(ctx context.Context, id string) (*domain.IngestionJob, error)
}

// JobNotifier wakes the ingestion worker after a job is queued.
type JobNotifier interface {
	Notify()
}

// ArchiveLinker signs download links for archived originals.
type ArchiveLinker interface {
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

type IngestHandler struct {
	ingester DocumentIngester
	queue    JobQueue
	notifier JobNotifier
	archive  ArchiveLinker
}

// NewIngestHandler creates an IngestHandler. notifier and archive may be nil.
func NewIngestHandler(ingester DocumentIngester, queue JobQueue, notifier JobNotifier, archive ArchiveLinker) *IngestHandler {
	return &IngestHandler{ingester: ingester, queue: queue, notifier: notifier, archive: archive}
}

type DocumentRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type DocumentResponse struct {
	ID      string `json:"id"`
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
}

type EnqueueRequest struct {
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
}

type JobResponse struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Label       string `json:"label"`
	Status      string `json:"status"`
	Retries     int32  `json:"retries"`
	Error       string `json:"error,omitempty"`
	ChunkCount  int    `json:"chunk_count"`
	CreatedAt   string `json:"created_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
	ArchiveURL  string `json:"archive_url,omitempty"`
}

func jobToResponse(j *domain.IngestionJob) *JobResponse {
	resp := &JobResponse{
		ID:         j.ID,
		URL:        j.URL,
		Label:      j.Label,
		Status:     string(j.Status),
		Retries:    j.Retries,
		Error:      j.Error,
		ChunkCount: j.ChunkCount,
		CreatedAt:  j.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if j.ProcessedAt != nil {
		resp.ProcessedAt = j.ProcessedAt.Format("2006-01-02T15:04:05Z")
	}
	return resp
}

// Documents ingests a document given as plain text.
func (h *IngestHandler) Documents(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	if req.ID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	report, err := h.ingester.IngestDocument(r.Context(), *domain.NewSourceDocument(req.ID, req.Text))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, DocumentResponse{ID: req.ID, Added: report.Added, Skipped: report.Skipped})
}

// Enqueue queues a document page for background ingestion.
func (h *IngestHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	if req.URL == "" {
		api.Error(w, http.StatusBadRequest, "url is required")
		return
	}

	job, err := h.queue.Enqueue(r.Context(), req.URL, req.Label)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if h.notifier != nil {
		h.notifier.Notify()
	}

	api.Success(w, http.StatusAccepted, jobToResponse(job))
}

func (h *IngestHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	job, err := h.queue.GetJob(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := jobToResponse(job)
	if h.archive != nil && job.Status == domain.IngestionJobStatusCompleted {
		link, err := h.archive.GenerateDownloadURL(r.Context(), source.ArchiveKey(job.Label))
		if err != nil {
			log.Printf("archive link for job %s: %v", job.ID, err)
		} else {
			resp.ArchiveURL = link
		}
	}

	api.Success(w, http.StatusOK, resp)
}

// NoOpJobQueue is used when no database is configured.
type NoOpJobQueue struct{}

var errQueueDisabled = domain.NewConfigurationError("ingestion queue requires LABELRAG_DATABASE_URL")

func (NoOpJobQueue) Enqueue(ctx context.Context, rawURL, label string) (*domain.IngestionJob, error) {
	return nil, errQueueDisabled
}

func (NoOpJobQueue) GetJob(ctx context.Context, id string) (*domain.IngestionJob, error) {
	return nil, domain.ErrIngestionJobNotFound
}
