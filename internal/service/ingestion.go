package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/cloo-solutions/labelrag/internal/telemetry"
)

// DocumentSource yields documents to ingest. Per-document problems are
// reported inside the FetchResults; the error is for failures of the whole source.
type DocumentSource interface {
	Documents(ctx context.Context) ([]domain.FetchResult, error)
}

// DocumentIndex is the write side of a VectorIndex.
type DocumentIndex interface {
	Add(ctx context.Context, chunks []domain.Chunk) (AddReport, error)
}

// IngestFailure records a document that could not be fetched or indexed.
type IngestFailure struct {
	SourceID string
	Err      error
}

// IngestReport summarizes an ingestion run.
type IngestReport struct {
	Documents int
	Chunks    int
	Skipped   int
	Failures  []IngestFailure
}

func (r *IngestReport) merge(other *IngestReport) {
	r.Documents += other.Documents
	r.Chunks += other.Chunks
	r.Skipped += other.Skipped
	r.Failures = append(r.Failures, other.Failures...)
}

// IngestionService turns source documents into indexed chunks.
type IngestionService struct {
	index    DocumentIndex
	chunkCfg ChunkConfig
}

// NewIngestionService creates a new IngestionService instance
func NewIngestionService(index DocumentIndex, chunkCfg ChunkConfig) *IngestionService {
	return &IngestionService{index: index, chunkCfg: chunkCfg}
}

// IngestDocument chunks one document and adds it to the index.
func (s *IngestionService) IngestDocument(ctx context.Context, doc domain.SourceDocument) (AddReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.IngestDocument", telemetry.SpanAttributes{
		SourceID:  doc.ID,
		Operation: domain.StageIngestion,
	})
	defer span.End()

	if err := domain.ValidateSourceDocument(&doc); err != nil {
		return AddReport{}, err
	}

	chunks, err := ChunkDocument(doc, s.chunkCfg)
	if err != nil {
		return AddReport{}, err
	}
	if len(chunks) == 0 {
		log.Printf("ingest: document %q has no text, nothing to index", doc.ID)
		return AddReport{}, nil
	}

	report, err := s.index.Add(ctx, chunks)
	if err != nil {
		span.SetError(err)
		return report, fmt.Errorf("document %q: added %d of %d chunks: %w", doc.ID, report.Added, len(chunks), err)
	}

	span.SetCount("chunks", report.Added)
	log.Printf("ingest: document %q indexed (%d chunks, %d skipped)", doc.ID, report.Added, report.Skipped)
	return report, nil
}

// IngestDocuments indexes docs in order, continuing past per-document
// failures. Configuration errors and dimension mismatches stop the run.
func (s *IngestionService) IngestDocuments(ctx context.Context, docs []domain.SourceDocument) (*IngestReport, error) {
	report := &IngestReport{}
	for _, doc := range docs {
		added, err := s.IngestDocument(ctx, doc)
		report.Chunks += added.Added
		report.Skipped += added.Skipped
		if err != nil {
			if isFatalIngestError(err) {
				return report, err
			}
			log.Printf("ingest: document %q failed: %v", doc.ID, err)
			report.Failures = append(report.Failures, IngestFailure{SourceID: doc.ID, Err: err})
			continue
		}
		report.Documents++
	}
	return report, nil
}

// IngestSources fetches every source and indexes the documents that were
// fetched successfully. Fetch failures are collected, not returned.
func (s *IngestionService) IngestSources(ctx context.Context, sources ...DocumentSource) (*IngestReport, error) {
	total := &IngestReport{}
	for _, src := range sources {
		results, err := src.Documents(ctx)
		if err != nil {
			return total, fmt.Errorf("failed to read source: %w", err)
		}

		docs := make([]domain.SourceDocument, 0, len(results))
		for _, res := range results {
			if !res.OK() {
				log.Printf("ingest: skipping %q: %v", res.SourceID, res.Err)
				total.Failures = append(total.Failures, IngestFailure{SourceID: res.SourceID, Err: res.Err})
				continue
			}
			docs = append(docs, *res.Document)
		}

		report, err := s.IngestDocuments(ctx, docs)
		total.merge(report)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func isFatalIngestError(err error) bool {
	return domain.IsConfigurationError(err) || errors.Is(err, domain.ErrDimensionMismatch)
}
