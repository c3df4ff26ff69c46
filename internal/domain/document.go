package domain

import "fmt"

// SourceDocument is the raw text of one ingested document, labelled with the
// identifier of the source it came from.
type SourceDocument struct {
	ID   string
	Text string
}

// NewSourceDocument creates a SourceDocument instance
func NewSourceDocument(id, text string) *SourceDocument {
	return &SourceDocument{ID: id, Text: text}
}

// ValidateSourceDocument validates a SourceDocument instance
func ValidateSourceDocument(d *SourceDocument) error {
	if d == nil {
		return fmt.Errorf("source document cannot be nil")
	}
	if d.ID == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "source document ID is required", ErrMissingRequiredField)
	}
	return nil
}

// Chunk is a bounded slice of a source document's normalized text.
// StartOffset counts runes from the start of the normalized text.
type Chunk struct {
	SourceID      string
	SequenceIndex int
	Text          string
	StartOffset   int
}

// Key identifies a chunk within an index, e.g. "label-123#4".
func (c Chunk) Key() string {
	return fmt.Sprintf("%s#%d", c.SourceID, c.SequenceIndex)
}

// EmbeddedChunk pairs a chunk with the vector produced for its text.
type EmbeddedChunk struct {
	Chunk  Chunk
	Vector []float32
}

// Dimension returns the length of the chunk's vector.
func (e EmbeddedChunk) Dimension() int {
	return len(e.Vector)
}

// ScoredChunk is a single search hit. Higher scores are closer matches.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// Chunks drops the scores from a ranked result, keeping the order.
func Chunks(scored []ScoredChunk) []Chunk {
	out := make([]Chunk, len(scored))
	for i, s := range scored {
		out[i] = s.Chunk
	}
	return out
}

// FetchResult is the outcome of fetching one document from a source adapter.
// Exactly one of Document and Err is set.
type FetchResult struct {
	SourceID string
	Document *SourceDocument
	Err      error
}

// OK reports whether the fetch produced a document.
func (r FetchResult) OK() bool {
	return r.Err == nil && r.Document != nil
}
