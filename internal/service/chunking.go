package service

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cloo-solutions/labelrag/internal/domain"
)

const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// ChunkConfig controls how document text is split for indexing.
// Size and Overlap are measured in runes.
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    DefaultChunkSize,
		Overlap: DefaultChunkOverlap,
	}
}

// Validate rejects configurations that cannot make forward progress.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return domain.NewConfigurationError(fmt.Sprintf("chunk size must be positive, got %d", c.Size))
	}
	if c.Overlap < 0 {
		return domain.NewConfigurationError(fmt.Sprintf("chunk overlap cannot be negative, got %d", c.Overlap))
	}
	if c.Overlap >= c.Size {
		return domain.NewConfigurationError(fmt.Sprintf("chunk overlap (%d) must be smaller than chunk size (%d)", c.Overlap, c.Size))
	}
	return nil
}

// ChunkDocument splits the normalized text of doc into overlapping windows.
// Windows advance by Size-Overlap runes; the last one is truncated to the
// remaining text. Empty documents yield no chunks.
func ChunkDocument(doc domain.SourceDocument, cfg ChunkConfig) ([]domain.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(normalizeText(doc.Text))
	if len(runes) == 0 {
		return nil, nil
	}

	step := cfg.Size - cfg.Overlap
	chunks := make([]domain.Chunk, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + cfg.Size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, domain.Chunk{
			SourceID:      doc.ID,
			SequenceIndex: len(chunks),
			Text:          string(runes[start:end]),
			StartOffset:   start,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

// normalizeText collapses every whitespace run to a single space and trims the ends.
// PDF extraction leaves ragged line breaks that would otherwise eat chunk budget.
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	pendingSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}

	return b.String()
}
