// Package source fetches drug-approval documents and turns them into
// SourceDocuments for ingestion.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	// ErrNoPDFLink is returned when an intermediary page links to no PDF
	ErrNoPDFLink = errors.New("no PDF link found on page")
	// ErrEmptyDocument is returned when extraction yields no text
	ErrEmptyDocument = errors.New("document has no extractable text")
	// ErrTooLarge is returned when a download exceeds the size limit
	ErrTooLarge = errors.New("document exceeds size limit")
)

// PDFTextExtractor turns the bytes of a PDF file into plain text.
type PDFTextExtractor interface {
	ExtractText(data []byte) (string, error)
}

// Archive stores the original bytes of downloaded documents.
type Archive interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// ArchiveKey is the object key a document's original bytes are stored under.
func ArchiveKey(sourceID string) string {
	sum := sha256.Sum256([]byte(sourceID))
	return "documents/" + hex.EncodeToString(sum[:]) + ".pdf"
}
