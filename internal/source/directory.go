package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloo-solutions/labelrag/internal/domain"
)

// DirectorySource reads .txt, .md and .pdf files below a directory. Each
// file becomes one document whose id is its slash-separated relative path.
type DirectorySource struct {
	dir       string
	extractor PDFTextExtractor
}

func NewDirectorySource(dir string, extractor PDFTextExtractor) *DirectorySource {
	if extractor == nil {
		extractor = NewPlainTextExtractor()
	}
	return &DirectorySource{dir: dir, extractor: extractor}
}

// Documents returns results in lexical path order. Only an unreadable
// directory fails the whole call.
func (s *DirectorySource) Documents(ctx context.Context) ([]domain.FetchResult, error) {
	var paths []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md", ".pdf":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", s.dir, err)
	}
	sort.Strings(paths)

	results := make([]domain.FetchResult, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			rel = path
		}
		id := filepath.ToSlash(rel)

		doc, err := s.read(path, id)
		if err != nil {
			results = append(results, domain.FetchResult{SourceID: id, Err: domain.NewIngestionFailure(id, err)})
			continue
		}
		results = append(results, domain.FetchResult{SourceID: id, Document: doc})
	}
	return results, nil
}

func (s *DirectorySource) read(path, id string) (*domain.SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text := string(data)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = s.extractor.ExtractText(data)
		if err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	return domain.NewSourceDocument(id, text), nil
}
