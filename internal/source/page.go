package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/cloo-solutions/labelrag/internal/telemetry"
)

const (
	DefaultMaxDownloadBytes = 50 << 20
	defaultHTTPTimeout      = 60 * time.Second
	userAgent               = "labelrag/1.0"
)

// Page is an intermediary web page that links to a document PDF.
type Page struct {
	URL string
	// Label becomes the document's source id. Empty means the URL.
	Label string
}

func (p Page) sourceID() string {
	if p.Label != "" {
		return p.Label
	}
	return p.URL
}

// PageSourceConfig configures a PageSource.
type PageSourceConfig struct {
	HTTPClient       *http.Client
	Extractor        PDFTextExtractor
	Archive          Archive // optional
	MaxDownloadBytes int64
}

// PageSource follows each page to its first PDF link, downloads the PDF and
// extracts its text.
type PageSource struct {
	client    *http.Client
	extractor PDFTextExtractor
	archive   Archive
	maxBytes  int64
	pages     []Page
}

func NewPageSource(cfg PageSourceConfig, pages ...Page) *PageSource {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = NewPlainTextExtractor()
	}
	maxBytes := cfg.MaxDownloadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDownloadBytes
	}
	return &PageSource{
		client:    client,
		extractor: extractor,
		archive:   cfg.Archive,
		maxBytes:  maxBytes,
		pages:     pages,
	}
}

// Documents fetches every configured page. A page that fails is reported in
// its FetchResult and does not stop the others.
func (s *PageSource) Documents(ctx context.Context) ([]domain.FetchResult, error) {
	results := make([]domain.FetchResult, 0, len(s.pages))
	for _, p := range s.pages {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		doc, err := s.Fetch(ctx, p)
		results = append(results, domain.FetchResult{SourceID: p.sourceID(), Document: doc, Err: err})
	}
	return results, nil
}

// Fetch resolves one page to a SourceDocument. Errors are IngestionFailures
// naming the page.
func (s *PageSource) Fetch(ctx context.Context, p Page) (*domain.SourceDocument, error) {
	id := p.sourceID()
	ctx, span := telemetry.StartSpan(ctx, "PageSource.Fetch", telemetry.SpanAttributes{
		SourceID:  id,
		Operation: domain.StageIngestion,
	})
	defer span.End()

	doc, err := s.fetch(ctx, p.URL, id)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewIngestionFailure(id, err)
	}
	return doc, nil
}

func (s *PageSource) fetch(ctx context.Context, pageURL, id string) (*domain.SourceDocument, error) {
	body, contentType, finalURL, err := s.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	pdfBytes := body
	if !isPDF(contentType, body) {
		link, err := findPDFLink(body, finalURL)
		if err != nil {
			return nil, err
		}
		log.Printf("source: %s links to %s", pageURL, link)

		pdfBytes, _, _, err = s.get(ctx, link)
		if err != nil {
			return nil, err
		}
	}

	if s.archive != nil {
		if err := s.archive.PutObject(ctx, ArchiveKey(id), pdfBytes, "application/pdf"); err != nil {
			// Archiving is best effort; the text still gets indexed.
			log.Printf("source: failed to archive %q: %v", id, err)
		}
	}

	text, err := s.extractor.ExtractText(pdfBytes)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	return domain.NewSourceDocument(id, text), nil
}

func (s *PageSource) get(ctx context.Context, rawURL string) ([]byte, string, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, "", nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > s.maxBytes {
		return nil, "", nil, fmt.Errorf("fetch %s: %w", rawURL, ErrTooLarge)
	}

	return body, resp.Header.Get("Content-Type"), resp.Request.URL, nil
}

func isPDF(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "application/pdf" {
		return true
	}
	return strings.HasPrefix(string(body[:min(len(body), 5)]), "%PDF-")
}

// findPDFLink returns the first anchor on the page whose path ends in .pdf,
// resolved against base.
func findPDFLink(page []byte, base *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	var link string
	doc.Find("a[href]").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		if !strings.HasSuffix(strings.ToLower(ref.Path), ".pdf") {
			return true
		}
		link = base.ResolveReference(ref).String()
		return false
	})

	if link == "" {
		return "", ErrNoPDFLink
	}
	return link, nil
}
