//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/cloo-solutions/labelrag/internal/api/handlers"
	"github.com/cloo-solutions/labelrag/internal/api/middleware"
	"github.com/cloo-solutions/labelrag/internal/jobs"
	"github.com/cloo-solutions/labelrag/internal/repository"
	"github.com/cloo-solutions/labelrag/internal/server"
	"github.com/cloo-solutions/labelrag/internal/service"
	"github.com/cloo-solutions/labelrag/internal/source"
	"github.com/cloo-solutions/labelrag/internal/storage"
	"github.com/cloo-solutions/labelrag/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const testAPIKey = "e2e-secret"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	Labels       *httptest.Server
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers, a label
// site and the API server with its ingestion worker.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSCredential,
		SecretAccessKey: testutil.RustFSCredential,
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	labels := newLabelSite()
	serverURL, serverCloser := startServer(t, pool, s3Client, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		Labels:       labels,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Labels != nil {
		e.Labels.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the labelrag and labelragd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "labelrag-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"labelrag", "labelragd"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunLabelrag runs the labelrag CLI against the test server.
func (e *E2ETestEnv) RunLabelrag(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "labelrag"), args...)
	cmd.Env = append(os.Environ(),
		"HOME="+e.T.TempDir(),
		"LABELRAG_API_KEY="+testAPIKey,
		"LABELRAG_API_URL="+e.ServerURL,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// PageURL is the approval page for label on the test label site.
func (e *E2ETestEnv) PageURL(label string) string {
	return e.Labels.URL + "/approvals/" + label
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d %s: %s", resp.StatusCode, apiResp.Code, apiResp.Error)
	}

	return &apiResp, nil
}

// WaitForJob polls a job until it leaves the pending state.
func (e *E2ETestEnv) WaitForJob(id string, timeout time.Duration) map[string]interface{} {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := e.Get("/ingest/"+id, testAPIKey)
		if err != nil {
			e.T.Fatalf("failed to get job: %v", err)
		}
		var job map[string]interface{}
		if err := json.Unmarshal(resp.Data, &job); err != nil {
			e.T.Fatalf("failed to parse job: %v", err)
		}
		if status := job["status"]; status == "completed" || status == "failed" {
			return job
		}
		time.Sleep(200 * time.Millisecond)
	}
	e.T.Fatalf("job %s did not finish within %v", id, timeout)
	return nil
}

// Download fetches a presigned URL.
func (e *E2ETestEnv) Download(url string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

var labelTexts = map[string]string{
	"drug-a": "Drug A is indicated for the treatment of hypertension in adults.",
	"drug-b": "Drug B is indicated for the treatment of type 2 diabetes mellitus.",
}

// newLabelSite serves approval pages that link to label PDFs. The "PDFs"
// carry their text after a header; rawTextExtractor reads it back.
func newLabelSite() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/approvals/", func(w http.ResponseWriter, r *http.Request) {
		label := strings.TrimPrefix(r.URL.Path, "/approvals/")
		if _, ok := labelTexts[label]; !ok {
			fmt.Fprint(w, `<html><body><p>No documents yet.</p></body></html>`)
			return
		}
		fmt.Fprintf(w, `<html><body><a href="/docs/summary.html">Summary</a><a href="/docs/%s.pdf">Label</a></body></html>`, label)
	})
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		label := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/docs/"), ".pdf")
		text, ok := labelTexts[label]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, pdfHeader+text)
	})
	return httptest.NewServer(mux)
}

const pdfHeader = "%PDF-1.4\n"

type rawTextExtractor struct{}

func (rawTextExtractor) ExtractText(data []byte) (string, error) {
	return strings.TrimPrefix(string(data), pdfHeader), nil
}

// letterEmbedder maps text to its letter histogram.
type letterEmbedder struct{}

func (letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec, nil
}

// promptGenerator answers with the first context line of the prompt.
type promptGenerator struct{}

func (promptGenerator) Generate(_ context.Context, prompt string) (string, error) {
	_, rest, _ := strings.Cut(prompt, "\nContext: ")
	line, _, _ := strings.Cut(rest, "\n")
	return strings.TrimFunc(line, unicode.IsSpace), nil
}

// startServer wires the same stack labelragd serve does, with deterministic
// providers in place of the model APIs.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, port int) (string, func()) {
	embedder := letterEmbedder{}
	index := service.NewVectorIndexWithConfig(embedder, repository.NewChunkRepository(pool), service.IndexConfig{
		Duplicates: service.DuplicatePolicySkip,
	})
	retriever := service.NewRetriever(embedder, index, 2)
	orchestrator := service.NewOrchestrator(retriever, promptGenerator{}, 0)
	ingestion := service.NewIngestionService(index, service.ChunkConfig{Size: 512, Overlap: 50})

	jobRepo := repository.NewIngestionJobRepository(pool)
	pages := source.NewPageSource(source.PageSourceConfig{
		Extractor: rawTextExtractor{},
		Archive:   s3Client,
	})
	worker := jobs.NewWorker(jobs.NewIngestionWorker(jobRepo, pages, ingestion), time.Second)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	go worker.Start(workerCtx)

	router := server.NewRouter(server.RouterConfig{
		AuthValidator: middleware.NewStaticKey(testAPIKey),
		QueryHandler:  handlers.NewQueryHandler(orchestrator, retriever, index),
		IngestHandler: handlers.NewIngestHandler(ingestion, service.NewJobService(jobRepo), worker, s3Client),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		worker.Stop()
		stopWorker()
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
