//go:build integration

package storage

import (
	"context"
	"net/http"
	"testing"

	"github.com/cloo-solutions/labelrag/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3Client(ctx context.Context, t *testing.T) *S3Client {
	rc := testutil.NewRustFSContainer(ctx, t)
	t.Cleanup(func() { _ = rc.Terminate(ctx) })

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSCredential,
		SecretAccessKey: testutil.RustFSCredential,
		Bucket:          "labelrag-documents",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))
	return client
}

func TestS3Client_PutGetHead(t *testing.T) {
	ctx := context.Background()
	client := newTestS3Client(ctx, t)

	body := []byte("%PDF-1.4 fake label")
	require.NoError(t, client.PutObject(ctx, "documents/abc.pdf", body, "application/pdf"))

	got, err := client.GetObject(ctx, "documents/abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, body, got)

	meta, err := client.HeadObject(ctx, "documents/abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), meta.ContentLength)
	assert.Equal(t, "application/pdf", meta.ContentType)

	// EnsureBucket is idempotent.
	require.NoError(t, client.EnsureBucket(ctx))
}

func TestS3Client_GenerateDownloadURL(t *testing.T) {
	ctx := context.Background()
	client := newTestS3Client(ctx, t)

	require.NoError(t, client.PutObject(ctx, "documents/url.pdf", []byte("data"), "application/pdf"))

	url, err := client.GenerateDownloadURL(ctx, "documents/url.pdf")
	require.NoError(t, err)

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestS3Client_HeadObject_Missing(t *testing.T) {
	ctx := context.Background()
	client := newTestS3Client(ctx, t)

	_, err := client.HeadObject(ctx, "documents/missing.pdf")
	assert.Error(t, err)
}
