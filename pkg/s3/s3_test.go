package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"account-service/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	body   string
}

func newTestServer(t *testing.T, status int) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newMinIOClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := newClient(&config.Config{
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
		AWSEndpoint:        endpoint,
		S3UseSSL:           "false",
		S3BucketName:       "media",
	})
	require.NoError(t, err)
	return client
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "avatar.png")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPublicURL_AWS(t *testing.T) {
	client, err := newClient(&config.Config{AWSRegion: "eu-west-1", S3BucketName: "media"})
	require.NoError(t, err)

	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com/avatars/u1/a.png", client.publicURL("avatars/u1/a.png"))
}

func TestPublicURL_MinIO(t *testing.T) {
	client := newMinIOClient(t, "http://localhost:9000")

	assert.Equal(t, "http://localhost:9000/media/avatars/u1/a.png", client.publicURL("avatars/u1/a.png"))
}

func TestKeyFromURL(t *testing.T) {
	client := newMinIOClient(t, "http://localhost:9000")

	key, ok := client.keyFromURL("http://localhost:9000/media/avatars/u1/a.png")
	assert.True(t, ok)
	assert.Equal(t, "avatars/u1/a.png", key)

	_, ok = client.keyFromURL("https://cdn.example.com/a.png")
	assert.False(t, ok)

	_, ok = client.keyFromURL("")
	assert.False(t, ok)
}

func TestUploadLocalFile_Success(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK)
	client := newMinIOClient(t, srv.URL)
	path := writeTempFile(t, "image-bytes")

	url, err := client.UploadLocalFile(context.Background(), path, "avatars/u1/a.png", "image/png")
	require.NoError(t, err)

	assert.Equal(t, client.publicURL("avatars/u1/a.png"), url)
	require.Len(t, *requests, 1)
	assert.Equal(t, http.MethodPut, (*requests)[0].method)
	assert.Equal(t, "/media/avatars/u1/a.png", (*requests)[0].path)
	assert.Equal(t, "image-bytes", (*requests)[0].body)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "local file should be removed")
}

func TestUploadLocalFile_FailureStillRemovesLocalFile(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK)
	client := newMinIOClient(t, srv.URL)
	path := writeTempFile(t, "image-bytes")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.UploadLocalFile(ctx, path, "avatars/u1/a.png", "image/png")
	assert.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "local file should be removed")
}

func TestUploadLocalFile_MissingFile(t *testing.T) {
	client := newMinIOClient(t, "http://localhost:9000")

	_, err := client.UploadLocalFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"), "k", "image/png")
	assert.Error(t, err)
}

func TestDeleteByURL(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusNoContent)
	client := newMinIOClient(t, srv.URL)

	err := client.DeleteByURL(context.Background(), client.publicURL("avatars/u1/a.png"))
	require.NoError(t, err)
	require.Len(t, *requests, 1)
	assert.Equal(t, http.MethodDelete, (*requests)[0].method)
	assert.Equal(t, "/media/avatars/u1/a.png", (*requests)[0].path)
}

func TestDeleteByURL_ForeignURLIgnored(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusNoContent)
	client := newMinIOClient(t, srv.URL)

	err := client.DeleteByURL(context.Background(), "https://cdn.example.com/a.png")
	assert.NoError(t, err)
	assert.Empty(t, *requests)
}
