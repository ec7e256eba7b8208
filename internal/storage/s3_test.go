package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coup-study/coup-api/internal/config"
)

type recordedRequest struct {
	method string
	path   string
	body   []byte
}

func setupS3TestStore(t *testing.T) (*S3Store, func() []recordedRequest) {
	t.Helper()

	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{method: r.Method, path: r.URL.Path, body: body})
		mu.Unlock()

		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	store, err := NewS3Store(context.Background(), &config.Config{
		S3Bucket:    "coup-files",
		S3Region:    "us-east-1",
		S3Endpoint:  server.URL,
		S3AccessKey: "test-access",
		S3SecretKey: "test-secret",
	})
	require.NoError(t, err)

	return store, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), requests...)
	}
}

func TestS3Store_PutAndDelete(t *testing.T) {
	store, requests := setupS3TestStore(t)
	ctx := context.Background()

	content := []byte("lecture notes")
	require.NoError(t, store.Put(ctx, "studies/1/notes.txt", "text/plain", bytes.NewReader(content), int64(len(content))))
	require.NoError(t, store.Delete(ctx, "studies/1/notes.txt"))

	got := requests()
	require.Len(t, got, 2)
	assert.Equal(t, http.MethodPut, got[0].method)
	assert.Equal(t, "/coup-files/studies/1/notes.txt", got[0].path)
	assert.Contains(t, string(got[0].body), "lecture notes")
	assert.Equal(t, http.MethodDelete, got[1].method)
}

func TestS3Store_PresignGet(t *testing.T) {
	store, requests := setupS3TestStore(t)

	raw, err := store.PresignGet(context.Background(), "studies/1/notes.txt", "notes.txt", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/coup-files/studies/1/notes.txt", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.Contains(t, u.Query().Get("response-content-disposition"), "notes.txt")
	assert.Empty(t, requests(), "presigning is offline")
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), &config.Config{S3Region: "us-east-1"})
	require.Error(t, err)
}
