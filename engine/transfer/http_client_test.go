package transfer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchManifest(t *testing.T) {
	want := Manifest{
		SceneID: "lobby",
		Models: []ModelInfo{
			{Name: "chair", RelPath: "chair.obj", SizeBytes: 512000},
			{Name: "table", RelPath: "props/table.obj", SizeBytes: 1024},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scenes/lobby/manifest", r.URL.Path)
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	got, err := c.FetchManifest(context.Background(), "lobby")
	require.NoError(t, err)
	assert.Equal(t, &want, got)
}

func TestFetchManifestNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.FetchManifest(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStreamModelWritesFileAndReportsProgress(t *testing.T) {
	payload := make([]byte, 200*1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scenes/lobby/models/props/table.obj", r.URL.Path)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "table.obj")
	var mu sync.Mutex
	var reports []int64
	c := NewHTTPClient(srv.URL, WithChunkSize(64*1024))
	err := c.StreamModel(context.Background(), "lobby", "props/table.obj", dest, int64(len(payload)),
		func(got, total int64) {
			mu.Lock()
			reports = append(reports, got)
			mu.Unlock()
			assert.Equal(t, int64(len(payload)), total)
		})
	require.NoError(t, err)

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, written)

	// Progress is cumulative and finishes at the full size.
	require.NotEmpty(t, reports)
	assert.Equal(t, int64(len(payload)), reports[len(reports)-1])
	for i := 1; i < len(reports); i++ {
		assert.GreaterOrEqual(t, reports[i], reports[i-1])
	}
}

func TestStreamModelSizeMismatchLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("short"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.obj")
	c := NewHTTPClient(srv.URL)
	err := c.StreamModel(context.Background(), "lobby", "model.obj", dest, 9999, nil)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStreamModelCancelLeavesNoFile(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64*1024))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	dest := filepath.Join(t.TempDir(), "model.obj")
	c := NewHTTPClient(srv.URL, WithChunkSize(16*1024))

	errs := make(chan error, 1)
	go func() {
		errs <- c.StreamModel(ctx, "lobby", "model.obj", dest, 10*1024*1024, nil)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not abort after cancellation")
	}

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStreamModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.obj")
	c := NewHTTPClient(srv.URL)
	err := c.StreamModel(context.Background(), "lobby", "model.obj", dest, 1, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}
