package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	return client
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRegisterBatch_UploadsEachDocument(t *testing.T) {
	var uploads int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "assistants", r.FormValue("purpose"))

		uploads++
		fmt.Fprintf(w, `{"id": "file-%d"}`, uploads)
	}))

	mapping, err := client.RegisterBatch(context.Background(), []domain.Document{
		{ItemID: "1", Name: "a-1.md", Content: "# A"},
		{ItemID: "2", Name: "b-2.md", Content: "# B"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"1": "file-1", "2": "file-2"}, mapping)
}

func TestRegisterBatch_FirstFailureFailsBatch(t *testing.T) {
	var uploads int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		uploads++
		if uploads == 1 {
			fmt.Fprint(w, `{"id": "file-1"}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"message": "invalid file", "type": "invalid_request_error"}}`)
	}))

	_, err := client.RegisterBatch(context.Background(), []domain.Document{
		{ItemID: "1", Name: "a-1.md", Content: "# A"},
		{ItemID: "2", Name: "b-2.md", Content: "# B"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid file")
}

func TestEnsureCollection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vector_stores", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		fmt.Fprint(w, `{"id": "vs-1", "name": "Support Articles"}`)
	}))

	id, err := client.EnsureCollection(context.Background(), "Support Articles")
	require.NoError(t, err)
	assert.Equal(t, "vs-1", id)
}

func TestAttachBatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vector_stores/vs-1/file_batches", r.URL.Path)
		fmt.Fprint(w, `{"id": "batch-1", "status": "in_progress"}`)
	}))

	batchID, err := client.AttachBatch(context.Background(), "vs-1", []string{"file-1", "file-2"})
	require.NoError(t, err)
	assert.Equal(t, "batch-1", batchID)
}

func TestBatchStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vector_stores/vs-1/file_batches/batch-1", r.URL.Path)
		fmt.Fprint(w, `{"id": "batch-1", "status": "completed"}`)
	}))

	status, err := client.BatchStatus(context.Background(), "vs-1", "batch-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCompleted, status)
}

func TestDetachBatch_JoinsErrorsButContinues(t *testing.T) {
	var paths []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/vector_stores/vs-1/files/file-bad" {
			fmt.Fprint(w, `{"error": {"message": "no such file", "type": "invalid_request_error"}}`)
			return
		}
		fmt.Fprint(w, `{"deleted": true}`)
	}))

	err := client.DetachBatch(context.Background(), "vs-1", []string{"file-1", "file-bad", "file-2"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file")
	// Remaining ids are still attempted after a failure.
	assert.Len(t, paths, 3)
}

func TestDeleteBatch(t *testing.T) {
	var paths []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		paths = append(paths, r.URL.Path)
		fmt.Fprint(w, `{"deleted": true}`)
	}))

	err := client.DeleteBatch(context.Background(), []string{"file-1", "file-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/files/file-1", "/files/file-2"}, paths)
}

func TestCollectionStats(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vector_stores/vs-1", r.URL.Path)
		fmt.Fprint(w, `{
			"id": "vs-1",
			"usage_bytes": 4096,
			"file_counts": {"total": 10, "completed": 8, "failed": 1, "in_progress": 1}
		}`)
	}))

	stats, err := client.CollectionStats(context.Background(), "vs-1")
	require.NoError(t, err)

	assert.Equal(t, &domain.CollectionStats{
		TotalFiles:     10,
		CompletedFiles: 8,
		FailedFiles:    1,
		UsageBytes:     4096,
	}, stats)
}

func TestAPIError_Surfaces(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "invalid api key", "type": "authentication_error"}}`)
	}))

	_, err := client.EnsureCollection(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}
