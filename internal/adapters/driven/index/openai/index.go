// Package openai provides an IndexClient over the OpenAI Files and
// Vector Stores APIs. Storage objects are uploaded files; the
// collection is a vector store; attach batches are vector-store file
// batches whose status is polled by the orchestrator.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
	"github.com/custodia-labs/kbsync-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync-cli/internal/logger"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 120 * time.Second

	// DefaultRequestsPerSecond paces individual API calls inside
	// batch operations.
	DefaultRequestsPerSecond = 5.0

	// filePurpose is the OpenAI purpose for uploaded documents.
	filePurpose = "assistants"

	// collectionExpiryDays keeps unused collections from living
	// forever on the service.
	collectionExpiryDays = 365
)

// Ensure Client implements the interface.
var _ driven.IndexClient = (*Client)(nil)

// Config holds configuration for the OpenAI index client.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// Client provides index operations using the OpenAI API.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

// apiError is the OpenAI error payload.
type apiError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// fileResponse is the /files response format.
type fileResponse struct {
	ID    string `json:"id"`
	Bytes int64  `json:"bytes"`
	apiError
}

// vectorStoreResponse is the /vector_stores response format.
type vectorStoreResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	UsageBytes int64  `json:"usage_bytes"`
	FileCounts struct {
		Total      int `json:"total"`
		Completed  int `json:"completed"`
		Failed     int `json:"failed"`
		InProgress int `json:"in_progress"`
	} `json:"file_counts"`
	apiError
}

// fileBatchResponse is the /vector_stores/{id}/file_batches response
// format.
type fileBatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	apiError
}

// New creates a new OpenAI index client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
	}, nil
}

// RegisterBatch uploads every document as a storage object. The call
// is all-or-nothing: any upload failure fails the whole batch, since
// the caller gets no per-item result on error.
func (c *Client) RegisterBatch(ctx context.Context, docs []domain.Document) (map[string]string, error) {
	mapping := make(map[string]string, len(docs))

	for _, doc := range docs {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		fileID, err := c.uploadFile(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("uploading %s: %w", doc.Name, err)
		}
		logger.Debug("Registered %s as %s", doc.Name, fileID)
		mapping[doc.ItemID] = fileID
	}

	return mapping, nil
}

// EnsureCollection creates a vector store with the given name.
// The caller persists the returned id, so this is only reached when
// no collection exists yet.
func (c *Client) EnsureCollection(ctx context.Context, name string) (string, error) {
	body := map[string]any{
		"name": name,
		"expires_after": map[string]any{
			"anchor": "last_active_at",
			"days":   collectionExpiryDays,
		},
	}

	var resp vectorStoreResponse
	if err := c.postJSON(ctx, "/vector_stores", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// AttachBatch creates a file batch attaching the objects to the
// vector store.
func (c *Client) AttachBatch(ctx context.Context, collectionID string, externalIDs []string) (string, error) {
	body := map[string]any{"file_ids": externalIDs}

	var resp fileBatchResponse
	path := fmt.Sprintf("/vector_stores/%s/file_batches", collectionID)
	if err := c.postJSON(ctx, path, body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// BatchStatus retrieves the current status of a file batch.
func (c *Client) BatchStatus(ctx context.Context, collectionID, batchID string) (domain.BatchStatus, error) {
	var resp fileBatchResponse
	path := fmt.Sprintf("/vector_stores/%s/file_batches/%s", collectionID, batchID)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return domain.BatchFailed, err
	}
	return domain.BatchStatus(resp.Status), nil
}

// DetachBatch removes objects from the vector store. The service has
// no bulk detach, so ids are removed one by one; errors are joined so
// the caller can log them, but partial progress stands.
func (c *Client) DetachBatch(ctx context.Context, collectionID string, externalIDs []string) error {
	var errs []error
	for _, id := range externalIDs {
		if err := c.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		path := fmt.Sprintf("/vector_stores/%s/files/%s", collectionID, id)
		if err := c.delete(ctx, path); err != nil {
			errs = append(errs, fmt.Errorf("detaching %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// DeleteBatch deletes storage objects one by one, like DetachBatch.
func (c *Client) DeleteBatch(ctx context.Context, externalIDs []string) error {
	var errs []error
	for _, id := range externalIDs {
		if err := c.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if err := c.delete(ctx, "/files/"+id); err != nil {
			errs = append(errs, fmt.Errorf("deleting %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// CollectionStats fetches vector-store statistics.
func (c *Client) CollectionStats(ctx context.Context, collectionID string) (*domain.CollectionStats, error) {
	var resp vectorStoreResponse
	if err := c.getJSON(ctx, "/vector_stores/"+collectionID, &resp); err != nil {
		return nil, err
	}
	return &domain.CollectionStats{
		TotalFiles:     resp.FileCounts.Total,
		CompletedFiles: resp.FileCounts.Completed,
		FailedFiles:    resp.FileCounts.Failed,
		UsageBytes:     resp.UsageBytes,
	}, nil
}

// uploadFile uploads one document as a multipart file.
func (c *Client) uploadFile(ctx context.Context, doc domain.Document) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("purpose", filePurpose); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", doc.Name)
	if err != nil {
		return "", err
	}
	if _, err := io.WriteString(part, doc.Content); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp fileResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai: %s", resp.Error.Message)
	}
	return resp.ID, nil
}

// postJSON performs a JSON POST against the API.
func (c *Client) postJSON(ctx context.Context, path string, body any, out interface{ errMessage() string }) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, out); err != nil {
		return err
	}
	if msg := out.errMessage(); msg != "" {
		return fmt.Errorf("openai: %s", msg)
	}
	return nil
}

// getJSON performs a JSON GET against the API.
func (c *Client) getJSON(ctx context.Context, path string, out interface{ errMessage() string }) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	if err := c.do(req, out); err != nil {
		return err
	}
	if msg := out.errMessage(); msg != "" {
		return fmt.Errorf("openai: %s", msg)
	}
	return nil
}

// delete performs a DELETE against the API.
func (c *Client) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var resp apiError
	if err := c.do(req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("openai: %s", resp.Error.Message)
	}
	return nil
}

// do executes a request and decodes the JSON response into out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errMessage lets response types report API-level errors uniformly.
func (e apiError) errMessage() string {
	if e.Error != nil {
		return e.Error.Message
	}
	return ""
}
