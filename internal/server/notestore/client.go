// Package notestore is the boundary to the external note-storage
// collaborator. The core consumes only its usage counters; note content
// never flows through here.
package notestore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client exposes the two usage queries the quota enforcer needs.
type Client interface {
	CountNotes(ctx context.Context, userID string) (int64, error)
	TotalUploadBytes(ctx context.Context, userID string) (int64, error)
}

// HTTPClient talks to the note-storage service over its internal JSON API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient constructs a client with a hard request timeout. Quota
// checks fail closed when this deadline is exceeded.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// CountNotes returns the number of notes owned by userID.
func (c *HTTPClient) CountNotes(ctx context.Context, userID string) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	if err := c.get(ctx, "/internal/users/"+url.PathEscape(userID)+"/note-count", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// TotalUploadBytes returns the total attachment bytes stored for userID.
func (c *HTTPClient) TotalUploadBytes(ctx context.Context, userID string) (int64, error) {
	var out struct {
		TotalBytes int64 `json:"total_bytes"`
	}
	if err := c.get(ctx, "/internal/users/"+url.PathEscape(userID)+"/upload-bytes", &out); err != nil {
		return 0, err
	}
	return out.TotalBytes, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("note storage request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("note storage responded %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding note storage response: %w", err)
	}
	return nil
}
