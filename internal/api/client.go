package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable means no watcher answered at the configured address.
var ErrUnavailable = errors.New("bundlewatch daemon not reachable")

// Client talks to a running watcher's control API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a Client for baseURL, e.g. "http://127.0.0.1:7489".
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Status fetches watcher state.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	return c.do(ctx, http.MethodGet, "/api/status")
}

// Check forces a remote check.
func (c *Client) Check(ctx context.Context) (*Status, error) {
	return c.do(ctx, http.MethodPost, "/api/check")
}

// Ignore dismisses the open prompt.
func (c *Client) Ignore(ctx context.Context) (*Status, error) {
	return c.do(ctx, http.MethodPost, "/api/ignore")
}

// Reload reloads the watched page.
func (c *Client) Reload(ctx context.Context) (*Status, error) {
	return c.do(ctx, http.MethodPost, "/api/reload")
}

func (c *Client) do(ctx context.Context, method, path string) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrUnavailable, c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var status Status
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}
