package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/reposync/internal/models"
)

// Client talks to a running reposync server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL (e.g. http://localhost:8080).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Status fetches GET /api/v1/status.
func (c *Client) Status(ctx context.Context) (*ServerStatus, error) {
	var out ServerStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IndexStatus fetches GET /api/v1/index/status.
func (c *Client) IndexStatus(ctx context.Context) (*models.IndexJobState, error) {
	var out models.IndexJobState
	if err := c.do(ctx, http.MethodGet, "/api/v1/index/status", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartIndex posts to /api/v1/index/{kind}. commit is ignored for initial jobs.
func (c *Client) StartIndex(ctx context.Context, kind models.JobKind, commit string) (*models.IndexJobState, error) {
	var body interface{}
	if kind != models.JobInitial {
		body = map[string]string{"commit": commit}
	}
	var out models.IndexJobState
	err := c.do(ctx, http.MethodPost, "/api/v1/index/"+string(kind), body, http.StatusAccepted, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TrackedFiles fetches GET /api/v1/index/tracked-files.
func (c *Client) TrackedFiles(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "/api/v1/index/tracked-files", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return newHTTPError(resp.StatusCode, b)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// HTTPError is returned when the server answers with an unexpected status.
type HTTPError struct {
	StatusCode int
	Body       string
}

// newHTTPError prefers the "error" field of a JSON body over the raw body.
func newHTTPError(code int, body []byte) *HTTPError {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &HTTPError{StatusCode: code, Body: payload.Error}
	}
	return &HTTPError{StatusCode: code, Body: strings.TrimSpace(string(body))}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}
