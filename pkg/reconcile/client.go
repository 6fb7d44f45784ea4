package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client errors surfaced to the engine's submission flow.
var (
	// ErrUnauthorized means the owner header was rejected; the session
	// collaborator handles it, the engine just drops the provisional row.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound covers 404s: missing pages and expired job history.
	ErrNotFound = errors.New("not found")
)

// ConflictError means the owner already has a live page for the URL.
type ConflictError struct {
	Message        string
	ExistingPageID string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// APIError is any other non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client is a thin HTTP client for the page API, scoped to one owner.
type Client struct {
	baseURL    string
	ownerID    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL acting as ownerID.
func NewClient(baseURL, ownerID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		ownerID: ownerID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SubmitResult pairs the created page with its queued job.
type SubmitResult struct {
	Page Page `json:"page"`
	Job  Job  `json:"job"`
}

type pageListResponse struct {
	Pages      []Page `json:"pages"`
	TotalCount int    `json:"total_count"`
}

// ListPages returns the owner's pages, newest first.
func (c *Client) ListPages(ctx context.Context) ([]Page, error) {
	var resp pageListResponse
	if err := c.do(ctx, http.MethodGet, "/api/pages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Pages, nil
}

// CreatePage submits a URL for scraping.
func (c *Client) CreatePage(ctx context.Context, pageURL string) (*SubmitResult, error) {
	body := map[string]string{"url": pageURL}
	var result SubmitResult
	if err := c.do(ctx, http.MethodPost, "/api/pages", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RetryPage re-queues a failed page.
func (c *Client) RetryPage(ctx context.Context, pageID string) (*SubmitResult, error) {
	var result SubmitResult
	path := "/api/pages/" + url.PathEscape(pageID) + "/retry"
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeletePage removes a page and its links.
func (c *Client) DeletePage(ctx context.Context, pageID string) error {
	return c.do(ctx, http.MethodDelete, "/api/pages/"+url.PathEscape(pageID), nil, nil)
}

// GetJob looks up a scrape job. ErrNotFound means the history entry has
// expired or never existed.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Owner-ID", c.ownerID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	return c.apiError(resp)
}

type errorResponse struct {
	Error          string `json:"error"`
	ExistingPageID string `json:"existing_page_id"`
}

func (c *Client) apiError(resp *http.Response) error {
	var body errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	json.Unmarshal(data, &body)

	message := body.Error
	if message == "" {
		message = strings.TrimSpace(string(data))
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return &ConflictError{Message: message, ExistingPageID: body.ExistingPageID}
	default:
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}
}
