// Package client talks to a running bikepaths server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/raphaelgruber/bikepaths/internal/models"
)

// DefaultEndpoint is used when neither an endpoint nor QC_BIKE_PATH_SERVER_URL is set.
const DefaultEndpoint = "http://localhost:8080"

// ErrRunInProgress is returned by StartJob when the server is already running one.
var ErrRunInProgress = errors.New("server already has a run in progress")

// Client is an HTTP client for the bikepaths server.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a client. If endpoint is empty, uses QC_BIKE_PATH_SERVER_URL
// or DefaultEndpoint.
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("QC_BIKE_PATH_SERVER_URL")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Job mirrors the server's background run.
type Job struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	Limit       int                `json:"limit"`
	Phase       string             `json:"phase,omitempty"`
	Progress    int                `json:"progress"`
	Total       int                `json:"total"`
	Summary     *models.RunSummary `json:"summary,omitempty"`
	Error       string             `json:"error,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	return j.Status == "completed" || j.Status == "failed"
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("server error: %d %s", e.Code, e.Message)
}

// StartJob starts a pipeline run on the server. limit 0 means no limit.
func (c *Client) StartJob(ctx context.Context, limit int) (*Job, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var job Job
	err := c.do(ctx, http.MethodPost, "/jobs", q, &job)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusConflict {
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("start job: %w", err)
	}
	return &job, nil
}

// GetJob returns a job by id, or nil if the server does not know it.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, &job)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// ListJobs returns the server's jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := c.do(ctx, http.MethodGet, "/jobs", nil, &jobs); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, result any) error {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
