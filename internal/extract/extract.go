// Package extract fetches raw bike path records from the open data portal.
//
// The portal serves a CKAN datastore_search endpoint. Responses are either
// the CKAN envelope ({"success": true, "result": {"records": [...], "total": n}})
// or a GeoJSON FeatureCollection when the resource is a GeoJSON export.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/raphaelgruber/bikepaths/internal/models"
)

var (
	// ErrSourceUnavailable means the portal could not be reached after all retries.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrNotConfigured means the resource id is missing.
	ErrNotConfigured = errors.New("bike path resource id not configured")
	// ErrInvalidResponse means the portal answered with a body we cannot read.
	ErrInvalidResponse = errors.New("invalid response format")
)

const maxBodyBytes = 64 << 20

// Options configures a Client.
type Options struct {
	BaseURL       string
	ResourceID    string
	Timeout       time.Duration
	RetryAttempts int
	BatchSize     int

	// InitialInterval is the first retry delay. Zero uses one second.
	InitialInterval time.Duration
}

// Client fetches records from a CKAN datastore_search endpoint.
type Client struct {
	http   *http.Client
	opts   Options
	logger *slog.Logger
}

// New creates an extractor client.
func New(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		logger: logger,
	}
}

// SourceURL returns the endpoint records are stamped with.
func (c *Client) SourceURL() string {
	return c.opts.BaseURL
}

// Page is one decoded response.
type Page struct {
	Records []models.RawRecord
	// Total is the record count reported by the server, or -1 when unknown.
	Total int
}

// Fetch returns up to limit records, paging through the datastore in
// BatchSize steps. A limit of zero fetches everything.
func (c *Client) Fetch(ctx context.Context, limit int) ([]models.RawRecord, error) {
	if c.opts.ResourceID == "" {
		return nil, fmt.Errorf("%w: set QC_BIKE_PATH_BIKE_PATH_RESOURCE_ID", ErrNotConfigured)
	}

	var records []models.RawRecord
	offset := 0
	for {
		size := c.opts.BatchSize
		if limit > 0 && limit-len(records) < size {
			size = limit - len(records)
		}

		page, err := c.FetchPage(ctx, size, offset)
		if err != nil {
			return records, err
		}
		records = append(records, page.Records...)
		offset += len(page.Records)

		c.logger.Debug("fetched page", "offset", offset, "records", len(page.Records), "total", page.Total)

		shortPage := len(page.Records) < size
		if shortPage || (page.Total >= 0 && offset >= page.Total) || (limit > 0 && len(records) >= limit) {
			break
		}
	}

	// A GeoJSON export ignores paging and returns everything at once.
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	c.logger.Info("extracted bike path data", "records", len(records))
	return records, nil
}

// FetchPage performs one datastore_search request with retries.
func (c *Client) FetchPage(ctx context.Context, limit, offset int) (Page, error) {
	reqURL, err := c.pageURL(limit, offset)
	if err != nil {
		return Page{}, err
	}

	var page Page
	operation := func() error {
		body, err := c.get(ctx, reqURL)
		if err != nil {
			return err
		}
		p, err := ParseBody(body)
		if err != nil {
			return backoff.Permanent(err)
		}
		page = p
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	b.MaxInterval = 10 * c.opts.InitialInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.RetryAttempts-1)), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("fetch failed, retrying", "url", reqURL, "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		var statusErr *StatusError
		if errors.Is(err, ErrInvalidResponse) || (errors.As(err, &statusErr) && !statusErr.Transient()) {
			return Page{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Page{}, ctxErr
		}
		return Page{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return page, nil
}

func (c *Client) pageURL(limit, offset int) (string, error) {
	u, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("resource_id", c.opts.ResourceID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// Transient reports whether the request is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// get returns the body, or an error wrapped as permanent when retrying cannot help.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Code: resp.StatusCode, URL: reqURL}
		if statusErr.Transient() {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// ParseBody decodes a CKAN datastore_search envelope or a GeoJSON
// FeatureCollection into raw records.
func ParseBody(data []byte) (Page, error) {
	var probe struct {
		Type    string          `json:"type"`
		Success *bool           `json:"success"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	if probe.Type == "FeatureCollection" {
		return parseFeatureCollection(data)
	}

	if probe.Success != nil && !*probe.Success {
		return Page{}, fmt.Errorf("%w: success is false", ErrInvalidResponse)
	}
	if len(probe.Result) == 0 {
		return Page{}, fmt.Errorf("%w: missing 'result' key", ErrInvalidResponse)
	}

	var result struct {
		Records []models.RawRecord `json:"records"`
		Total   *int               `json:"total"`
	}
	if err := json.Unmarshal(probe.Result, &result); err != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if result.Records == nil {
		return Page{}, fmt.Errorf("%w: missing 'records' in result", ErrInvalidResponse)
	}

	total := -1
	if result.Total != nil {
		total = *result.Total
	}
	return Page{Records: result.Records, Total: total}, nil
}

func parseFeatureCollection(data []byte) (Page, error) {
	var fc struct {
		Features []struct {
			ID         any            `json:"id"`
			Geometry   any            `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	records := make([]models.RawRecord, 0, len(fc.Features))
	for _, f := range fc.Features {
		raw := make(models.RawRecord, len(f.Properties)+2)
		for k, v := range f.Properties {
			raw[k] = v
		}
		if _, ok := raw["id"]; !ok && f.ID != nil {
			raw["id"] = f.ID
		}
		raw["geometry"] = f.Geometry
		records = append(records, raw)
	}
	return Page{Records: records, Total: len(records)}, nil
}
