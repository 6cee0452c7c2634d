// Package kaggle downloads dataset files from the Kaggle public API.
//
// The HTTP client retries transport errors, 429 and 5xx responses with
// exponential backoff, and respects context cancellation both during requests
// and while backing off.
package kaggle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Kaggle public API root.
const DefaultBaseURL = "https://www.kaggle.com/api/v1"

// Credentials authenticate against the Kaggle API (HTTP basic auth with the
// account name and API key).
type Credentials struct {
	Username string
	Key      string
}

// Config configures the Kaggle API client.
//
// Zero values are given sensible defaults:
//   - BaseURL:        DefaultBaseURL
//   - HeaderTimeout:  60s
//   - MaxRetries:     3
//   - InitialBackoff: 500ms
//   - MaxBackoff:     10s
type Config struct {
	BaseURL     string
	Credentials Credentials

	// HeaderTimeout bounds the wait for response headers. Body transfer is
	// bounded only by the caller's context, since dataset files can be large.
	HeaderTimeout time.Duration

	// MaxRetries is the number of retry attempts after the initial request.
	// A negative value disables retries.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Transport is an optional custom RoundTripper.
	Transport http.RoundTripper
}

// Client wraps an http.Client with Kaggle authentication and retry behavior.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	creds          Credentials
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	// sleep is injectable to make tests fast and deterministic.
	sleep func(context.Context, time.Duration) error
}

// NewClient constructs a Client from Config, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HeaderTimeout <= 0 {
		cfg.HeaderTimeout = 60 * time.Second
	}
	switch {
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}

	transport := cfg.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = cfg.HeaderTimeout
		transport = t
	}

	return &Client{
		httpClient:     &http.Client{Transport: transport},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		creds:          cfg.Credentials,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		sleep:          sleepWithContext,
	}
}

// StatusError is returned for a final non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("kaggle: GET %s: status %d", e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// DatasetFileURL returns the download URL of one file in owner/dataset.
func (c *Client) DatasetFileURL(owner, dataset, file string) string {
	return fmt.Sprintf("%s/datasets/download/%s/%s/%s",
		c.baseURL, url.PathEscape(owner), url.PathEscape(dataset), url.PathEscape(file))
}

// DownloadDatasetFile requests one file of a dataset. On success the caller
// must close the response body.
func (c *Client) DownloadDatasetFile(ctx context.Context, owner, dataset, file string) (*http.Response, error) {
	return c.get(ctx, c.DatasetFileURL(owner, dataset, file))
}

// get performs an authenticated GET with retry. Non-retryable non-2xx
// responses are converted into *StatusError.
func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	attempts := c.maxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("kaggle: build request: %w", err)
		}
		if c.creds.Username != "" || c.creds.Key != "" {
			req.SetBasicAuth(c.creds.Username, c.creds.Key)
		}
		req.Header.Set("User-Agent", "kaggle-elt")

		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		default:
			serr := statusError(resp, u)
			if !isRetryableStatus(resp.StatusCode) {
				return nil, serr
			}
			lastErr = serr
		}

		if attempt+1 >= attempts {
			break
		}
		if err := c.sleep(ctx, backoffDuration(c.initialBackoff, attempt, c.maxBackoff)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// statusError drains a small prefix of the body for diagnostics and closes it.
func statusError(resp *http.Response, u string) *StatusError {
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		StatusCode: resp.StatusCode,
		URL:        u,
		Body:       strings.TrimSpace(string(snippet)),
	}
}

// isRetryableStatus treats 429 and 5xx as transient.
func isRetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// backoffDuration returns initial * 2^attempt, clamped to max.
func backoffDuration(initial time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt <= 0 {
		return min(initial, max)
	}
	d := initial << attempt
	if d <= 0 || d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
