// Package transport implements the HTTP request layer shared by every
// endpoint of the client: bearer authentication, JSON encoding, a bounded
// retry policy for gateway errors, and rate limiting.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default per-request HTTP timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is the default request rate (requests per second).
	DefaultRateLimit = 10
)

// RetryPolicy bounds retries for transient gateway failures. Only 502
// responses are retried; everything else surfaces immediately.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     []time.Duration
}

// DefaultRetryPolicy retries a 502 twice with short pauses.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     []time.Duration{500 * time.Millisecond, time.Second},
	}
}

func (p RetryPolicy) backoffFor(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 500 * time.Millisecond
	}
	if attempt >= len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	return p.Backoff[attempt]
}

// Client performs authenticated JSON requests against the service.
type Client struct {
	baseURL    string
	apiKey     string
	product    string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
	retry      RetryPolicy
}

// Option configures the transport Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithRetryPolicy sets the retry policy for 502 responses.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithProduct sets the product identifier sent with every request.
func WithProduct(product string) Option {
	return func(c *Client) {
		c.product = product
	}
}

// NewClient creates a transport client for the given base URL and bearer
// credential.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		retry:   DefaultRetryPolicy(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// APIKey returns the bearer credential.
func (c *Client) APIKey() string { return c.apiKey }

// GetJSON performs a GET request and decodes the JSON response into result.
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// PostJSON performs a POST request with a JSON body and decodes the JSON
// response into result.
func (c *Client) PostJSON(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// Delete performs a DELETE request and decodes the JSON response into
// result when result is non-nil.
func (c *Client) Delete(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodDelete, path, nil, result)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	// A zero-value policy still gets one request through.
	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retry.backoffFor(attempt - 1)):
			}
		}

		retryable, err := c.doOnce(ctx, method, path, payload, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}

		if c.logger != nil {
			c.logger.Warn().
				Err(err).
				Str("method", method).
				Str("path", path).
				Int("attempt", attempt+1).
				Msg("Retrying request after gateway error")
		}
	}

	return lastErr
}

// doOnce executes a single request. The bool result reports whether the
// failure is retryable under the retry policy.
func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, result any) (bool, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.product != "" {
		req.Header.Set("User-Agent", c.product)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Msg("Service API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadGateway {
		io.Copy(io.Discard, resp.Body)
		return true, &RemoteError{
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Message:    "bad gateway",
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return false, &RemoteError{
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Message:    errorMessage(raw, resp.StatusCode),
		}
	}

	if result == nil {
		io.Copy(io.Discard, resp.Body)
		return false, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	return false, nil
}

// errorMessage extracts the error field from a JSON error body, falling
// back to the raw body or status code.
func errorMessage(raw []byte, statusCode int) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return http.StatusText(statusCode)
}
