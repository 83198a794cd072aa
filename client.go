package prowl

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prowl/internal/common"
	"github.com/ternarybob/prowl/internal/status"
	"github.com/ternarybob/prowl/internal/transport"
	"github.com/ternarybob/prowl/pkg/models"
)

// Client talks to the remote crawl/scrape service.
type Client struct {
	transport *transport.Client
	fetcher   *status.Fetcher
	logger    arbor.ILogger
}

// ClientOption configures the Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL    string
	product    string
	httpClient *http.Client
	logger     arbor.ILogger
	rateLimit  int
	retry      *transport.RetryPolicy
}

// WithBaseURL points the client at a self-hosted service instance.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *clientConfig) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithRateLimit sets the request rate limit (requests per second).
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *clientConfig) {
		c.rateLimit = requestsPerSecond
	}
}

// WithRetryPolicy overrides the 502 retry policy.
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(c *clientConfig) {
		c.retry = &policy
	}
}

// WithProduct sets the product identifier sent with every request.
func WithProduct(product string) ClientOption {
	return func(c *clientConfig) {
		c.product = product
	}
}

// NewClient creates a service client using the given bearer credential.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	cfg := clientConfig{
		baseURL: DefaultBaseURL,
		product: "prowl-go/" + common.GetVersion(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	transportOpts := []transport.Option{
		transport.WithProduct(cfg.product),
	}
	if cfg.httpClient != nil {
		transportOpts = append(transportOpts, transport.WithHTTPClient(cfg.httpClient))
	}
	if cfg.logger != nil {
		transportOpts = append(transportOpts, transport.WithLogger(cfg.logger))
	}
	if cfg.rateLimit > 0 {
		transportOpts = append(transportOpts, transport.WithRateLimit(cfg.rateLimit))
	}
	if cfg.retry != nil {
		transportOpts = append(transportOpts, transport.WithRetryPolicy(*cfg.retry))
	}

	t := transport.NewClient(cfg.baseURL, apiKey, transportOpts...)

	return &Client{
		transport: t,
		fetcher:   status.NewFetcher(t, cfg.logger),
		logger:    cfg.logger,
	}
}

type startResponse struct {
	Success     bool     `json:"success"`
	ID          string   `json:"id"`
	Error       string   `json:"error"`
	InvalidURLs []string `json:"invalidURLs"`
}

// StartCrawl submits a crawl job and returns its id.
func (c *Client) StartCrawl(ctx context.Context, req CrawlRequest) (string, error) {
	if req.URL == "" {
		return "", fmt.Errorf("crawl url is required")
	}

	var resp startResponse
	if err := c.transport.PostJSON(ctx, "/v1/crawl", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.ID == "" {
		return "", &RemoteError{
			StatusCode: 200,
			Endpoint:   "/v1/crawl",
			Message:    startFailureMessage(resp),
		}
	}

	if c.logger != nil {
		c.logger.Info().
			Str("job_id", resp.ID).
			Str("url", req.URL).
			Msg("Crawl job started")
	}
	return resp.ID, nil
}

// StartBatchScrape submits a batch scrape job over the given URLs and
// returns its id.
func (c *Client) StartBatchScrape(ctx context.Context, req BatchScrapeRequest) (string, error) {
	if len(req.URLs) == 0 {
		return "", fmt.Errorf("at least one url is required")
	}

	var resp startResponse
	if err := c.transport.PostJSON(ctx, "/v1/batch/scrape", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.ID == "" {
		return "", &RemoteError{
			StatusCode: 200,
			Endpoint:   "/v1/batch/scrape",
			Message:    startFailureMessage(resp),
		}
	}

	if c.logger != nil {
		c.logger.Info().
			Str("job_id", resp.ID).
			Int("urls", len(req.URLs)).
			Msg("Batch scrape job started")
	}
	return resp.ID, nil
}

func startFailureMessage(resp startResponse) string {
	if resp.Error != "" {
		return resp.Error
	}
	if len(resp.InvalidURLs) > 0 {
		return fmt.Sprintf("invalid urls: %s", strings.Join(resp.InvalidURLs, ", "))
	}
	return "job start reported failure"
}

// CancelJob cancels a running job.
func (c *Client) CancelJob(ctx context.Context, jobID string, kind models.WatchKind) error {
	if jobID == "" {
		return fmt.Errorf("job id is required")
	}
	prefix, err := kind.PathPrefix()
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/v1/%s/%s", prefix, jobID)
	var resp struct {
		Success bool   `json:"success"`
		Status  string `json:"status"`
		Error   string `json:"error"`
	}
	if err := c.transport.Delete(ctx, path, &resp); err != nil {
		return err
	}
	if !resp.Success && resp.Status != "cancelled" {
		message := resp.Error
		if message == "" {
			message = "cancel reported failure"
		}
		return &RemoteError{StatusCode: 200, Endpoint: path, Message: message}
	}
	return nil
}

// JobStatus returns the current job snapshot. For paginated results only
// the first page of documents is included; the snapshot's Next token marks
// the remainder. Use JobStatusAll to aggregate every page.
func (c *Client) JobStatus(ctx context.Context, jobID string, kind models.WatchKind) (*models.JobSnapshot, error) {
	return c.fetcher.Fetch(ctx, jobID, kind)
}

// JobStatusAll returns the current job snapshot with every result page
// aggregated into Documents.
func (c *Client) JobStatusAll(ctx context.Context, jobID string, kind models.WatchKind) (*models.JobSnapshot, error) {
	snapshot, err := c.fetcher.Fetch(ctx, jobID, kind)
	if err != nil {
		return nil, err
	}

	next := snapshot.Next
	visited := make(map[string]struct{})
	for next != "" {
		if _, seen := visited[next]; seen {
			break // pagination cycle, stop following
		}
		visited[next] = struct{}{}

		path, ok := c.relativePath(next)
		if !ok {
			break
		}

		var resp models.StatusResponse
		if err := c.transport.GetJSON(ctx, path, &resp); err != nil {
			return nil, err
		}

		page := status.SnapshotFromResponse(&resp)
		snapshot.Documents = append(snapshot.Documents, page.Documents...)
		next = page.Next
	}

	snapshot.Next = ""
	return snapshot, nil
}

// relativePath strips the base URL from a pagination link. The service
// hands back absolute URLs; anything pointing elsewhere is not followed.
func (c *Client) relativePath(link string) (string, bool) {
	if strings.HasPrefix(link, "/") {
		return link, true
	}
	base := c.transport.BaseURL()
	if strings.HasPrefix(link, base+"/") {
		return strings.TrimPrefix(link, base), true
	}
	return "", false
}

// WatchOption tunes a watcher or snapshot iterator.
type WatchOption func(*watchConfig)

type watchConfig struct {
	pollInterval     time.Duration
	timeout          time.Duration
	progressThrottle time.Duration
}

// WithPollInterval sets the fallback poll spacing, which is also the
// quiet-period window while streaming. Default is two seconds.
func WithPollInterval(interval time.Duration) WatchOption {
	return func(c *watchConfig) {
		c.pollInterval = interval
	}
}

// WithWatchTimeout sets the overall watch deadline, measured from Start
// (or the first iterator pull). Zero means no deadline.
func WithWatchTimeout(timeout time.Duration) WatchOption {
	return func(c *watchConfig) {
		c.timeout = timeout
	}
}

// WithProgressThrottle rate-limits progress snapshot events. Document and
// terminal events are never throttled.
func WithProgressThrottle(minInterval time.Duration) WatchOption {
	return func(c *watchConfig) {
		c.progressThrottle = minInterval
	}
}

// WatchCrawl creates a callback-style watcher for a crawl job. Register
// listeners, then call Start.
func (c *Client) WatchCrawl(jobID string, opts ...WatchOption) *Watcher {
	return c.newWatcher(jobID, models.WatchKindCrawl, opts)
}

// WatchBatch creates a callback-style watcher for a batch scrape job.
func (c *Client) WatchBatch(jobID string, opts ...WatchOption) *Watcher {
	return c.newWatcher(jobID, models.WatchKindBatch, opts)
}

// CrawlSnapshots creates a pull-style snapshot iterator for a crawl job.
func (c *Client) CrawlSnapshots(jobID string, opts ...WatchOption) *SnapshotIterator {
	return c.newIterator(jobID, models.WatchKindCrawl, opts)
}

// BatchSnapshots creates a pull-style snapshot iterator for a batch scrape
// job.
func (c *Client) BatchSnapshots(jobID string, opts ...WatchOption) *SnapshotIterator {
	return c.newIterator(jobID, models.WatchKindBatch, opts)
}

func (c *Client) watchConfig(opts []WatchOption) watchConfig {
	cfg := watchConfig{
		pollInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c *Client) newSession(jobID string, kind models.WatchKind, cfg watchConfig) *watchSession {
	dial := newStreamDialer(c.transport.BaseURL(), c.transport.APIKey())
	return newWatchSession(common.NewWatchSessionID(), jobID, kind, c.fetcher, dial, cfg.pollInterval, c.logger)
}

func (c *Client) newWatcher(jobID string, kind models.WatchKind, opts []WatchOption) *Watcher {
	cfg := c.watchConfig(opts)

	d := newDispatcher(c.logger)
	if cfg.progressThrottle > 0 {
		d.setProgressThrottle(cfg.progressThrottle)
	}

	return &Watcher{
		session:    c.newSession(jobID, kind, cfg),
		dispatcher: d,
		logger:     c.logger,
		timeout:    cfg.timeout,
		done:       make(chan struct{}),
	}
}

func (c *Client) newIterator(jobID string, kind models.WatchKind, opts []WatchOption) *SnapshotIterator {
	cfg := c.watchConfig(opts)
	return &SnapshotIterator{
		session: c.newSession(jobID, kind, cfg),
		timeout: cfg.timeout,
	}
}
