package wpclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
)

const (
	// HTTP client timeout in seconds.
	defaultHTTPTimeout = 30
	// Queue depth before enqueueing callers block.
	taskQueueDepth = 256

	defaultUserAgent = "cme-migrate/1.0 (+https://github.com/ksstormnet/cme-content-worker-sub001)"
)

var (
	ErrMaxConcurrentTooLow = errors.New("rate limit policy: max concurrent must be at least 1")
	ErrRequestRateTooLow   = errors.New("rate limit policy: requests per second must be positive")
	ErrClientClosed        = errors.New("client is closed")
)

// RateLimitPolicy bounds how hard the client leans on the remote API.
// Configured once at construction and never mutated.
type RateLimitPolicy struct {
	RequestsPerSecond float64
	MaxConcurrent     int
	RetryAttempts     int
	BackoffMultiplier float64
}

// DefaultRateLimitPolicy is conservative enough to stay under common
// shared-hosting WAF thresholds.
func DefaultRateLimitPolicy() RateLimitPolicy {
	return RateLimitPolicy{
		RequestsPerSecond: 2,
		MaxConcurrent:     3,
		RetryAttempts:     3,
		BackoffMultiplier: 1.5,
	}
}

// Validate checks the policy invariants.
func (p RateLimitPolicy) Validate() error {
	if p.MaxConcurrent < 1 {
		return ErrMaxConcurrentTooLow
	}
	if p.RequestsPerSecond <= 0 {
		return ErrRequestRateTooLow
	}
	return nil
}

// APIResult is the terminal outcome of one request. Exactly one of Data and
// Error is meaningful, keyed by Success. Request never returns a Go error:
// transport failures, non-2xx statuses and cancellations all land here.
type APIResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Status  int             `json:"status,omitempty"`
	Headers http.Header     `json:"-"`
}

// RequestOptions carries per-request overrides. The zero value is a GET
// with no query parameters.
type RequestOptions struct {
	Method string
	Query  url.Values
	Body   io.Reader
}

type requestTask struct {
	ctx  context.Context
	url  string
	opts RequestOptions
	done chan *APIResult
}

// Client wraps authenticated calls to a WordPress-style REST API behind a
// FIFO queue with a bounded concurrency window and a single pacing gate.
// Dispatch order is FIFO; completion order is not.
type Client struct {
	baseURL    string
	authHeader string
	userAgent  string
	policy     RateLimitPolicy
	httpClient *http.Client

	tasks     chan *requestTask
	closeOnce sync.Once
	closed    chan struct{}

	logger zerolog.Logger
}

// NewClient builds a client for the given site. Credentials are combined
// into a basic-auth token once, here, and attached to every request.
func NewClient(baseURL, username, appPassword string, policy RateLimitPolicy) (*Client, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + appPassword))

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: "Basic " + token,
		userAgent:  defaultUserAgent,
		policy:     policy,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout * time.Second,
		},
		tasks:  make(chan *requestTask, taskQueueDepth),
		closed: make(chan struct{}),
		logger: util.NewLogger(zerolog.InfoLevel),
	}

	go c.dispatch()

	return c, nil
}

// BaseURL returns the site root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Policy returns a copy of the rate limit policy.
func (c *Client) Policy() RateLimitPolicy {
	return c.policy
}

// SetTimeout overrides the underlying HTTP client timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Close stops the dispatcher. Requests enqueued after Close resolve with
// ErrClientClosed in the result.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// Request enqueues one API call and blocks until it resolves. The endpoint
// may be a path relative to the site root or an absolute URL.
func (c *Client) Request(ctx context.Context, endpoint string, opts *RequestOptions) *APIResult {
	var o RequestOptions
	if opts != nil {
		o = *opts
	}

	task := &requestTask{
		ctx:  ctx,
		url:  c.resolveURL(endpoint, o.Query),
		opts: o,
		done: make(chan *APIResult, 1),
	}

	select {
	case <-c.closed:
		return &APIResult{Success: false, Error: ErrClientClosed.Error()}
	case <-ctx.Done():
		return &APIResult{Success: false, Error: ctx.Err().Error()}
	case c.tasks <- task:
	}

	select {
	case result := <-task.done:
		return result
	case <-c.closed:
		return &APIResult{Success: false, Error: ErrClientClosed.Error()}
	case <-ctx.Done():
		return &APIResult{Success: false, Error: ctx.Err().Error()}
	}
}

// GetJSON performs a GET and decodes the successful payload into v.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, v interface{}) error {
	result := c.Request(ctx, endpoint, &RequestOptions{Query: query})
	if !result.Success {
		return fmt.Errorf("request %s failed: %s", endpoint, result.Error)
	}
	if err := json.Unmarshal(result.Data, v); err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("failed to decode response")
		return err
	}
	return nil
}

// TestConnection fetches the API root document. Used as the whole-pipeline
// precondition before any batch starts.
func (c *Client) TestConnection(ctx context.Context) *APIResult {
	return c.Request(ctx, "/wp-json/", nil)
}

// dispatch is the queue pump. A single goroutine owns the pacing gate, so
// dispatch timestamps of concurrent tasks still serialize through it while
// in-flight calls overlap up to MaxConcurrent.
func (c *Client) dispatch() {
	sem := make(chan struct{}, c.policy.MaxConcurrent)
	minInterval := time.Duration(float64(time.Second) / c.policy.RequestsPerSecond)

	var lastDispatch time.Time

	for {
		var task *requestTask
		select {
		case <-c.closed:
			return
		case task = <-c.tasks:
		}

		sem <- struct{}{} // acquire a concurrency slot

		if wait := minInterval - time.Since(lastDispatch); wait > 0 {
			time.Sleep(wait)
		}
		lastDispatch = time.Now()

		go func(t *requestTask) {
			defer func() { <-sem }()
			t.done <- c.execute(t)
		}(task)
	}
}

// execute runs one task with retries. Network errors, 429 and 5xx are
// retryable; other statuses resolve immediately, so pagination-end 400s
// never burn retry budget.
func (c *Client) execute(t *requestTask) *APIResult {
	var result *APIResult
	for attempt := 0; ; attempt++ {
		result = c.doOnce(t)
		if result.Success || !retryable(result) || attempt >= c.policy.RetryAttempts {
			return result
		}

		backoff := time.Duration(float64(attempt+1) * c.policy.BackoffMultiplier * float64(time.Second))
		c.logger.Warn().
			Str("url", t.url).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Str("error", result.Error).
			Msg("retrying request")

		select {
		case <-time.After(backoff):
		case <-t.ctx.Done():
			return result
		}
	}
}

func (c *Client) doOnce(t *requestTask) *APIResult {
	method := t.opts.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(t.ctx, method, t.url, t.opts.Body)
	if err != nil {
		return &APIResult{Success: false, Error: err.Error()}
	}

	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIResult{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIResult{Success: false, Error: err.Error(), Status: resp.StatusCode}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIResult{
			Success: false,
			Error:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			Status:  resp.StatusCode,
			Headers: resp.Header,
		}
	}

	return &APIResult{
		Success: true,
		Data:    body,
		Status:  resp.StatusCode,
		Headers: resp.Header,
	}
}

func (c *Client) resolveURL(endpoint string, query url.Values) string {
	target := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if !strings.HasPrefix(endpoint, "/") {
			endpoint = "/" + endpoint
		}
		target = c.baseURL + endpoint
	}

	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}

	return target
}

func retryable(result *APIResult) bool {
	if result.Status == 0 {
		// Transport-level failure, no response at all.
		return true
	}
	return result.Status == http.StatusTooManyRequests || result.Status >= http.StatusInternalServerError
}
