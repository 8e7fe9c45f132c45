package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/handiism/suno-downloader/internal/logging"
	"github.com/handiism/suno-downloader/internal/metrics"
)

// SleepFunc suspends the caller for d or until ctx is done.
//
// Every wait in the pipeline goes through a SleepFunc so tests can observe
// and skip the delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc. It returns ctx.Err() if the context ends
// before d elapses.
func Sleep(ctx context.Context, d time.Duration) error {
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

// Config holds the client's retry policy and transport settings.
type Config struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds one attempt, including reading the body.
	Timeout time.Duration

	// NetworkBackoff is the wait after a transport failure.
	NetworkBackoff time.Duration

	// RateLimitBackoff is the wait after an HTTP 429.
	RateLimitBackoff time.Duration
}

// DefaultConfig returns the policy used against the Suno API and CDN.
func DefaultConfig() Config {
	return Config{
		UserAgent:        "suno-downloader",
		Timeout:          5 * time.Minute,
		NetworkBackoff:   10 * time.Second,
		RateLimitBackoff: 20 * time.Second,
	}
}

// Client wraps outbound HTTP calls with a uniform throttling policy.
//
// Client provides:
//   - Retry forever on transport failures, after NetworkBackoff
//   - Retry forever on HTTP 429, after RateLimitBackoff
//   - Every other status returned to the caller unchanged
//
// Only context cancellation ends a Do call without a response.
//
// Example usage:
//
//	client := NewClient(DefaultConfig())
//
//	resp, err := client.Do(ctx, Request{
//	    Method: http.MethodPost,
//	    URL:    "https://studio-api.prod.suno.com/api/feed/v3",
//	    Token:  token,
//	    JSON:   map[string]int{"page": 1},
//	})
//	if err != nil {
//	    return err // ctx was cancelled
//	}
//	defer resp.Body.Close()
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *zap.Logger
	sleep      SleepFunc
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(l) }
}

// WithSleep replaces the wait used between retries.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewClient creates a new Client with the given policy.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     zap.NewNop(),
		sleep:      Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sleeper returns the SleepFunc this client waits with.
func (c *Client) Sleeper() SleepFunc {
	return c.sleep
}

// Request describes one outbound call.
//
// The request is rebuilt for every attempt, so a JSON body is re-encoded
// each time rather than read from a drained buffer.
type Request struct {
	Method string
	URL    string

	// Token is sent as "Authorization: Bearer <Token>" when set.
	Token string

	// Header holds extra headers.
	Header http.Header

	// JSON is encoded as the request body when non-nil.
	JSON any
}

func (c *Client) build(ctx context.Context, r Request) (*http.Request, error) {
	var body io.Reader
	if r.JSON != nil {
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, err
	}
	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}
	if r.JSON != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// DoOnce performs a single attempt with no retry policy.
//
// Use it where a failure should fall through to an alternative instead of
// waiting, such as credential lookups.
func (c *Client) DoOnce(ctx context.Context, r Request) (*http.Response, error) {
	req, err := c.build(ctx, r)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

// Do performs the request under the throttling policy.
//
// The returned response is never a 429. The caller must close its body.
// An error is returned only if ctx ends or the request cannot be built.
func (c *Client) Do(ctx context.Context, r Request) (*http.Response, error) {
	for attempt := 1; ; attempt++ {
		req, err := c.build(ctx, r)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("network error, retrying",
				zap.String("method", req.Method),
				zap.String("url", r.URL),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", c.cfg.NetworkBackoff),
				zap.Error(err),
			)
			metrics.RecordRetry("network")
			if err := c.sleep(ctx, c.cfg.NetworkBackoff); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			drain(resp)
			c.logger.Warn("rate limited, retrying",
				zap.String("method", req.Method),
				zap.String("url", r.URL),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", c.cfg.RateLimitBackoff),
			)
			metrics.RecordRetry("rate_limited")
			if err := c.sleep(ctx, c.cfg.RateLimitBackoff); err != nil {
				return nil, err
			}
			continue
		}

		return resp, nil
	}
}

// Head issues a HEAD request under the throttling policy and returns the
// status code and Content-Length (-1 when absent).
//
// This is the lightweight readiness probe: no body is transferred.
func (c *Client) Head(ctx context.Context, url string) (int, int64, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodHead, URL: url})
	if err != nil {
		return 0, 0, err
	}
	drain(resp)
	return resp.StatusCode, resp.ContentLength, nil
}

// Get performs a GET request and returns the body as bytes.
//
// Use this for small payloads like cover art. For audio, use Stream.
// Returns an error if the status is not 2xx.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := CheckStatus(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// Stream performs a GET request and hands the body to write, closing it as
// soon as write returns so large payloads are released immediately.
//
// If onProgress is non-nil the body is wrapped in a ProgressWriter-style
// reader reporting (bytesRead, contentLength).
func (c *Client) Stream(ctx context.Context, url string, onProgress func(written, total int64), write func(io.Reader) error) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := CheckStatus(resp); err != nil {
		return err
	}

	var body io.Reader = resp.Body
	if onProgress != nil {
		body = io.TeeReader(resp.Body, &ProgressWriter{
			Writer:   io.Discard,
			Total:    resp.ContentLength,
			OnUpdate: onProgress,
		})
	}
	return write(body)
}

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// CheckStatus returns a *StatusError unless resp has a 2xx status.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

// drain discards the rest of the body and closes it so the connection can
// be reused.
func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// ProgressWriter wraps a writer to track download progress.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer: file,
//	    Total:  contentLength,
//	    OnUpdate: func(written, total int64) {
//	        fmt.Printf("%d / %d bytes\n", written, total)
//	    },
//	}
//	io.Copy(pw, response.Body)
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header).
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with (bytesWritten, totalExpected).
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}
