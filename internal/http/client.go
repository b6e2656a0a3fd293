package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a single fetch so a stalled connection cannot
	// hold a concurrency slot forever.
	DefaultTimeout = 25 * time.Second

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "spritefetch/1.0"

	// DefaultMaxBodySize caps the number of bytes read from one response.
	DefaultMaxBodySize int64 = 32 << 20
)

// FetchError describes a failed fetch.
//
// StatusCode is the HTTP status of the response, or 0 when no response
// was received (transport error, timeout, cancellation).
type FetchError struct {
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %s", e.URL, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the fetch failed because its deadline expired.
func (e *FetchError) IsTimeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Client wraps HTTP operations used to fetch resources.
//
// Client provides:
//   - A fixed per-request timeout
//   - A configured User-Agent header
//   - Classification of every non-200 outcome as a *FetchError
//
// A Client holds no per-request state and is safe for concurrent use.
// Strategies that share memory share one Client; worker processes build
// their own.
//
// Example usage:
//
//	client := NewClient(WithTimeout(10 * time.Second))
//
//	data, err := client.Fetch(ctx, "https://example.com/sprites/1.png")
//	var fe *FetchError
//	if errors.As(err, &fe) {
//	    fmt.Println(fe.StatusCode, fe.Reason)
//	}
type Client struct {
	httpClient  *http.Client
	userAgent   string
	timeout     time.Duration
	maxBodySize int64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the largest response body accepted.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client. The per-request
// timeout is still enforced through the request context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new HTTP client.
//
// Without options the client is configured with:
//   - 25 second timeout
//   - "spritefetch/1.0" User-Agent header
//   - 32 MiB body limit
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{},
		userAgent:   DefaultUserAgent,
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Get performs a GET request and returns the response body as bytes.
//
// The request includes the configured User-Agent header and is bounded
// by the client timeout.
//
// Returns an error if:
//   - The request fails or times out
//   - The response status is not 200 OK
//   - Reading the body fails or the body exceeds the size limit
//
// Every returned error is a *FetchError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Reason: "invalid request: " + err.Error(), Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Reason: transportReason(ctx, err), Err: transportErr(ctx, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Reason: "read body: " + transportReason(ctx, err), Err: transportErr(ctx, err)}
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Reason: fmt.Sprintf("body exceeds %d bytes", c.maxBodySize)}
	}
	if resp.ContentLength > 0 && int64(len(body)) != resp.ContentLength {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Reason: fmt.Sprintf("short body: got %d of %d bytes", len(body), resp.ContentLength)}
	}

	return body, nil
}

// Fetch retrieves the resource at url in a single attempt.
//
// Fetch is the Fetcher contract used by the download strategies; it never
// retries and never touches storage.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	return c.Get(ctx, url)
}

func transportReason(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return "canceled"
	}
	return err.Error()
}

func transportErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
