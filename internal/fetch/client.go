package fetch

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

const (
	defaultBase      = "http://127.0.0.1:8000/api"
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "periscope/0.1"
)

// Client issues single JSON requests against the backend base URL.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	timeout   time.Duration
	userAgent string
}

// Option customises a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a Client for base, e.g. "http://127.0.0.1:8000/api".
func NewClient(base string, opts ...Option) (*Client, error) {
	u, err := ParseBaseURL(base)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   u,
		http:      &http.Client{},
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns a copy of the normalized base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// HTTPClient exposes the underlying transport for long-lived requests such
// as the MJPEG stream, which must not be bound by the request timeout.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Resolve turns a path relative to the base ("/data/1/") into an absolute
// URL. Absolute http(s) URLs pass through untouched.
func (c *Client) Resolve(path string, query url.Values) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if len(query) == 0 {
			return path
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + query.Encode()
	}
	u := c.BaseURL()
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

// Request describes one call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	JSON   any
}

// Do executes req and returns the parsed body: decoded JSON when the body is
// JSON, the raw text otherwise, nil when empty. When dest is non-nil the body
// is also decoded into it.
func (c *Client) Do(ctx context.Context, req Request, dest any) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.JSON != nil {
		encoded, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	target := c.Resolve(req.Path, req.Query)
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%s %s: %w", method, req.Path, ErrTimeout)
		}
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%s %s: %w", method, req.Path, ErrTimeout)
		}
		return nil, fmt.Errorf("read response: %w", err)
	}
	parsed := parseBody(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parsed, &StatusError{
			Method: method,
			Path:   req.Path,
			Status: resp.StatusCode,
			Body:   parsed,
		}
	}
	if dest != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, dest); err != nil {
			return parsed, fmt.Errorf("decode response: %w", err)
		}
	}
	return parsed, nil
}

// Get is shorthand for a GET Do.
func (c *Client) Get(ctx context.Context, path string, query url.Values, dest any) (any, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, dest)
}

// Post is shorthand for a POST Do.
func (c *Client) Post(ctx context.Context, path string, query url.Values, payload, dest any) (any, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Query: query, JSON: payload}, dest)
}

// Put is shorthand for a PUT Do.
func (c *Client) Put(ctx context.Context, path string, payload, dest any) (any, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, JSON: payload}, dest)
}

// Patch is shorthand for a PATCH Do.
func (c *Client) Patch(ctx context.Context, path string, payload, dest any) (any, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, JSON: payload}, dest)
}

// Delete is shorthand for a DELETE Do.
func (c *Client) Delete(ctx context.Context, path string) (any, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}

func parseBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return string(raw)
	}
	return v
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ParseBaseURL normalizes a base such as "127.0.0.1:8000/api" into an
// absolute URL without query or fragment.
func ParseBaseURL(base string) (*url.URL, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = defaultBase
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base %q: %w", base, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api base %q: missing host", base)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
