package supabase

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxResponseBytes caps how much of an upstream response body is read
const maxResponseBytes = 1 << 20

// Config holds the hosted backend connection settings
type Config struct {
	URL        string
	ServiceKey string
	Timeout    time.Duration
	Tracing    bool
}

// Validate reports missing settings. It is called lazily by the request
// path so that a misconfigured deployment answers 500 instead of exiting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("hosted backend URL is not configured")
	}
	if strings.TrimSpace(c.ServiceKey) == "" {
		return errors.New("hosted backend service key is not configured")
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("hosted backend URL %q is not an absolute URL", c.URL)
	}
	return nil
}

// Observer receives the outcome of every upstream call
type Observer interface {
	ObserveUpstream(service, operation string, status int, d time.Duration)
}

// Doer is the calling surface shared by the identity and profile clients
type Doer interface {
	Do(ctx context.Context, req Request, out interface{}) error
}

// Client performs authenticated REST calls against the hosted backend using
// the privileged service key
type Client struct {
	baseURL    *url.URL
	serviceKey string
	httpClient *http.Client
	observer   Observer
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for upstream calls
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithObserver records call durations, e.g. into Prometheus
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient creates a client for the hosted backend
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid hosted backend URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.Tracing {
		transport = otelhttp.NewTransport(transport)
	}

	c := &Client{
		baseURL:    baseURL,
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured project URL without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Request describes one upstream call
type Request struct {
	// Service and Operation label the call in metrics and errors
	Service   string
	Operation string

	Method string
	Path   string
	Query  url.Values
	Body   interface{}

	// BearerToken overrides the service key in the Authorization header.
	// The apikey header always carries the service key.
	BearerToken string
	Headers     map[string]string
}

// Do executes the request and decodes a successful JSON response into out
// (when out is non-nil and the body is not empty). Non-2xx responses are
// returned as *APIError.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	endpoint := *c.baseURL
	endpoint.Path = c.baseURL.Path + req.Path
	if len(req.Query) > 0 {
		endpoint.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", req.Operation, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", req.Operation, err)
	}

	bearer := c.serviceKey
	if req.BearerToken != "" {
		bearer = req.BearerToken
	}
	httpReq.Header.Set("apikey", c.serviceKey)
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req, 0, start)
		return fmt.Errorf("%s %s: %w", req.Service, req.Operation, err)
	}
	defer resp.Body.Close()
	c.observe(req, resp.StatusCode, start)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", req.Operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.Operation, err)
	}
	return nil
}

func (c *Client) observe(req Request, status int, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveUpstream(req.Service, req.Operation, status, time.Since(start))
}
