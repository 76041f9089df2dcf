package apiclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client is an HTTP client for the portal backend with bearer authentication
// and transparent access-token refresh.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	store        TokenStore
	refreshPath  string
	interceptors []Interceptor
	logger       *slog.Logger

	refresh refreshCoordinator

	mu     sync.RWMutex
	bearer string
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client (10 second timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithInterceptor appends an interceptor. Interceptors run BeforeSend in
// registration order and AfterReceive in reverse order.
func WithInterceptor(i Interceptor) Option {
	return func(c *Client) { c.interceptors = append(c.interceptors, i) }
}

// WithLogger sets the logger used for refresh events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRefreshPath overrides DefaultRefreshPath.
func WithRefreshPath(path string) Option {
	return func(c *Client) { c.refreshPath = path }
}

// New creates a Client for baseURL that reads and writes tokens through store.
// A nil store behaves like an empty MemoryStore.
func New(baseURL string, store TokenStore, opts ...Option) *Client {
	if store == nil {
		store = NewMemoryStore()
	}

	c := &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		store:       store,
		refreshPath: DefaultRefreshPath,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// AttachAuth sets the default bearer credential used by every subsequent
// request. An empty token clears it.
func (c *Client) AttachAuth(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bearer = token
}

// Credential returns the current default bearer credential.
func (c *Client) Credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bearer
}

// Store returns the TokenStore the client persists credentials in.
func (c *Client) Store() TokenStore {
	return c.store
}

// Refreshing reports whether a refresh cycle is in flight.
func (c *Client) Refreshing() bool {
	return c.refresh.inFlight()
}

// Request issues method against BaseURL+path. body, when non-nil, is sent as
// JSON. On a 2xx response the body is decoded into out (nil discards it).
func (c *Client) Request(
	ctx context.Context,
	method, path string,
	body, out any,
	opts ...RequestOption,
) error {
	a, err := c.newAttempt(method, path, body, opts)
	if err != nil {
		return err
	}
	return c.execute(ctx, a, out)
}

// Get issues a GET request and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodPost, path, body, out, opts...)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodPut, path, body, out, opts...)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodPatch, path, body, out, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Request(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Upload sends a pre-encoded body (e.g. multipart/form-data) with the given
// content type. The body is buffered so it can be replayed after a refresh.
func (c *Client) Upload(
	ctx context.Context,
	method, path string,
	body io.Reader,
	contentType string,
	out any,
	opts ...RequestOption,
) error {
	opts = append(opts, WithRawBody(body, contentType))
	return c.Request(ctx, method, path, nil, out, opts...)
}
