package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RequestOption customises a single request.
type RequestOption func(*attempt) error

// WithHeader sets an extra header on every attempt of the request.
func WithHeader(key, value string) RequestOption {
	return func(a *attempt) error {
		a.header.Set(key, value)
		return nil
	}
}

// WithoutAuth sends the request without the bearer credential and keeps it out
// of the refresh protocol. Used for login, registration and refresh itself.
func WithoutAuth() RequestOption {
	return func(a *attempt) error {
		a.noAuth = true
		return nil
	}
}

// WithRawBody sends r verbatim with the given content type instead of JSON.
func WithRawBody(r io.Reader, contentType string) RequestOption {
	return func(a *attempt) error {
		b, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("apiclient: failed to buffer request body: %w", err)
		}
		a.body = b
		a.header.Set("Content-Type", contentType)
		return nil
	}
}

// attempt carries everything needed to (re)send one logical request. The
// retried flag is the per-request marker that stops a second refresh.
type attempt struct {
	method string
	path   string
	header http.Header
	body   []byte
	noAuth bool

	retried  bool
	override string // credential to use on replay
	sentWith string // credential the last send carried
	gen      uint64 // refresh generation when the last send went out
	count    int
}

func (c *Client) newAttempt(method, path string, body any, opts []RequestOption) (*attempt, error) {
	a := &attempt{
		method: method,
		path:   path,
		header: make(http.Header),
	}
	a.header.Set("Accept", "application/json")

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: failed to encode request body: %w", err)
		}
		a.body = b
		a.header.Set("Content-Type", "application/json")
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// send performs one attempt through the interceptor chain. Any failure to get
// a response is reported as a NetworkError.
func (c *Client) send(ctx context.Context, a *attempt) (*http.Response, error) {
	a.count++

	var body io.Reader
	if a.body != nil {
		body = bytes.NewReader(a.body)
	}

	req, err := http.NewRequestWithContext(ctx, a.method, c.url(a.path), body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: failed to create request: %w", err)
	}
	req.Header = a.header.Clone()

	a.sentWith = ""
	a.gen = c.refresh.generation()
	if !a.noAuth {
		token := a.override
		if token == "" {
			token = c.Credential()
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		a.sentWith = token
	}

	for _, i := range c.interceptors {
		if err := i.BeforeSend(req); err != nil {
			return nil, &NetworkError{Method: a.method, Path: a.path, Err: err}
		}
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	ex := Exchange{
		Request:  req,
		Response: resp,
		Err:      err,
		Duration: time.Since(start),
		Attempt:  a.count,
	}
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		c.interceptors[i].AfterReceive(ex)
	}

	if err != nil {
		return nil, &NetworkError{Method: a.method, Path: a.path, Err: err}
	}
	return resp, nil
}

// execute sends a and interprets the response: decode on 2xx, refresh on 401,
// HTTPError otherwise.
func (c *Client) execute(ctx context.Context, a *attempt, out any) error {
	resp, err := c.send(ctx, a)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{
			Method: a.method,
			Path:   a.path,
			Err:    fmt.Errorf("failed to read response body: %w", err),
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return decodeJSON(bodyBytes, out)
	}

	httpErr := &HTTPError{
		Method: a.method,
		Path:   a.path,
		Status: resp.StatusCode,
		Body:   bodyBytes,
	}

	if resp.StatusCode != http.StatusUnauthorized || a.noAuth {
		return httpErr
	}

	return c.recoverUnauthorized(ctx, a, httpErr, out)
}

// decodeJSON decodes a successful response body into out. Empty bodies and nil
// targets are accepted.
func decodeJSON(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("apiclient: failed to decode response: %w", err)
	}
	return nil
}
