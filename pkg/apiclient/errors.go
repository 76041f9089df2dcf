package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRetryExhausted matches a 401 returned by a request that was already
	// replayed once after a token refresh.
	ErrRetryExhausted = errors.New("apiclient: request already retried after refresh")

	// ErrNoRefreshToken is wrapped in an AuthExpiredError when a 401 arrives and
	// no refresh credential is stored.
	ErrNoRefreshToken = errors.New("apiclient: no refresh token available")
)

// ============================================================================
// NetworkError
// ============================================================================

// NetworkError reports that no response reached the client, either because the
// transport failed or because the caller's context ended first.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("apiclient: %s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ============================================================================
// HTTPError
// ============================================================================

// HTTPError is returned for every non-2xx response the client does not recover from.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   []byte

	// Retried is set when the request had already been replayed after a refresh.
	Retried bool
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf(
		"apiclient: %s %s: unexpected status %d %s",
		e.Method,
		e.Path,
		e.Status,
		http.StatusText(e.Status),
	)
}

// Is lets errors.Is match ErrRetryExhausted for a 401 on a replayed request.
func (e *HTTPError) Is(target error) bool {
	return target == ErrRetryExhausted && e.Retried
}

// Decode unmarshals the response body into v. The backend returns validation
// failures as a JSON object keyed by field name.
func (e *HTTPError) Decode(v any) error {
	if len(e.Body) == 0 {
		return fmt.Errorf("apiclient: empty error body")
	}
	return json.Unmarshal(e.Body, v)
}

// FieldErrors decodes a validation payload of the form {"field": ["message", ...]}.
// Non-list values (e.g. {"detail": "..."}) are returned as single-element lists.
func (e *HTTPError) FieldErrors() map[string][]string {
	var raw map[string]json.RawMessage
	if err := e.Decode(&raw); err != nil {
		return nil
	}

	out := make(map[string][]string, len(raw))
	for field, msg := range raw {
		var list []string
		if err := json.Unmarshal(msg, &list); err == nil {
			out[field] = list
			continue
		}
		var single string
		if err := json.Unmarshal(msg, &single); err == nil {
			out[field] = []string{single}
		}
	}
	return out
}

// ============================================================================
// AuthExpiredError
// ============================================================================

// AuthExpiredError means the session could not be recovered. Stored credentials
// have been purged and the user has to authenticate again.
type AuthExpiredError struct {
	Err error
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("apiclient: session expired: %v", e.Err)
}

func (e *AuthExpiredError) Unwrap() error { return e.Err }

// IsAuthExpired reports whether err (or anything it wraps) is an AuthExpiredError.
func IsAuthExpired(err error) bool {
	var authErr *AuthExpiredError
	return errors.As(err, &authErr)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}
