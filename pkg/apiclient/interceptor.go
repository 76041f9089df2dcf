package apiclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/portal/pkg/idx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// RequestIDHeader carries the per-attempt request identifier.
const RequestIDHeader = "X-Request-ID"

// Exchange describes one completed attempt as seen by AfterReceive.
type Exchange struct {
	Request  *http.Request
	Response *http.Response // nil when Err is set
	Err      error
	Duration time.Duration

	// Attempt is 1 for the first send and 2 for the replay after a refresh.
	Attempt int
}

// Interceptor hooks into every attempt the Client makes.
//
// BeforeSend may mutate the outgoing request (headers only, the body has
// already been prepared). Returning an error aborts the attempt and the error
// reaches the caller as a NetworkError.
//
// AfterReceive observes the result. The response body has not been read yet
// and must not be consumed.
type Interceptor interface {
	BeforeSend(req *http.Request) error
	AfterReceive(ex Exchange)
}

// InterceptorFuncs adapts plain functions to the Interceptor interface. Nil
// fields are skipped.
type InterceptorFuncs struct {
	Before func(req *http.Request) error
	After  func(ex Exchange)
}

func (f InterceptorFuncs) BeforeSend(req *http.Request) error {
	if f.Before == nil {
		return nil
	}
	return f.Before(req)
}

func (f InterceptorFuncs) AfterReceive(ex Exchange) {
	if f.After != nil {
		f.After(ex)
	}
}

// RequestIDInterceptor stamps each attempt with a fresh ULID unless the caller
// already set X-Request-ID.
func RequestIDInterceptor() Interceptor {
	return InterceptorFuncs{
		Before: func(req *http.Request) error {
			if req.Header.Get(RequestIDHeader) == "" {
				req.Header.Set(RequestIDHeader, idx.New().String())
			}
			return nil
		},
	}
}

// LoggingInterceptor logs one "http_request" event per attempt. The logger in
// the request context (see slogx.WithContext) takes precedence over base.
func LoggingInterceptor(base *slog.Logger) Interceptor {
	return InterceptorFuncs{
		After: func(ex Exchange) {
			logger := base
			if l := slogx.FromContext(ex.Request.Context()); l != slog.Default() || logger == nil {
				logger = l
			}

			attrs := []any{
				"method", ex.Request.Method,
				"path", ex.Request.URL.Path,
				"req_id", ex.Request.Header.Get(RequestIDHeader),
				"attempt", ex.Attempt,
				"duration_ms", ex.Duration.Milliseconds(),
			}

			if ex.Err != nil {
				logger.Warn("http_request", append(attrs, "error", ex.Err)...)
				return
			}

			attrs = append(attrs, "status", ex.Response.StatusCode)
			if ex.Response.StatusCode >= http.StatusInternalServerError {
				logger.Warn("http_request", attrs...)
				return
			}
			logger.Debug("http_request", attrs...)
		},
	}
}
