package httpx

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/portal/pkg/apiclient"
	"github.com/aussiebroadwan/portal/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// DefaultClientLimit keeps a single portal session well under the backend's
// per-user throttle: 120 requests per minute with bursts of 20.
var DefaultClientLimit = RateLimitConfig{
	RequestsPerWindow: 120,
	Window:            time.Minute,
	Burst:             20,
}

// Enabled reports whether the config describes an actual limit.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerWindow > 0 && c.Window > 0
}

func (c RateLimitConfig) limit() rate.Limit {
	return rate.Limit(float64(c.RequestsPerWindow) / c.Window.Seconds())
}

func (c RateLimitConfig) burst() int {
	return max(c.Burst, 1)
}

// KeyExtractor groups outgoing requests that share a limiter.
type KeyExtractor func(*http.Request) string

// HostKeyExtractor shares one limiter per backend host.
func HostKeyExtractor(r *http.Request) string {
	return r.URL.Host
}

// MethodPathKeyExtractor gives every endpoint its own limiter.
func MethodPathKeyExtractor(r *http.Request) string {
	return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
}

// rateLimiter manages limiters for different keys
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	mu       sync.Mutex
	// Cleanup old limiters periodically
	lastCleanup time.Time
}

// getLimiter retrieves or creates a rate limiter for the given key
func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	// Sweep before storing so the fresh, full bucket for key survives.
	rl.maybeCleanup(key)

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)

	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose buckets are full, i.e. idle ones. keep is
// never dropped.
func (rl *rateLimiter) maybeCleanup(keep string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		if key.(string) != keep && value.(*rate.Limiter).Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitInterceptor delays outgoing requests so that each key stays within
// config. A request whose context ends while waiting fails without being sent.
func RateLimitInterceptor(config RateLimitConfig, keyExtractor KeyExtractor) apiclient.Interceptor {
	rl := &rateLimiter{
		rate:        config.limit(),
		burst:       config.burst(),
		lastCleanup: time.Now(),
	}

	return apiclient.InterceptorFuncs{
		Before: func(req *http.Request) error {
			ctx := req.Context()

			key := keyExtractor(req)
			limiter := rl.getLimiter(key)

			if limiter.Allow() {
				return nil
			}

			slogx.FromContext(ctx).Debug("rate limit: delaying request",
				"key", key,
				"endpoint", req.URL.Path,
			)

			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
			return nil
		},
	}
}
