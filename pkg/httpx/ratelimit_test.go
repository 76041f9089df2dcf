package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/pkg/apiclient"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestKeyExtractors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://portal.example.com/appointments/", nil)

	require.Equal(t, "portal.example.com", httpx.HostKeyExtractor(req))
	require.Equal(t, "GET /appointments/", httpx.MethodPathKeyExtractor(req))
}

func TestRateLimitConfig(t *testing.T) {
	require.True(t, httpx.DefaultClientLimit.Enabled())
	require.False(t, httpx.RateLimitConfig{}.Enabled())
	require.False(t, httpx.RateLimitConfig{RequestsPerWindow: 5}.Enabled())
}

func TestRateLimitInterceptor(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	t.Cleanup(srv.Close)

	t.Run("allows burst then delays", func(t *testing.T) {
		hits.Store(0)
		limit := httpx.RateLimitConfig{RequestsPerWindow: 10, Window: time.Second, Burst: 2}
		client := apiclient.New(srv.URL, nil,
			apiclient.WithInterceptor(httpx.RateLimitInterceptor(limit, httpx.HostKeyExtractor)),
		)

		start := time.Now()
		for range 3 {
			require.NoError(t, client.Get(t.Context(), "/records/", nil))
		}

		// Third request has to wait ~100ms for a token
		require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
		require.Equal(t, int32(3), hits.Load())
	})

	t.Run("context ends while waiting", func(t *testing.T) {
		hits.Store(0)
		limit := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Hour, Burst: 1}
		client := apiclient.New(srv.URL, nil,
			apiclient.WithInterceptor(httpx.RateLimitInterceptor(limit, httpx.HostKeyExtractor)),
		)

		require.NoError(t, client.Get(t.Context(), "/records/", nil))

		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()

		err := client.Get(ctx, "/records/", nil)
		var netErr *apiclient.NetworkError
		require.ErrorAs(t, err, &netErr)
		require.Equal(t, int32(1), hits.Load(), "limited request must not reach the server")
	})

	t.Run("separate keys do not share a bucket", func(t *testing.T) {
		hits.Store(0)
		limit := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Hour, Burst: 1}
		client := apiclient.New(srv.URL, nil,
			apiclient.WithInterceptor(httpx.RateLimitInterceptor(limit, httpx.MethodPathKeyExtractor)),
		)

		require.NoError(t, client.Get(t.Context(), "/records/", nil))
		require.NoError(t, client.Get(t.Context(), "/prescriptions/", nil))
		require.Equal(t, int32(2), hits.Load())
	})
}
