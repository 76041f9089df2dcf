package portal_test

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/pkg/apiclient"
	"github.com/aussiebroadwan/portal/pkg/slogx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// End-to-end tests run against a real portal backend in a container. The
// image is not built here; PORTAL_E2E_IMAGE must name a backend image that
// serves the API under /api on port 8000.

const (
	backendPort   = "8000"
	apiPrefix     = "/api"
	testPassword  = "E2e-Password-123!"
	startupWindow = 90 * time.Second
)

// setupBackendContainer starts the backend and returns the API base URL.
func setupBackendContainer(t *testing.T) (string, func()) {
	t.Helper()

	image := os.Getenv("PORTAL_E2E_IMAGE")
	if image == "" || testing.Short() {
		t.Skip("PORTAL_E2E_IMAGE not set, skipping end-to-end tests")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{backendPort + "/tcp"},
		Env: map[string]string{
			"DEBUG":                "1",
			"ALLOWED_HOSTS":        "*",
			"ACCESS_TOKEN_MINUTES": "5",
		},
		// The token endpoint only accepts POST; any non-5xx answer means the
		// app server is up.
		WaitingFor: wait.ForHTTP(apiPrefix + "/auth/token/").
			WithPort(backendPort + "/tcp").
			WithStatusCodeMatcher(func(status int) bool { return status < http.StatusInternalServerError }).
			WithStartupTimeout(startupWindow),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, backendPort)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s%s", host, mappedPort.Port(), apiPrefix)

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return baseURL, cleanup
}

// refreshCounter counts attempts against the refresh endpoint.
type refreshCounter struct {
	n atomic.Int32
}

func (r *refreshCounter) interceptor() apiclient.Interceptor {
	return apiclient.InterceptorFuncs{
		Before: func(req *http.Request) error {
			if strings.HasSuffix(req.URL.Path, apiclient.DefaultRefreshPath) {
				r.n.Add(1)
			}
			return nil
		},
	}
}

func (r *refreshCounter) count() int { return int(r.n.Load()) }

// newPortal returns services over a fresh client plus a refresh counter.
func newPortal(t *testing.T, baseURL string) (*service.SessionService, *service.PatientService, *refreshCounter) {
	t.Helper()

	counter := &refreshCounter{}
	client := apiclient.New(baseURL, apiclient.NewMemoryStore(),
		apiclient.WithLogger(slogx.Discard()),
		apiclient.WithInterceptor(apiclient.RequestIDInterceptor()),
		apiclient.WithInterceptor(counter.interceptor()),
	)
	return &service.SessionService{Client: client}, &service.PatientService{Client: client}, counter
}

// registerAndLogin creates a unique account and logs it in.
func registerAndLogin(t *testing.T, session *service.SessionService) string {
	t.Helper()

	username := fmt.Sprintf("e2e%d", time.Now().UnixNano())
	_, err := session.Register(t.Context(), registerRequest(username))
	require.NoError(t, err)

	_, err = session.Login(t.Context(), username, testPassword)
	require.NoError(t, err)
	return username
}

// breakAccessToken replaces the attached access token with one the backend
// will reject, leaving the stored refresh token intact.
func breakAccessToken(t *testing.T, session *service.SessionService) {
	t.Helper()

	pair, ok, err := session.Client.Store().Load(t.Context())
	require.NoError(t, err)
	require.True(t, ok)

	session.Client.AttachAuth(pair.Access + "tampered")
}
