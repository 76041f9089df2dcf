package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/pkg/slogx"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a minimal backend: /auth/token/ logs in as a1/r1, the refresh
// endpoint hands out next, and /data/ only accepts tokens in valid.
type fakeAPI struct {
	srv *httptest.Server

	mu       sync.Mutex
	valid    map[string]bool
	next     TokenPair
	seenAuth []string
	uploads  [][]byte

	refreshCalls  atomic.Int32
	refreshStatus int           // non-zero fails the refresh with this status
	refreshDelay  time.Duration // widens the in-flight window
	release       chan struct{} // when set, refresh blocks until closed

	// staleBarrier, when set, holds every 401 on /data/ until all callers
	// have been rejected, so they hit the client at the same moment.
	staleBarrier *sync.WaitGroup
}

// newFakeAPI starts the backend. opts adjust its behaviour before it serves
// the first request.
func newFakeAPI(t *testing.T, opts ...func(*fakeAPI)) *fakeAPI {
	t.Helper()

	f := &fakeAPI{
		valid: map[string]bool{"a1": true},
		next:  TokenPair{Access: "a2", Refresh: "r2"},
	}
	for _, opt := range opts {
		opt(f)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, TokenPair{Access: "a1", Refresh: "r1"})
	})
	mux.HandleFunc("POST /auth/token/refresh/", f.handleRefresh)
	mux.HandleFunc("/data/", f.handleData)
	mux.HandleFunc("PATCH /upload/", f.handleUpload)
	mux.HandleFunc("/always401/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "nope"})
	})
	mux.HandleFunc("/boom/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
	})
	mux.HandleFunc("/invalid/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"username": []string{"A user with that username already exists."},
			"detail":   "bad request",
		})
	})
	mux.HandleFunc("/empty/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) authorized(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seenAuth = append(f.seenAuth, r.Header.Get("Authorization"))
	return token, f.valid[token]
}

func (f *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)

	if f.release != nil {
		<-f.release
	}
	time.Sleep(f.refreshDelay)

	if r.Header.Get("Authorization") != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "refresh must not carry a bearer"})
		return
	}
	if f.refreshStatus != 0 {
		writeJSON(w, f.refreshStatus, map[string]string{"detail": "Token is invalid or expired"})
		return
	}

	var req refreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Refresh != "r1" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "unknown refresh token"})
		return
	}

	f.mu.Lock()
	next := f.next
	f.valid[next.Access] = true
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, next)
}

func (f *fakeAPI) handleData(w http.ResponseWriter, r *http.Request) {
	token, ok := f.authorized(r)
	if !ok {
		if f.staleBarrier != nil {
			f.staleBarrier.Done()
			f.staleBarrier.Wait()
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token_not_valid"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (f *fakeAPI) handleUpload(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.uploads = append(f.uploads, body)
	f.mu.Unlock()

	if _, ok := f.authorized(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token_not_valid"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content_type": r.Header.Get("Content-Type")})
}

func (f *fakeAPI) auths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seenAuth...)
}

func (f *fakeAPI) uploaded() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.uploads...)
}

func (f *fakeAPI) expireA1() {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.valid, "a1")
}

// newStaleClient returns a client holding a1/r1 where a1 is already rejected.
func newStaleClient(t *testing.T, f *fakeAPI) (*Client, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	require.NoError(t, store.Save(t.Context(), TokenPair{Access: "a1", Refresh: "r1"}))
	f.expireA1()

	c := New(f.srv.URL, store, WithLogger(slogx.Discard()))
	c.AttachAuth("a1")
	return c, store
}

type dataResp struct {
	Token string `json:"token"`
}

func TestLoginThenBearerIsAttached(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t)
	c := New(f.srv.URL, nil, WithLogger(slogx.Discard()))
	ctx := t.Context()

	var pair TokenPair
	require.NoError(t, c.Post(ctx, "/auth/token/", map[string]string{"username": "jane", "password": "pw"}, &pair, WithoutAuth()))
	require.Equal(t, TokenPair{Access: "a1", Refresh: "r1"}, pair)

	require.NoError(t, c.Store().Save(ctx, pair))
	c.AttachAuth(pair.Access)

	var out dataResp
	require.NoError(t, c.Get(ctx, "/data/", &out))
	require.Equal(t, "a1", out.Token)
	require.Equal(t, []string{"Bearer a1"}, f.auths())
}

func TestAttachAuth(t *testing.T) {
	t.Parallel()

	c := New("http://example.invalid/", nil)
	require.Equal(t, "http://example.invalid", c.BaseURL)

	c.AttachAuth("a1")
	c.AttachAuth("a1")
	require.Equal(t, "a1", c.Credential())

	c.AttachAuth("")
	require.Empty(t, c.Credential())
}

func TestRefreshAndReplay(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t)
	c, store := newStaleClient(t, f)
	ctx := t.Context()

	var out dataResp
	require.NoError(t, c.Get(ctx, "/data/", &out))
	require.Equal(t, "a2", out.Token)
	require.Equal(t, int32(1), f.refreshCalls.Load())
	require.Equal(t, []string{"Bearer a1", "Bearer a2"}, f.auths())

	pair, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, TokenPair{Access: "a2", Refresh: "r2"}, pair)
	require.Equal(t, "a2", c.Credential())
	require.False(t, c.Refreshing())
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	t.Parallel()

	const n = 3
	f := newFakeAPI(t, func(f *fakeAPI) {
		f.refreshDelay = 50 * time.Millisecond
		f.staleBarrier = &sync.WaitGroup{}
		f.staleBarrier.Add(n)
	})
	c, _ := newStaleClient(t, f)

	var wg sync.WaitGroup
	results := make([]dataResp, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Get(t.Context(), "/data/", &results[i])
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), f.refreshCalls.Load())
	for i := range n {
		require.NoError(t, errs[i])
		require.Equal(t, "a2", results[i].Token)
	}
}

func TestManyConcurrentUnauthorized(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t, func(f *fakeAPI) { f.refreshDelay = 20 * time.Millisecond })
	c, _ := newStaleClient(t, f)

	const n = 25
	var wg sync.WaitGroup
	var failures atomic.Int32
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out dataResp
			if err := c.Get(t.Context(), "/data/", &out); err != nil || out.Token != "a2" {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Zero(t, failures.Load())
	require.Equal(t, int32(1), f.refreshCalls.Load())
}

func TestRefreshFailureRejectsEveryone(t *testing.T) {
	t.Parallel()

	const n = 3
	f := newFakeAPI(t, func(f *fakeAPI) {
		f.refreshStatus = http.StatusUnauthorized
		f.refreshDelay = 50 * time.Millisecond
		f.staleBarrier = &sync.WaitGroup{}
		f.staleBarrier.Add(n)
	})
	c, store := newStaleClient(t, f)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Get(t.Context(), "/data/", nil)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), f.refreshCalls.Load())
	for _, err := range errs {
		require.True(t, IsAuthExpired(err), "got %v", err)
	}

	_, ok, err := store.Load(t.Context())
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, c.Credential())
	require.False(t, c.Refreshing())
}

func TestRefreshFailureCarriesRefreshError(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t, func(f *fakeAPI) { f.refreshStatus = http.StatusUnauthorized })
	c, _ := newStaleClient(t, f)

	err := c.Get(t.Context(), "/data/", nil)

	var authErr *AuthExpiredError
	require.ErrorAs(t, err, &authErr)

	var httpErr *HTTPError
	require.ErrorAs(t, authErr.Err, &httpErr)
	require.Equal(t, DefaultRefreshPath, httpErr.Path)
	require.Equal(t, http.StatusUnauthorized, httpErr.Status)
}

func TestSecondUnauthorizedIsNotRetried(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t)
	c, _ := newStaleClient(t, f)

	err := c.Get(t.Context(), "/always401/", nil)
	require.ErrorIs(t, err, ErrRetryExhausted)
	require.Equal(t, http.StatusUnauthorized, StatusCode(err))
	require.False(t, IsAuthExpired(err))
	require.Equal(t, int32(1), f.refreshCalls.Load())

	// The refresh itself succeeded, so the new session is kept.
	require.Equal(t, "a2", c.Credential())
}

func TestNoRefreshToken(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t)
	f.expireA1()
	c := New(f.srv.URL, nil, WithLogger(slogx.Discard()))
	c.AttachAuth("a1")

	err := c.Get(t.Context(), "/data/", nil)
	require.True(t, IsAuthExpired(err))
	require.ErrorIs(t, err, ErrNoRefreshToken)
	require.Equal(t, http.StatusUnauthorized, StatusCode(err))
	require.Empty(t, c.Credential())
	require.Zero(t, f.refreshCalls.Load())
}

func TestSlidingRefreshKeepsRefreshToken(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t, func(f *fakeAPI) { f.next = TokenPair{Access: "a2"} })
	c, store := newStaleClient(t, f)

	require.NoError(t, c.Get(t.Context(), "/data/", nil))

	pair, _, err := store.Load(t.Context())
	require.NoError(t, err)
	require.Equal(t, TokenPair{Access: "a2", Refresh: "r1"}, pair)
}

func TestRefreshWithoutAccessTokenFails(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t, func(f *fakeAPI) { f.next = TokenPair{} })
	c, store := newStaleClient(t, f)

	err := c.Get(t.Context(), "/data/", nil)
	require.True(t, IsAuthExpired(err))

	_, ok, _ := store.Load(t.Context())
	require.False(t, ok)
}

func TestNetworkErrorSkipsRefresh(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store := NewMemoryStore()
	require.NoError(t, store.Save(t.Context(), TokenPair{Access: "a1", Refresh: "r1"}))
	c := New(url, store, WithLogger(slogx.Discard()))
	c.AttachAuth("a1")

	err := c.Get(t.Context(), "/data/", nil)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, "/data/", netErr.Path)
	require.Zero(t, StatusCode(err))

	// Nothing was touched.
	require.Equal(t, "a1", c.Credential())
	_, ok, _ := store.Load(t.Context())
	require.True(t, ok)
}

func TestHTTPErrorIsImmediate(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t)
	c := New(f.srv.URL, nil, WithLogger(slogx.Discard()))
	c.AttachAuth("a1")

	err := c.Get(t.Context(), "/boom/", nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusInternalServerError, httpErr.Status)
	require.NotErrorIs(t, err, ErrRetryExhausted)

	var detail struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, httpErr.Decode(&detail))
	require.Equal(t, "boom", detail.Detail)
	require.Zero(t, f.refreshCalls.Load())

	err = c.Get(t.Context(), "/invalid/", nil)
	require.ErrorAs(t, err, &httpErr)
	fields := httpErr.FieldErrors()
	require.Equal(t, []string{"A user with that username already exists."}, fields["username"])
	require.Equal(t, []string{"bad request"}, fields["detail"])
}

func TestNoContent(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t)
	c := New(f.srv.URL, nil)

	var out dataResp
	require.NoError(t, c.Delete(t.Context(), "/empty/", &out))
	require.Empty(t, out.Token)
}

func TestWithoutAuthOmitsBearer(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t)
	c := New(f.srv.URL, nil, WithLogger(slogx.Discard()))
	c.AttachAuth("a1")

	err := c.Get(t.Context(), "/data/", nil, WithoutAuth())
	require.Equal(t, http.StatusUnauthorized, StatusCode(err))
	require.False(t, IsAuthExpired(err))
	require.Equal(t, []string{""}, f.auths())
	require.Equal(t, "a1", c.Credential())
}

func TestUploadIsReplayedAfterRefresh(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t)
	c, _ := newStaleClient(t, f)

	payload := []byte("--b\r\npicture bytes\r\n--b--\r\n")
	var out struct {
		ContentType string `json:"content_type"`
	}
	err := c.Upload(t.Context(), http.MethodPatch, "/upload/", bytes.NewReader(payload), "multipart/form-data; boundary=b", &out)
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data; boundary=b", out.ContentType)

	uploads := f.uploaded()
	require.Len(t, uploads, 2)
	require.Equal(t, payload, uploads[0])
	require.Equal(t, payload, uploads[1])
}

func TestWaiterContextCancelled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	f := newFakeAPI(t, func(f *fakeAPI) { f.release = release })
	c, _ := newStaleClient(t, f)

	leaderErr := make(chan error, 1)
	go func() {
		leaderErr <- c.Get(context.Background(), "/data/", nil)
	}()
	require.Eventually(t, c.Refreshing, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()
	err := c.Get(ctx, "/data/", nil)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The cycle is unaffected by the impatient waiter.
	close(release)
	require.NoError(t, <-leaderErr)
	require.Equal(t, "a2", c.Credential())
	require.Equal(t, int32(1), f.refreshCalls.Load())
}

func TestLeaderContextDoesNotCancelRefresh(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	f := newFakeAPI(t, func(f *fakeAPI) { f.release = release })
	c, store := newStaleClient(t, f)

	ctx, cancel := context.WithCancel(t.Context())
	leaderErr := make(chan error, 1)
	go func() {
		leaderErr <- c.Get(ctx, "/data/", nil)
	}()
	require.Eventually(t, c.Refreshing, time.Second, 5*time.Millisecond)

	waiterErr := make(chan error, 1)
	go func() {
		waiterErr <- c.Get(t.Context(), "/data/", nil)
	}()

	cancel()
	close(release)

	require.NoError(t, <-waiterErr)
	<-leaderErr

	pair, _, err := store.Load(t.Context())
	require.NoError(t, err)
	require.Equal(t, "a2", pair.Access)
}

func TestInterceptors(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t)

	var seenIDs []string
	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	capture := InterceptorFuncs{
		Before: func(req *http.Request) error {
			record("capture.before")
			seenIDs = append(seenIDs, req.Header.Get(RequestIDHeader))
			return nil
		},
		After: func(Exchange) { record("capture.after") },
	}
	outer := InterceptorFuncs{
		Before: func(*http.Request) error { record("outer.before"); return nil },
		After:  func(Exchange) { record("outer.after") },
	}

	c := New(f.srv.URL, nil,
		WithLogger(slogx.Discard()),
		WithInterceptor(outer),
		WithInterceptor(RequestIDInterceptor()),
		WithInterceptor(capture),
	)
	c.AttachAuth("a1")

	require.NoError(t, c.Get(t.Context(), "/data/", nil))
	require.Equal(t, []string{"outer.before", "capture.before", "capture.after", "outer.after"}, order)

	require.Len(t, seenIDs, 1)
	_, err := ulid.ParseStrict(seenIDs[0])
	require.NoError(t, err)

	require.NoError(t, c.Get(t.Context(), "/data/", nil, WithHeader(RequestIDHeader, "caller-id")))
	require.Equal(t, "caller-id", seenIDs[1])
}

func TestInterceptorErrorAbortsRequest(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t)
	blocked := errors.New("blocked")
	c := New(f.srv.URL, nil, WithInterceptor(InterceptorFuncs{
		Before: func(*http.Request) error { return blocked },
	}))

	err := c.Get(t.Context(), "/data/", nil)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	require.ErrorIs(t, err, blocked)
	require.Empty(t, f.auths())
}

func TestLoggingInterceptor(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := New(f.srv.URL, nil,
		WithLogger(slogx.Discard()),
		WithInterceptor(RequestIDInterceptor()),
		WithInterceptor(LoggingInterceptor(logger)),
	)
	c.AttachAuth("a1")

	require.NoError(t, c.Get(t.Context(), "/data/", nil))
	_ = c.Get(t.Context(), "/boom/", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	require.Equal(t, "http_request", first["msg"])
	require.Equal(t, "DEBUG", first["level"])
	require.Equal(t, float64(http.StatusOK), first["status"])
	require.NotEmpty(t, first["req_id"])

	require.Equal(t, "WARN", second["level"])
	require.Equal(t, float64(http.StatusInternalServerError), second["status"])
	require.NotContains(t, buf.String(), "a1")
}

// slowLoadStore serves its first Load immediately and holds every later one
// until the refreshed pair has been saved, plus a little slack.
type slowLoadStore struct {
	*MemoryStore
	loads atomic.Int32
	saved chan struct{}
	once  sync.Once
}

func (s *slowLoadStore) Load(ctx context.Context) (TokenPair, bool, error) {
	if s.loads.Add(1) > 1 {
		<-s.saved
		time.Sleep(50 * time.Millisecond)
	}
	return s.MemoryStore.Load(ctx)
}

func (s *slowLoadStore) Save(ctx context.Context, pair TokenPair) error {
	err := s.MemoryStore.Save(ctx, pair)
	s.once.Do(func() { close(s.saved) })
	return err
}

func TestUnauthorizedArrivingAsRefreshSettlesReusesIt(t *testing.T) {
	t.Parallel()

	const n = 2
	f := newFakeAPI(t, func(f *fakeAPI) {
		f.staleBarrier = &sync.WaitGroup{}
		f.staleBarrier.Add(n)
	})
	f.expireA1()

	mem := NewMemoryStore()
	require.NoError(t, mem.Save(t.Context(), TokenPair{Access: "a1", Refresh: "r1"}))
	store := &slowLoadStore{MemoryStore: mem, saved: make(chan struct{})}

	c := New(f.srv.URL, store, WithLogger(slogx.Discard()))
	c.AttachAuth("a1")

	var wg sync.WaitGroup
	results := make([]dataResp, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Get(t.Context(), "/data/", &results[i])
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), f.refreshCalls.Load())
	for i := range n {
		require.NoError(t, errs[i])
		require.Equal(t, "a2", results[i].Token)
	}

	pair, ok, err := mem.Load(t.Context())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, TokenPair{Access: "a2", Refresh: "r2"}, pair)
	require.Equal(t, "a2", c.Credential())
}

// failingSaveStore refuses every Save once seeded.
type failingSaveStore struct {
	*MemoryStore
}

func (s failingSaveStore) Save(context.Context, TokenPair) error {
	return errors.New("disk full")
}

func TestRefreshSaveFailureDropsSpentPair(t *testing.T) {
	t.Parallel()

	f := newFakeAPI(t)
	f.expireA1()

	mem := NewMemoryStore()
	require.NoError(t, mem.Save(t.Context(), TokenPair{Access: "a1", Refresh: "r1"}))

	c := New(f.srv.URL, failingSaveStore{mem}, WithLogger(slogx.Discard()))
	c.AttachAuth("a1")

	var out dataResp
	require.NoError(t, c.Get(t.Context(), "/data/", &out))
	require.Equal(t, "a2", out.Token)
	require.Equal(t, "a2", c.Credential())

	// r1 is spent; keeping it would restore a dead session next run.
	_, ok, err := mem.Load(t.Context())
	require.NoError(t, err)
	require.False(t, ok)
}
