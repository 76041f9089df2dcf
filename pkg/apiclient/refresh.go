package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/aussiebroadwan/portal/pkg/cryptox"
)

// DefaultRefreshPath is the backend endpoint that exchanges a refresh token.
const DefaultRefreshPath = "/auth/token/refresh/"

// refreshCall is one refresh cycle. done is closed once access/err are final.
type refreshCall struct {
	done   chan struct{}
	access string
	err    error
}

// refreshCoordinator lets at most one refresh cycle run at a time. call is
// non-nil exactly while a cycle is in flight; everyone who arrives during that
// window waits on the same call.
//
// gen counts settled cycles and last holds the most recent one. A caller that
// was sent during generation g and arrives after a cycle settled (gen != g)
// takes that cycle's outcome instead of starting another one, unless the
// credential that cycle produced is the one that was just rejected.
type refreshCoordinator struct {
	mu   sync.Mutex
	call *refreshCall
	gen  uint64
	last *refreshCall
}

// generation returns the number of settled cycles.
func (rc *refreshCoordinator) generation() uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.gen
}

// do runs fn as a new cycle, waits for the cycle already in flight, or returns
// the outcome of a cycle that settled after generation seen. rejected is the
// credential the caller's request was refused with. fn runs on a
// context detached from the leader's cancellation so that one caller giving up
// does not fail everyone queued behind it.
func (rc *refreshCoordinator) do(
	ctx context.Context,
	seen uint64,
	rejected string,
	fn func(context.Context) (string, error),
) (access string, err error) {
	rc.mu.Lock()
	if call := rc.call; call != nil {
		rc.mu.Unlock()

		select {
		case <-call.done:
			return call.access, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if last := rc.last; rc.gen != seen && last != nil && (last.err != nil || last.access != rejected) {
		rc.mu.Unlock()
		return last.access, last.err
	}

	call := &refreshCall{done: make(chan struct{})}
	rc.call = call
	rc.mu.Unlock()

	call.access, call.err = fn(context.WithoutCancel(ctx))

	rc.mu.Lock()
	rc.call = nil
	rc.gen++
	rc.last = call
	rc.mu.Unlock()
	close(call.done)

	return call.access, call.err
}

// inFlight reports whether a refresh cycle currently owns the queue.
func (rc *refreshCoordinator) inFlight() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.call != nil
}

// recoverUnauthorized runs the refresh protocol for a request that came back
// with 401 and replays it with the refreshed credential.
func (c *Client) recoverUnauthorized(ctx context.Context, a *attempt, orig *HTTPError, out any) error {
	if a.retried {
		orig.Retried = true
		return orig
	}
	a.retried = true

	// Someone refreshed while this request was on the wire; replay with the
	// credential that is current now instead of starting another cycle.
	if current := c.Credential(); current != "" && current != a.sentWith {
		a.override = current
		return c.execute(ctx, a, out)
	}

	pair, ok, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("apiclient: load stored tokens: %w", err)
	}
	if !ok || pair.Refresh == "" {
		c.AttachAuth("")
		return &AuthExpiredError{Err: errors.Join(ErrNoRefreshToken, orig)}
	}

	// The pair may have been loaded while a cycle was settling; do re-checks
	// under its lock and hands back that cycle's outcome if so.
	access, err := c.refresh.do(ctx, a.gen, a.sentWith, func(ctx context.Context) (string, error) {
		return c.refreshTokens(ctx, pair.Refresh)
	})
	if err != nil {
		if ctx.Err() != nil && !IsAuthExpired(err) {
			return &NetworkError{Method: a.method, Path: a.path, Err: err}
		}
		return err
	}

	a.override = access
	return c.execute(ctx, a, out)
}

// refreshTokens exchanges refresh for a new pair and applies the outcome to the
// store and the default credential before any waiter is released.
func (c *Client) refreshTokens(ctx context.Context, refresh string) (string, error) {
	logger := c.logger.With("refresh_fp", fingerprint(refresh))
	logger.Debug("refreshing access token")

	var next TokenPair
	err := c.Request(ctx, http.MethodPost, c.refreshPath, refreshRequest{Refresh: refresh}, &next, WithoutAuth())
	if err == nil && next.Access == "" {
		err = errors.New("apiclient: refresh response has no access token")
	}
	if err != nil {
		logger.Warn("token refresh failed, clearing credentials", "error", err)

		if derr := c.store.Delete(ctx); derr != nil {
			logger.Error("failed to delete stored tokens", "error", derr)
		}
		c.AttachAuth("")
		return "", &AuthExpiredError{Err: err}
	}

	// Sliding refresh endpoints may omit the refresh token; keep the pair whole.
	if next.Refresh == "" {
		next.Refresh = refresh
	}

	// The old refresh token is spent now. If the new pair cannot be stored,
	// drop the old one so the next run starts logged out rather than
	// restoring a dead session.
	if err := c.store.Save(ctx, next); err != nil {
		logger.Error("failed to persist refreshed tokens", "error", err)
		if derr := c.store.Delete(ctx); derr != nil {
			logger.Error("failed to delete stale tokens", "error", derr)
		}
	}
	c.AttachAuth(next.Access)

	logger.Info("access token refreshed", "access_fp", fingerprint(next.Access))
	return next.Access, nil
}

// fingerprint is a short, log-safe identifier for a token.
func fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return cryptox.FingerprintToken(token)[:12]
}
