package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/pkg/apiclient"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// Auth endpoints.
const (
	LoginPath    = "/auth/token/"
	RegisterPath = "/auth/register/"
)

var (
	ErrInvalidCredentials = errors.New("service: invalid username or password")
	ErrNotLoggedIn        = errors.New("service: not logged in")
)

// ValidationError carries field-level messages, either from local checks or
// from the backend's 400 payload.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("service: validation failed (%d fields)", len(e.Fields))
}

func validationFromLocal(errs map[string]string) error {
	if errs == nil {
		return nil
	}
	fields := make(map[string][]string, len(errs))
	for k, v := range errs {
		fields[k] = []string{v}
	}
	return &ValidationError{Fields: fields}
}

// validationFromHTTP turns a backend 400 into a ValidationError and passes
// every other error through.
func validationFromHTTP(err error) error {
	var httpErr *apiclient.HTTPError
	if errors.As(err, &httpErr) && httpErr.Status == http.StatusBadRequest {
		if fields := httpErr.FieldErrors(); len(fields) > 0 {
			return &ValidationError{Fields: fields}
		}
	}
	return err
}

// SessionService is the authentication context of the portal: it logs users
// in and out, persists their tokens and knows who is logged in.
type SessionService struct {
	Client *apiclient.Client
}

// Login exchanges credentials for a token pair, stores it and attaches the
// access token to the client. A rejected login leaves any stored session as
// it was.
func (s *SessionService) Login(ctx context.Context, username, password string) (apiclient.TokenPair, error) {
	var pair apiclient.TokenPair
	err := s.Client.Post(ctx, LoginPath, domain.Credentials{Username: username, Password: password}, &pair, apiclient.WithoutAuth())
	if err != nil {
		if apiclient.StatusCode(err) == http.StatusUnauthorized {
			return apiclient.TokenPair{}, ErrInvalidCredentials
		}
		return apiclient.TokenPair{}, validationFromHTTP(err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		return apiclient.TokenPair{}, errors.New("service: login response is missing tokens")
	}

	if err := s.Client.Store().Save(ctx, pair); err != nil {
		return apiclient.TokenPair{}, fmt.Errorf("service: save tokens: %w", err)
	}
	s.Client.AttachAuth(pair.Access)

	slogx.FromContext(ctx).Info("logged in", "username", username)
	return pair, nil
}

// Register creates a new patient account. It does not log the user in.
func (s *SessionService) Register(ctx context.Context, req domain.RegisterRequest) (domain.RegisterResponse, error) {
	if err := validationFromLocal(req.Validate()); err != nil {
		return domain.RegisterResponse{}, err
	}

	var resp domain.RegisterResponse
	if err := s.Client.Post(ctx, RegisterPath, req, &resp, apiclient.WithoutAuth()); err != nil {
		return domain.RegisterResponse{}, validationFromHTTP(err)
	}
	return resp, nil
}

// Logout forgets the session locally. The backend keeps no session state for
// the client, so nothing is sent.
func (s *SessionService) Logout(ctx context.Context) error {
	s.Client.AttachAuth("")

	if err := s.Client.Store().Delete(ctx); err != nil {
		return fmt.Errorf("service: delete tokens: %w", err)
	}
	return nil
}

// Restore picks up a session persisted by an earlier run. It reports false
// when nothing is stored.
func (s *SessionService) Restore(ctx context.Context) (bool, error) {
	pair, ok, err := s.Client.Store().Load(ctx)
	if err != nil {
		return false, fmt.Errorf("service: load tokens: %w", err)
	}
	if !ok || pair.Access == "" {
		return false, nil
	}

	s.Client.AttachAuth(pair.Access)
	return true, nil
}

// CurrentUser returns the logged-in user as described by the access token the
// client currently holds. The token may have been refreshed since login, so
// it is re-read on every call.
func (s *SessionService) CurrentUser() (domain.User, error) {
	token := s.Client.Credential()
	if token == "" {
		return domain.User{}, ErrNotLoggedIn
	}

	claims, err := jwtx.ParseUnverified(token)
	if err != nil {
		return domain.User{}, fmt.Errorf("service: read access token: %w", err)
	}

	user := domain.User{ID: claims.UserID, Username: claims.Username}
	if claims.ExpiresAt != nil {
		user.ExpiresAt = claims.ExpiresAt.Time
	}
	return user, nil
}

// SessionExpiresIn returns how long the current access token stays valid, or 0
// when unknown.
func (s *SessionService) SessionExpiresIn(now time.Time) time.Duration {
	u, err := s.CurrentUser()
	if err != nil || u.ExpiresAt.IsZero() {
		return 0
	}
	return u.ExpiresAt.Sub(now)
}
