package apiclient

import "context"

// TokenStoreKey is the fixed name the token pair is persisted under.
const TokenStoreKey = "authTokens"

// ============================================================================
// Token Types
// ============================================================================

// TokenPair is the credential pair issued by the backend on login and refresh.
type TokenPair struct {
	// Access is the short-lived bearer token attached to API calls
	Access string `json:"access"`

	// Refresh is the longer-lived token exchanged for a new access token
	Refresh string `json:"refresh"`
}

// IsZero reports whether the pair holds no credentials at all.
func (p TokenPair) IsZero() bool {
	return p.Access == "" && p.Refresh == ""
}

// refreshRequest is the body of POST /auth/token/refresh/.
type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// ============================================================================
// Persistence
// ============================================================================

// TokenStore persists the TokenPair between runs. Every Save fully replaces the
// stored pair; there are no partial updates.
type TokenStore interface {
	// Load returns the stored pair. ok is false when nothing is stored.
	Load(ctx context.Context) (pair TokenPair, ok bool, err error)
	Save(ctx context.Context, pair TokenPair) error
	Delete(ctx context.Context) error
}
