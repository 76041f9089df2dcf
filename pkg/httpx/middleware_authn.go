package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so that the first one listed runs outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// AuthnMiddleware requires a valid access token in the Authorization header.
// accept, when non-nil, can reject tokens that verify but are otherwise
// unacceptable (e.g. revoked).
func AuthnMiddleware(v jwtx.Verifier, accept func(jwtx.Claims) error) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Verify(raw)
			if err != nil {
				writeBearerError(w, "token verification failed")
				log.Debug("jwt verify failed", "err", err)
				return
			}

			if claims.TokenType != jwtx.TokenTypeAccess {
				writeBearerError(w, "token is not an access token")
				return
			}

			if accept != nil {
				if err := accept(claims); err != nil {
					writeBearerError(w, err.Error())
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(contextWithAuth(ctx, claims)))
		})
	}
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	return context.WithValue(ctx, CtxKeyUserID, c.UserID)
}

// writeBearerError writes an RFC 6750 error in the backend's {"detail": ...} shape.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"detail": desc,
		"code":   "token_not_valid",
	})
}
