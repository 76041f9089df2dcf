package domain

import (
	"regexp"
	"strings"
	"time"
)

const requiredReason = "required"

var (
	reUsername = regexp.MustCompile(`^[\w.@+-]+$`)
	reEmail    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func validEmail(s string) bool {
	return reEmail.MatchString(s)
}

// Credentials is the body of POST /auth/token/. The backend logs patients in
// by username; the portal's login form passes the email in that field.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register/.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate mirrors the backend's registration rules so obvious mistakes are
// caught before a round trip.
func (r RegisterRequest) Validate() map[string]string {
	errs := make(map[string]string)

	username := strings.TrimSpace(r.Username)
	switch {
	case username == "":
		errs["username"] = requiredReason
	case len(username) > 150:
		errs["username"] = "too long (max 150)"
	case !reUsername.MatchString(username):
		errs["username"] = "may only contain letters, digits and @/./+/-/_"
	}

	if r.Email != "" && !validEmail(r.Email) {
		errs["email"] = "must be a valid email address"
	}

	if r.Password == "" {
		errs["password"] = requiredReason
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// RegisterResponse is returned by a successful registration.
type RegisterResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Message  string `json:"message"`
}

// User is the logged-in identity as read from the access token.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"` // zero when the token carries no exp
}
