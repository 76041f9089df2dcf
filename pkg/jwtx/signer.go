package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// HS256 signs and verifies tokens with a shared secret. Only the in-process
// test backend holds a secret; the client itself never signs anything.
type HS256 struct {
	secret []byte
}

// NewHS256 returns a signer/verifier for secret.
func NewHS256(secret []byte) (*HS256, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwtx: HS256 secret must be at least 16 bytes")
	}
	return &HS256{secret: secret}, nil
}

func (h *HS256) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Sign serialises c as a compact JWT.
func (h *HS256) Sign(c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(h.secret)
}

// Verify checks the signature and time claims of token.
func (h *HS256) Verify(token string) (Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return h.secret, nil
	}, jwt.WithValidMethods([]string{h.Alg()}))
	if err != nil {
		return Claims{}, mapParseError(err)
	}
	return c, nil
}
