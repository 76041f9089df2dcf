package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/portal/pkg/apiclient"
)

var ErrNotFound = errors.New("store: not found")

// Store is the client-side key-value cache. It only ever holds small values
// (the serialised token pair) but is keyed so other per-user state can live
// next to it without a schema change.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value under key in a single statement.
	Put(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Tokens exposes the token pair stored under apiclient.TokenStoreKey.
	Tokens() apiclient.TokenStore

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}
