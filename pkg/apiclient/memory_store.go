package apiclient

import (
	"context"
	"sync"
)

// MemoryStore is a TokenStore that keeps the pair in process memory only.
type MemoryStore struct {
	mu   sync.RWMutex
	pair *TokenPair
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (TokenPair, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.pair == nil {
		return TokenPair{}, false, nil
	}
	return *m.pair, true, nil
}

func (m *MemoryStore) Save(_ context.Context, pair TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pair = &pair
	return nil
}

func (m *MemoryStore) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pair = nil
	return nil
}
