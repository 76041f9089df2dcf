package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/pkg/apiclient"
)

// tokensRepo stores the JSON-encoded token pair under apiclient.TokenStoreKey.
type tokensRepo struct {
	kv store.Store
}

func (r *tokensRepo) Load(ctx context.Context) (apiclient.TokenPair, bool, error) {
	raw, err := r.kv.Get(ctx, apiclient.TokenStoreKey)
	if errors.Is(err, store.ErrNotFound) {
		return apiclient.TokenPair{}, false, nil
	}
	if err != nil {
		return apiclient.TokenPair{}, false, err
	}

	var pair apiclient.TokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return apiclient.TokenPair{}, false, fmt.Errorf("store: decode %s: %w", apiclient.TokenStoreKey, err)
	}
	return pair, true, nil
}

func (r *tokensRepo) Save(ctx context.Context, pair apiclient.TokenPair) error {
	raw, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	return r.kv.Put(ctx, apiclient.TokenStoreKey, raw)
}

func (r *tokensRepo) Delete(ctx context.Context) error {
	return r.kv.Remove(ctx, apiclient.TokenStoreKey)
}
