package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handle is a Store view bound to one plugin's scope. Values are JSON
// encoded so plugins can persist plain Go values.
type Handle struct {
	store Store
	scope string
}

// NewHandle binds store to scope.
func NewHandle(store Store, scope string) *Handle {
	return &Handle{store: store, scope: scope}
}

// Scope returns the bound scope name.
func (h *Handle) Scope() string {
	return h.scope
}

// Get decodes the value under key into dest and reports whether it existed.
// dest is left untouched when the key is missing, so callers preload it with
// their default.
func (h *Handle) Get(ctx context.Context, key string, dest any) (bool, error) {
	if h == nil || h.store == nil {
		return false, nil
	}
	raw, ok, err := h.store.Get(ctx, h.scope, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", h.scope, key, err)
	}
	return true, nil
}

// Put encodes value and stores it under key.
func (h *Handle) Put(ctx context.Context, key string, value any) error {
	if h == nil || h.store == nil {
		return fmt.Errorf("put %s: %w", key, ErrClosed)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", h.scope, key, err)
	}
	return h.store.Put(ctx, h.scope, key, raw)
}
