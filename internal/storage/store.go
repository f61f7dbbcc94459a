package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexisbeaulieu97/scenery/internal/config"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store persists raw values keyed by (scope, key). Plugins never see a Store
// directly; they get a Handle bound to their own scope.
type Store interface {
	Get(ctx context.Context, scope, key string) ([]byte, bool, error)
	Put(ctx context.Context, scope, key string, value []byte) error
	Close() error
}

// Open builds the backend selected by settings. Relative paths are resolved
// by the caller.
func Open(settings config.StorageSettings) (Store, error) {
	switch settings.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile, "":
		return NewFileStore(settings.Path)
	case config.BackendSQLite:
		return OpenSQLite(settings.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", settings.Backend)
	}
}
