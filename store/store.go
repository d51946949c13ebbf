// Package store persists small named values across process restarts.
//
// Values are opaque bytes addressed by a namespaced key such as
// "terminal.suggest.cachedGlobalCommands". Every backend is scoped to the
// application, not to a terminal session.
package store

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("store: key not found")

// Store is a key/value backend.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Close releases the backend.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the backend named by backend, rooted at dir.
// Unknown names fall back to the file backend.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, "state.db"))
	}
	return NewFileStore(dir), nil
}
