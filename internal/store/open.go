package store

import (
	"fmt"
	"log/slog"
)

// Backend names a storage implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendBolt   Backend = "bolt"
	BackendMemory Backend = "memory"
)

// Options selects and locates a backend.
type Options struct {
	Backend  Backend
	Location string
	// InMemory makes the SQLite backend use a private in-memory database.
	InMemory bool
	Logger   *slog.Logger
}

// New builds the configured backend. The returned store still needs Init.
func New(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		path := opts.Location
		if opts.InMemory {
			path = MemoryPath
		}
		if path == "" {
			return nil, fmt.Errorf("%w: sqlite backend needs a database location", ErrBackendUnavailable)
		}
		return NewSQLiteStore(path, opts.Logger), nil
	case BackendBolt:
		if opts.InMemory {
			return NewMemoryStore(), nil
		}
		if opts.Location == "" {
			return nil, fmt.Errorf("%w: bolt backend needs a database location", ErrBackendUnavailable)
		}
		return NewBoltStore(opts.Location, opts.Logger), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrBackendUnavailable, opts.Backend)
	}
}
