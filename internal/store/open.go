package store

import (
	"context"
	"fmt"

	"eventpass/internal/attendance"
	"eventpass/internal/auth"
)

// Backend is a store usable by both the API and the worker.
type Backend interface {
	attendance.Store
	auth.CoordinatorStore
	Ping(ctx context.Context) error
	Close() error
}

// Open selects a backend by name: "postgres", "sqlite" or "memory".
func Open(ctx context.Context, backend, databaseURL, sqlitePath string) (Backend, error) {
	switch backend {
	case "postgres":
		return NewDB(ctx, databaseURL)
	case "sqlite":
		return OpenSQLite(ctx, sqlitePath)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
