package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when nothing is stored at a path.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidPath is returned for malformed paths or writes at a collection root.
	ErrInvalidPath = errors.New("storage: invalid path")
)

// Change announces that the value at Path (or below it) was written.
// An empty Path means the whole store may have changed.
type Change struct {
	Path string
}

// Storage is the shared state store the poller and the dashboard both write to.
// Every write replaces the full value at its path; concurrent writers resolve by
// last write wins.
type Storage interface {
	Get(ctx context.Context, path string, dst any) error
	Put(ctx context.Context, path string, value any) error
	// Update writes several sub-paths of path, each replacing its own value.
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	Watch(ctx context.Context) <-chan Change
	Close() error
}
