// Package store provides the client-local key/value persistence used by
// session clients for execution context and prefetch caches.
//
// Backends are interchangeable. Callers treat every operation as
// best-effort: a failing store degrades a session, it never ends one.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// Store is a byte-oriented key/value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
