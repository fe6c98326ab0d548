// Package cache provides the key/value store with TTL used for ETag payload
// caching and admission-check results, plus deterministic key derivation.
//
// Two backends are provided: an in-memory store (library default, used by
// tests) and a Redis store for deployments that share cache state across
// processes. Entries are lazily evicted: a read that finds an expired entry
// deletes it and reports a miss.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss indicates the requested key was not found or has expired.
	ErrMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a key/value store with per-entry TTL.
type Store interface {
	// Get returns the value stored under key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. A non-positive ttl is a no-op.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the entry under key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error
}
