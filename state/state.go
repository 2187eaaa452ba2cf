// Package state provides a process-external key/value abstraction backing
// the semantic cache (content-addressed caption memo). Two implementations
// are provided: an in-process MemoryManager for tests and single-instance
// deployments, and a ValkeyManager for multi-instance deployments.
package state

import (
	"context"
	"time"
)

// Manager is a generic, TTL-aware key/value store.
type Manager interface {
	// SaveCache stores value under key with the given TTL.
	SaveCache(ctx context.Context, key string, value []byte, duration time.Duration) error

	// LoadCache returns the value stored under key, or a nil slice if absent.
	// An expired entry that is still held is returned once more by the
	// MemoryManager, which then deletes it; Valkey drops expired keys itself.
	LoadCache(ctx context.Context, key string) ([]byte, error)
}
