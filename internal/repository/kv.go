package repository

import "context"

// KeyValueStore is durable local key-value storage.
type KeyValueStore interface {
	// Get returns the value of key or errs.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes keys; missing keys are ignored.
	Remove(ctx context.Context, keys ...string) error
	// Take removes keys in one atomic step and returns the values that were present.
	// Concurrent callers never both receive the same value.
	Take(ctx context.Context, keys ...string) (map[string]string, error)
}
