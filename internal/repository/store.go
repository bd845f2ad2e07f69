package repository

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// KeyValueStore is the durable scoped persistence surface. Values are opaque
// bytes; the repositories in this package own their encoding.
type KeyValueStore interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Remove is a no-op for an absent key.
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
