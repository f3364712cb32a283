// Package storage provides the key-value blob stores the app persists its
// record lists in. Each key holds one serialized collection.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("storage: key not found")

// BlobStore is a get/set store of opaque values keyed by namespace.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
