// Package store defines the object-store boundary of the capture system.
// Records are write-once objects under unique keys, so no implementation
// needs to arbitrate concurrent writes to the same key.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested object key does not exist.
var ErrNotFound = errors.New("object not found")

// Metadata is attached to stored objects so later scans can filter without
// decoding the object body.
type Metadata map[string]string

// ObjectStore is a namespaced, flat, append-only object store. Keys are
// slash-separated paths; the first segment is the namespace prefix and the
// second the host partition.
type ObjectStore interface {
	// Put stores an object under key. Keys are unique per record, so Put is
	// never expected to overwrite live data.
	Put(ctx context.Context, key string, data []byte, meta Metadata) error

	// Get retrieves an object by key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys under the given prefix. An empty result is not
	// an error; a failure to list is.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any underlying connections.
	Close() error
}
