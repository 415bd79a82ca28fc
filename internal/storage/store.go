// Package storage abstracts the durable object store that holds finished
// transcripts and any transient remote artifacts. Keys are namespaced as
// <category>/<runID>/<name> so concurrent runs never collide.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Stat and Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// MetaContentHash is the user-metadata key carrying the SHA-256 of the
// stored bytes. Upload idempotency compares against it.
const MetaContentHash = "content-sha256"

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Locator     string
	Bytes       int64
	ContentHash string
}

// ObjectStore is the put/get-by-key contract the pipeline depends on.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, meta map[string]string) (ObjectInfo, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}
