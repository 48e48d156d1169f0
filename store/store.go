// Package store holds uploaded document payloads for the short window
// between the HTTP upload and the sanitize call. Objects are write-once,
// keyed by a generated identifier, and reclaimed after a TTL.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an identifier does not resolve to a live
// object. An entry that existed but expired surfaces the same error; the
// distinction is not useful to callers, who re-upload either way.
var ErrNotFound = errors.New("object not found")

// Object is a stored binary payload with its metadata. Objects are never
// mutated after Put.
type Object struct {
	ID        string
	MediaKind string
	Size      int64
	CreatedAt time.Time
	ExpiresAt time.Time

	// Data is the raw payload. List returns objects without Data.
	Data []byte
}

// Store is the ephemeral object store contract.
type Store interface {
	// Put stores data under a fresh identifier and returns it.
	Put(ctx context.Context, data []byte, mediaKind string) (string, error)
	// Get returns the object if present and not expired.
	Get(ctx context.Context, id string) (*Object, error)
	// Delete removes the object early, before its TTL elapses.
	Delete(ctx context.Context, id string) error
	// List returns metadata for all live objects.
	List(ctx context.Context) ([]*Object, error)
}
