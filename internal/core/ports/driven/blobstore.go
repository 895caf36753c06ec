package driven

import "context"

// BlobStore keeps the raw bytes of every ingested document, keyed by name.
type BlobStore interface {
	// Put stores data under name, replacing any prior blob of the same name.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the blob. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// Exists reports whether a blob is stored under name.
	Exists(ctx context.Context, name string) (bool, error)
}
