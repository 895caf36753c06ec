package driven

import (
	"context"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

// VectorIndex stores chunk embeddings in one cosine-distance collection.
// The collection is dropped and recreated on every rebuild.
type VectorIndex interface {
	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context) (bool, error)

	// CreateCollection creates the collection for vectors of size dim.
	CreateCollection(ctx context.Context, dim int) error

	// DeleteCollection drops the collection and every point in it.
	DeleteCollection(ctx context.Context) error

	// Upsert inserts or replaces a batch of points.
	Upsert(ctx context.Context, points []domain.VectorPoint) error

	// Search returns up to k points ordered by decreasing cosine similarity.
	// Fewer hits are returned when the collection holds fewer points.
	Search(ctx context.Context, vector []float32, k int) ([]domain.VectorHit, error)

	// Close releases resources.
	Close() error
}
