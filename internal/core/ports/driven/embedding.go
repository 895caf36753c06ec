package driven

import "context"

// EmbeddingService turns text into fixed-length vectors.
// All vectors produced by one service share Dimensions(), which is the
// dimension the vector collection is created with.
type EmbeddingService interface {
	// Embed generates the embedding of a single text (a question at query time).
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for many texts, in input order.
	// The sync engine calls it once per upsert batch.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
