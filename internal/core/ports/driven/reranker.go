package driven

import "context"

// Reranker scores (query, text) pairs with a cross-encoder.
type Reranker interface {
	// Score returns one relevance score per text, in the same order as texts.
	Score(ctx context.Context, query string, texts []string) ([]float64, error)

	// ModelName returns the cross-encoder model name.
	ModelName() string

	// Close releases resources.
	Close() error
}
