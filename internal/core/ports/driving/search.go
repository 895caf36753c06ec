package driving

import (
	"context"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

// Retriever is the hybrid read path over the knowledge base.
type Retriever interface {
	// SearchChunks returns at most domain.MaxRerankedChunks chunks out of k
	// vector candidates, ordered by decreasing rerank score.
	SearchChunks(ctx context.Context, question string, k int) ([]domain.ScoredChunk, error)

	// SearchTables returns merged tables matching the question's tokens.
	SearchTables(ctx context.Context, question string, limit int) ([]domain.TableMatch, error)

	// Retrieve runs both searches with default sizes.
	Retrieve(ctx context.Context, question string) (*domain.RetrievalContext, error)
}

// QueryService answers questions. It never returns an empty result:
// failures are carried in QueryResult.Error.
type QueryService interface {
	Ask(ctx context.Context, req domain.QueryRequest) domain.QueryResult
}

// IngestService adds documents to the corpus and syncs them.
type IngestService interface {
	// Upload stores a PDF in the corpus and triggers a sync.
	Upload(ctx context.Context, name string, data []byte) (*domain.UploadResult, error)
}
