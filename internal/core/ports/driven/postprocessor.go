package driven

import (
	"context"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

// Chunker turns the complete report set into the chunk collection.
// Output must be a pure function of the reports: same reports, same
// chunks, same ids, same order.
type Chunker interface {
	// Name returns the chunker name for logging.
	Name() string

	// Flatten chunks every report in order.
	Flatten(ctx context.Context, reports []domain.Report) ([]domain.Chunk, error)
}

// TableExtractor builds the table collection from the report set.
type TableExtractor interface {
	ExtractTables(reports []domain.Report) []domain.Table
}
