package driven

import (
	"context"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

// ReportStore persists one Report per document name.
type ReportStore interface {
	// SaveReport inserts or replaces the report with the same name in a
	// single write, so a report is never transiently missing.
	SaveReport(ctx context.Context, report *domain.Report) error

	// GetReport retrieves a report by document name.
	// Returns domain.ErrNotFound if absent.
	GetReport(ctx context.Context, name string) (*domain.Report, error)

	// ListReports returns every stored report ordered by name.
	ListReports(ctx context.Context) ([]domain.Report, error)

	// DeleteReports removes the reports with the given names.
	DeleteReports(ctx context.Context, names []string) error
}

// ChunkStore persists the chunk collection. Chunks are only ever
// regenerated as a whole, so there is no per-chunk write.
type ChunkStore interface {
	// ReplaceAll deletes every stored chunk and inserts chunks, preserving order.
	ReplaceAll(ctx context.Context, chunks []domain.Chunk) error

	// List returns every chunk in insertion order.
	List(ctx context.Context) ([]domain.Chunk, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}

// TableStore persists the table collection used by lexical table search.
type TableStore interface {
	// ReplaceAll deletes every stored table and inserts tables, preserving order.
	ReplaceAll(ctx context.Context, tables []domain.Table) error

	// List returns every table in insertion order.
	List(ctx context.Context) ([]domain.Table, error)
}
