package driven

import (
	"context"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

// Extractor converts one source document into ordered page-scoped content.
// A page without text yields a text unit holding domain.NoTextMarker.
type Extractor interface {
	Extract(ctx context.Context, name string, data []byte) ([]domain.ContentUnit, error)
}

// Corpus is the local collection of source documents.
type Corpus interface {
	// List returns every PDF document of the corpus ordered by name.
	List(ctx context.Context) ([]domain.SourceDocument, error)

	// Read returns the bytes of a document.
	Read(ctx context.Context, name string) ([]byte, error)

	// Write stores a document, replacing an existing one.
	Write(ctx context.Context, name string, data []byte) error

	// Exists reports whether the corpus holds a document with that name.
	Exists(ctx context.Context, name string) (bool, error)
}
