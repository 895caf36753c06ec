package domain

import (
	"fmt"
	"strings"
	"time"
)

// ContentKind distinguishes the two kinds of extracted content.
type ContentKind string

// Content kinds.
const (
	ContentKindText  ContentKind = "text"
	ContentKindTable ContentKind = "table"
)

// IsValid returns true if the kind is recognised.
func (k ContentKind) IsValid() bool {
	return k == ContentKindText || k == ContentKindTable
}

// NoTextMarker is the content of a text unit for a page without extractable text.
// It is a valid empty-content marker, not a failure.
const NoTextMarker = "Aucun texte détecté"

// SourceDocument is one file of the local corpus.
type SourceDocument struct {
	// Name is the base file name and the stable identity of the document.
	Name string

	// Path is the location the corpus reads the bytes from.
	Path string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time reported by the corpus.
	ModTime time.Time
}

// ContentUnit is one page-scoped item extracted from a document.
type ContentUnit struct {
	// Page is the 1-based page number.
	Page int `json:"page"`

	// Kind is text or table.
	Kind ContentKind `json:"type"`

	// Flavor records which table detection mode produced a table unit.
	Flavor string `json:"flavor,omitempty"`

	// Content is the page text for text units and the JSON-serialized
	// column -> row -> cell mapping for table units.
	Content string `json:"content"`
}

// Report is the persisted knowledge record of one SourceDocument.
// At most one Report exists per document name.
type Report struct {
	// Name is the document name the report was extracted from.
	Name string

	// Fingerprint is the hex MD5 digest of the document bytes.
	Fingerprint string

	// Units holds the extracted content in extraction order.
	Units []ContentUnit

	// ExtractedAt is when the extraction ran.
	ExtractedAt time.Time
}

// Validate checks the report has the shape the chunker and table extraction expect.
func (r *Report) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: empty report name", ErrInvalidReport)
	}
	for i, u := range r.Units {
		if u.Page < 1 {
			return fmt.Errorf("%w: unit %d has page %d", ErrInvalidReport, i, u.Page)
		}
		if !u.Kind.IsValid() {
			return fmt.Errorf("%w: unit %d has kind %q", ErrInvalidReport, i, u.Kind)
		}
	}
	return nil
}

// Chunk is a bounded-size retrievable text unit derived from a ContentUnit.
type Chunk struct {
	// ID is deterministic: {report}_p{page}_{kind}_{index}.
	ID string

	// Report is the name of the report the chunk belongs to.
	Report string

	// Page is the page of the source ContentUnit.
	Page int

	// Kind is the kind of the source ContentUnit.
	Kind ContentKind

	// Index is the position of the chunk among chunks of the same kind on the same page.
	Index int

	// Content is the non-empty chunk text.
	Content string
}

// ChunkID renders the deterministic chunk identifier.
func ChunkID(report string, page int, kind ContentKind, index int) string {
	return fmt.Sprintf("%s_p%d_%s_%d", report, page, kind, index)
}
