// Package domain defines the core business entities of the report knowledge base.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SourceDocument: A PDF file of the local corpus
//   - Report: The extracted, fingerprinted content of one SourceDocument
//   - ContentUnit: One page-scoped text or table of a Report
//   - Chunk: A bounded-size retrievable unit derived from a ContentUnit
//   - Table: A header+rows record used by lexical table search
//   - VectorPoint: The embedding of one Chunk in the vector index
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
