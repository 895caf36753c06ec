package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown backend or provider name in settings.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSyncInProgress indicates a sync is already running.
	// Ingestion assumes a single writer.
	ErrSyncInProgress = errors.New("sync in progress")

	// Extraction and validation errors.

	// ErrInvalidReport indicates an extracted report is missing its required shape.
	ErrInvalidReport = errors.New("invalid report")

	// ErrMalformedTable indicates a table payload could not be decoded.
	ErrMalformedTable = errors.New("malformed table")

	// ErrExtractionFailed indicates the extractor could not read a document.
	ErrExtractionFailed = errors.New("extraction failed")

	// Collaborator availability errors.

	// ErrServiceUnavailable indicates a remote service kept failing transiently
	// and the bounded retries were exhausted.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrLLMUnavailable indicates the answer-generation model is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Vector search and vector rebuilds are disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch indicates an embedding does not match the collection dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrRateLimited indicates a remote API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
