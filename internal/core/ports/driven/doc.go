// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for sync to function:
//
//   - Corpus: Lists and reads the local PDF reports
//   - Extractor: Turns document bytes into page-scoped ContentUnits
//   - BlobStore: Keeps a copy of every ingested document
//   - ReportStore, ChunkStore, TableStore: The three knowledge collections
//   - SyncRunStore: Sync run history
//   - ConfigStore, PromptStore: Settings and prompt templates
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService + VectorIndex: Without both, vectors are not rebuilt and chunk search is disabled.
//   - Reranker: Without it, chunk search keeps the vector similarity order.
//   - LLMService: Without it, questions return a structured error.
//   - HistoryStore: Without it, only history sent with the request is used.
//   - SyncQueue: Without it, uploads sync inline.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
