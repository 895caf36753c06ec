// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - ReportStore: extracted reports keyed by document name
//   - ChunkStore: the chunk collection
//   - TableStore: the table collection used by table search
//   - BlobStore: raw PDF bytes
//   - SyncRunStore: sync run summaries
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory and recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.chatbot/data/rag.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Collection replacements run in one transaction, so
// readers never observe a half-written collection.
package sqlite
