package driving

import (
	"context"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

// SyncEngine keeps the knowledge base in step with the corpus.
type SyncEngine interface {
	// Sync runs one incremental sync over the whole corpus.
	// Returns domain.ErrSyncInProgress if another run is active.
	Sync(ctx context.Context) (*domain.SyncRun, error)

	// Rebuild regenerates chunks, tables and vectors from the stored
	// reports without looking at the corpus.
	Rebuild(ctx context.Context) (*domain.SyncRun, error)

	// Status returns the progress of the active run, or of the last one.
	Status(ctx context.Context) (*SyncStatus, error)

	// LastRun returns the last recorded run.
	// Returns domain.ErrNotFound if no run was recorded.
	LastRun(ctx context.Context) (*domain.SyncRun, error)
}

// SyncStatus represents the current state of a sync operation.
type SyncStatus struct {
	// RunID identifies the run.
	RunID string

	// Running indicates if sync is currently in progress.
	Running bool

	// DocumentsProcessed is the count of documents processed.
	DocumentsProcessed int

	// DocumentsTotal is the number of corpus documents of the run.
	DocumentsTotal int

	// ErrorCount is the number of documents skipped because of errors.
	ErrorCount int

	// Phase names the current step ("documents", "tables", "chunks", "vectors", "done").
	Phase string
}
