package driven

import (
	"context"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

// SyncRunStore records sync runs.
type SyncRunStore interface {
	// SaveRun stores a finished run.
	SaveRun(ctx context.Context, run *domain.SyncRun) error

	// LastRun returns the most recent run.
	// Returns domain.ErrNotFound if no run was recorded.
	LastRun(ctx context.Context) (*domain.SyncRun, error)
}
