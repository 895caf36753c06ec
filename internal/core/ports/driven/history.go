package driven

import (
	"context"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

// HistoryStore keeps conversation turns per session.
type HistoryStore interface {
	// Get returns the turns of a session, oldest first. Unknown sessions are empty.
	Get(ctx context.Context, sessionID string) ([]domain.HistoryTurn, error)

	// Append adds a turn, keeping at most the configured number of recent turns.
	Append(ctx context.Context, sessionID string, turn domain.HistoryTurn) error

	// Delete forgets a session.
	Delete(ctx context.Context, sessionID string) error
}

// SyncQueue hands sync requests to the single sync worker.
type SyncQueue interface {
	// Publish enqueues a request.
	Publish(ctx context.Context, req domain.SyncRequest) error

	// Close releases the connection.
	Close() error
}
