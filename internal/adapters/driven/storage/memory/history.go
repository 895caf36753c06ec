package memory

import (
	"context"
	"sync"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
)

// Ensure HistoryStore implements the interface.
var _ driven.HistoryStore = (*HistoryStore)(nil)

// HistoryStore keeps conversation turns in memory. Sessions never expire.
type HistoryStore struct {
	mu       sync.RWMutex
	maxTurns int
	sessions map[string][]domain.HistoryTurn
}

// NewHistoryStore creates a store keeping at most maxTurns per session.
// A non-positive maxTurns keeps every turn.
func NewHistoryStore(maxTurns int) *HistoryStore {
	return &HistoryStore{
		maxTurns: maxTurns,
		sessions: make(map[string][]domain.HistoryTurn),
	}
}

// Get returns the turns of a session, oldest first.
func (s *HistoryStore) Get(_ context.Context, sessionID string) ([]domain.HistoryTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.HistoryTurn(nil), s.sessions[sessionID]...), nil
}

// Append adds a turn and drops the oldest ones beyond maxTurns.
func (s *HistoryStore) Append(_ context.Context, sessionID string, turn domain.HistoryTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.sessions[sessionID], turn)
	if s.maxTurns > 0 && len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.sessions[sessionID] = turns
	return nil
}

// Delete forgets a session.
func (s *HistoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
