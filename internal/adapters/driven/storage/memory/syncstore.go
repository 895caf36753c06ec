package memory

import (
	"context"
	"sync"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
)

// Ensure SyncRunStore implements the interface.
var _ driven.SyncRunStore = (*SyncRunStore)(nil)

// SyncRunStore is an in-memory implementation of driven.SyncRunStore.
type SyncRunStore struct {
	mu   sync.RWMutex
	runs []domain.SyncRun
}

// NewSyncRunStore creates a new in-memory sync run store.
func NewSyncRunStore() *SyncRunStore {
	return &SyncRunStore{}
}

// SaveRun records a run. Saving a run with a known id replaces it.
func (s *SyncRunStore) SaveRun(_ context.Context, run *domain.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == run.ID {
			s.runs[i] = *run
			return nil
		}
	}
	s.runs = append(s.runs, *run)
	return nil
}

// LastRun returns the most recently saved run.
func (s *SyncRunStore) LastRun(_ context.Context) (*domain.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runs) == 0 {
		return nil, domain.ErrNotFound
	}
	run := s.runs[len(s.runs)-1]
	return &run, nil
}

// Runs returns every recorded run, oldest first.
func (s *SyncRunStore) Runs() []domain.SyncRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.SyncRun(nil), s.runs...)
}
