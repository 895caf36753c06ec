package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
)

// Ensure the stores implement their interfaces.
var (
	_ driven.ReportStore = (*ReportStore)(nil)
	_ driven.ChunkStore  = (*ChunkStore)(nil)
	_ driven.TableStore  = (*TableStore)(nil)
)

// ReportStore is an in-memory implementation of driven.ReportStore.
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string]domain.Report
}

// NewReportStore creates a new in-memory report store.
func NewReportStore() *ReportStore {
	return &ReportStore{
		reports: make(map[string]domain.Report),
	}
}

// SaveReport stores or replaces a report.
func (s *ReportStore) SaveReport(_ context.Context, report *domain.Report) error {
	r := *report
	r.Units = append([]domain.ContentUnit(nil), report.Units...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.Name] = r
	return nil
}

// GetReport retrieves a report by name.
func (s *ReportStore) GetReport(_ context.Context, name string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

// ListReports returns every report ordered by name.
func (s *ReportStore) ListReports(_ context.Context) ([]domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Report, 0, len(s.reports))
	for name := range s.reports {
		result = append(result, s.reports[name])
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// DeleteReports removes reports by name. Unknown names are ignored.
func (s *ReportStore) DeleteReports(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		delete(s.reports, name)
	}
	return nil
}

// ChunkStore is an in-memory implementation of driven.ChunkStore.
type ChunkStore struct {
	mu     sync.RWMutex
	chunks []domain.Chunk
}

// NewChunkStore creates a new in-memory chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{}
}

// ReplaceAll replaces the whole chunk collection.
func (s *ChunkStore) ReplaceAll(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append([]domain.Chunk(nil), chunks...)
	return nil
}

// List returns every chunk in insertion order.
func (s *ChunkStore) List(_ context.Context) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Chunk(nil), s.chunks...), nil
}

// Count returns the number of chunks.
func (s *ChunkStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// TableStore is an in-memory implementation of driven.TableStore.
type TableStore struct {
	mu     sync.RWMutex
	tables []domain.Table
}

// NewTableStore creates a new in-memory table store.
func NewTableStore() *TableStore {
	return &TableStore{}
}

// ReplaceAll replaces the whole table collection.
func (s *TableStore) ReplaceAll(_ context.Context, tables []domain.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = append([]domain.Table(nil), tables...)
	return nil
}

// List returns every table in insertion order.
func (s *TableStore) List(_ context.Context) ([]domain.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Table(nil), s.tables...), nil
}
