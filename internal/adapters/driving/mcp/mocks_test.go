package mcp

import (
	"context"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driving"
)

// mockRetriever is a mock implementation of driving.Retriever.
type mockRetriever struct {
	chunks []domain.ScoredChunk
	tables []domain.TableMatch
	err    error

	gotK     int
	gotLimit int
}

func (m *mockRetriever) SearchChunks(_ context.Context, _ string, k int) ([]domain.ScoredChunk, error) {
	m.gotK = k
	return m.chunks, m.err
}

func (m *mockRetriever) SearchTables(_ context.Context, _ string, limit int) ([]domain.TableMatch, error) {
	m.gotLimit = limit
	return m.tables, m.err
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string) (*domain.RetrievalContext, error) {
	return &domain.RetrievalContext{Chunks: m.chunks, Tables: m.tables}, m.err
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	result domain.QueryResult
	got    domain.QueryRequest
}

func (m *mockQueryService) Ask(_ context.Context, req domain.QueryRequest) domain.QueryResult {
	m.got = req
	return m.result
}

// mockSyncEngine is a mock implementation of driving.SyncEngine.
type mockSyncEngine struct {
	run     *domain.SyncRun
	err     error
	rebuilt bool
}

func (m *mockSyncEngine) Sync(context.Context) (*domain.SyncRun, error) { return m.run, m.err }

func (m *mockSyncEngine) Rebuild(context.Context) (*domain.SyncRun, error) {
	m.rebuilt = true
	return m.run, m.err
}

func (m *mockSyncEngine) Status(context.Context) (*driving.SyncStatus, error) {
	return &driving.SyncStatus{}, nil
}

func (m *mockSyncEngine) LastRun(context.Context) (*domain.SyncRun, error) { return m.run, m.err }
