package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/storage/memory"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driving"
)

// mockSyncEngine implements driving.SyncEngine for testing.
type mockSyncEngine struct {
	run     *domain.SyncRun
	err     error
	status  *driving.SyncStatus
	lastRun *domain.SyncRun
	lastErr error

	syncCalls    int
	rebuildCalls int
}

func (m *mockSyncEngine) Sync(context.Context) (*domain.SyncRun, error) {
	m.syncCalls++
	return m.run, m.err
}

func (m *mockSyncEngine) Rebuild(context.Context) (*domain.SyncRun, error) {
	m.rebuildCalls++
	return m.run, m.err
}

func (m *mockSyncEngine) Status(context.Context) (*driving.SyncStatus, error) {
	if m.status == nil {
		return &driving.SyncStatus{}, nil
	}
	return m.status, nil
}

func (m *mockSyncEngine) LastRun(context.Context) (*domain.SyncRun, error) {
	return m.lastRun, m.lastErr
}

// mockRetriever implements driving.Retriever for testing.
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

func (m *mockRetriever) Retrieve(context.Context, string) (*domain.RetrievalContext, error) {
	return &domain.RetrievalContext{Chunks: m.chunks, Tables: m.tables}, m.err
}

// mockQueryService implements driving.QueryService for testing.
type mockQueryService struct {
	result domain.QueryResult
	got    domain.QueryRequest
}

func (m *mockQueryService) Ask(_ context.Context, req domain.QueryRequest) domain.QueryResult {
	m.got = req
	return m.result
}

// mockIngestService implements driving.IngestService for testing.
type mockIngestService struct {
	result  *domain.UploadResult
	err     error
	gotName string
	gotData []byte
}

func (m *mockIngestService) Upload(_ context.Context, name string, data []byte) (*domain.UploadResult, error) {
	m.gotName = name
	m.gotData = data
	return m.result, m.err
}

// testServices holds the mocks behind the injected Services.
type testServices struct {
	sync      *mockSyncEngine
	retriever *mockRetriever
	query     *mockQueryService
	ingest    *mockIngestService
	reports   *memory.ReportStore
}

// setupTestServices injects mock services and returns them with a cleanup.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	ts := &testServices{
		sync:      &mockSyncEngine{},
		retriever: &mockRetriever{},
		query:     &mockQueryService{},
		ingest:    &mockIngestService{},
		reports:   memory.NewReportStore(),
	}
	restore := SetServices(&Services{
		Settings:  domain.DefaultSettings(),
		Sync:      ts.sync,
		Retriever: ts.retriever,
		Query:     ts.query,
		Ingest:    ts.ingest,
		Reports:   ts.reports,
	})
	t.Cleanup(restore)
	return ts
}

// execute runs the root command with args against a temporary config
// directory and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { resetFlags(rootCmd) })

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"--config-dir", t.TempDir()}, args...))
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default; cobra keeps parsed
// values between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
