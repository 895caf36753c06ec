package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/storage/memory"
	"github.com/ihssane2002/chatbot-entreprise/internal/connectors/filesystem"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driving"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockQuery struct {
	got    domain.QueryRequest
	result domain.QueryResult
}

func (m *mockQuery) Ask(_ context.Context, req domain.QueryRequest) domain.QueryResult {
	m.got = req
	return m.result
}

type mockIngest struct {
	name   string
	data   []byte
	result *domain.UploadResult
	err    error
}

func (m *mockIngest) Upload(_ context.Context, name string, data []byte) (*domain.UploadResult, error) {
	m.name, m.data = name, data
	return m.result, m.err
}

type mockSync struct {
	lastRun *domain.SyncRun
	lastErr error
}

func (m *mockSync) Sync(context.Context) (*domain.SyncRun, error)    { return nil, nil }
func (m *mockSync) Rebuild(context.Context) (*domain.SyncRun, error) { return nil, nil }
func (m *mockSync) Status(context.Context) (*driving.SyncStatus, error) {
	return &driving.SyncStatus{Phase: "done"}, nil
}
func (m *mockSync) LastRun(context.Context) (*domain.SyncRun, error) { return m.lastRun, m.lastErr }

type fixture struct {
	router *gin.Engine
	query  *mockQuery
	ingest *mockIngest
	sync   *mockSync
	corpus *filesystem.Corpus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		query:  &mockQuery{result: domain.QueryResult{Answer: "Réponse"}},
		ingest: &mockIngest{result: &domain.UploadResult{Name: "r.pdf"}},
		sync:   &mockSync{lastErr: domain.ErrNotFound},
		corpus: filesystem.New(t.TempDir()),
	}
	f.router = NewRouter(Deps{
		Query:          f.query,
		Ingest:         f.ingest,
		Sync:           f.sync,
		Corpus:         f.corpus,
		Reports:        memory.NewReportStore(),
		VectorIndex:    memory.NewVectorIndex(),
		MaxUploadBytes: 1024,
	})
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKey    string
		wantValue  string
	}{
		{name: "answer", body: `{"question":"Trafic 2023 ?","history":[{"question":"q","answer":"a"}]}`, wantStatus: 200, wantKey: "answer", wantValue: "Réponse"},
		{name: "missing question", body: `{"question":""}`, wantStatus: 400, wantKey: "error", wantValue: msgMissingQuestion},
		{name: "invalid json", body: `{`, wantStatus: 400, wantKey: "error", wantValue: msgInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := f.do(req)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantValue, decode(t, w)[tt.wantKey])
		})
	}
}

func TestQuery_ForwardsHistoryAndSession(t *testing.T) {
	f := newFixture(t)
	body := `{"question":"Et en 2024 ?","history":[{"question":"q1","answer":"a1"}],"session_id":"s-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Et en 2024 ?", f.query.got.Question)
	assert.Equal(t, "s-1", f.query.got.SessionID)
	assert.Equal(t, []domain.HistoryTurn{{Question: "q1", Answer: "a1"}}, f.query.got.History)
}

func TestQuery_ErrorResultIsOK(t *testing.T) {
	f := newFixture(t)
	f.query.result = domain.QueryResult{Error: "Erreur interne : boom"}
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewBufferString(`{"question":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	w := f.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Erreur interne : boom", body["error"])
	assert.NotContains(t, body, "answer")
}

func multipartUpload(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-pdf", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	pdf := []byte("%PDF-1.4 test")
	tests := []struct {
		name        string
		field       string
		result      *domain.UploadResult
		err         error
		content     []byte
		wantStatus  int
		wantMessage string
	}{
		{name: "added", field: "pdf", result: &domain.UploadResult{Name: "r.pdf"}, content: pdf, wantStatus: 200, wantMessage: "PDF ajouté et traité avec succès."},
		{name: "replaced", field: "pdf", result: &domain.UploadResult{Name: "r.pdf", Replaced: true}, content: pdf, wantStatus: 200, wantMessage: "PDF déjà existant mais retraité avec succès."},
		{name: "queued", field: "pdf", result: &domain.UploadResult{Name: "r.pdf", Queued: true}, content: pdf, wantStatus: 200, wantMessage: "PDF ajouté, traitement planifié."},
		{name: "missing file", field: "", content: pdf, wantStatus: 400},
		{name: "wrong field", field: "file", content: pdf, wantStatus: 400},
		{name: "unsupported", field: "pdf", err: domain.ErrUnsupportedType, content: pdf, wantStatus: 400},
		{name: "busy", field: "pdf", err: domain.ErrSyncInProgress, content: pdf, wantStatus: 409},
		{name: "failure", field: "pdf", err: errors.New("disk full"), content: pdf, wantStatus: 500},
		{name: "too large", field: "pdf", content: bytes.Repeat([]byte("a"), 2048), wantStatus: 413},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ingest.result, f.ingest.err = tt.result, tt.err

			w := f.do(multipartUpload(t, tt.field, "r.pdf", tt.content))
			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body["message"])
				assert.Equal(t, "r.pdf", body["name"])
				assert.Equal(t, tt.content, f.ingest.data)
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestReport(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.corpus.Write(context.Background(), "Rapport 2023.pdf", []byte("%PDF-data")))

	w := f.do(httptest.NewRequest(http.MethodGet, "/static/rapports/Rapport%202023.pdf", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-data", w.Body.String())

	w = f.do(httptest.NewRequest(http.MethodGet, "/static/rapports/missing.pdf", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(httptest.NewRequest(http.MethodGet, "/static/rapports/..", nil))
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestListReports(t *testing.T) {
	f := newFixture(t)
	reports := memory.NewReportStore()
	require.NoError(t, reports.SaveReport(context.Background(), &domain.Report{
		Name: "a.pdf", Fingerprint: "abc", ExtractedAt: time.Now(),
		Units: []domain.ContentUnit{{Page: 1, Kind: domain.ContentKindText, Content: "x"}},
	}))
	f.router = NewRouter(Deps{Query: f.query, Ingest: f.ingest, Sync: f.sync, Corpus: f.corpus, Reports: reports})

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["reports"].([]any)
	require.Len(t, list, 1)
	entry := list[0].(map[string]any)
	assert.Equal(t, "a.pdf", entry["name"])
	assert.Equal(t, float64(1), entry["units"])
}

func TestSyncStatus(t *testing.T) {
	f := newFixture(t)
	f.sync.lastRun, f.sync.lastErr = &domain.SyncRun{ID: "run-1"}, nil

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/sync/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "run-1", body["last_run"].(map[string]any)["id"])
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	f.sync.lastErr = errors.New("database is locked")
	w = f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	deps := decode(t, w)["dependencies"].(map[string]any)
	assert.Equal(t, false, deps["storage"].(map[string]any)["ok"])
}

func TestServe_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", newFixture(t).router) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
