package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/storage/memory"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

// seedIndex stores n chunks whose similarity to the query decreases with i.
func seedIndex(t *testing.T, n int) *recordingIndex {
	t.Helper()
	idx := newRecordingIndex()
	ctx := context.Background()
	require.NoError(t, idx.CreateCollection(ctx, 2))

	points := make([]domain.VectorPoint, n)
	for i := 0; i < n; i++ {
		points[i] = domain.VectorPoint{
			ID:     uint64(i),
			Vector: []float32{1, float32(i) * 0.1},
			Payload: domain.ChunkPayload{
				ChunkID: fmt.Sprintf("A.pdf_p1_text_%d", i),
				Report:  "A.pdf",
				Page:    1,
				Content: fmt.Sprintf("chunk %d", i),
			},
		}
	}
	require.NoError(t, idx.Upsert(ctx, points))
	return idx
}

// axisEmbedder always embeds to the x axis.
type axisEmbedder struct{ stubEmbedder }

func (a *axisEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	a.embedCalls++
	if a.err != nil {
		return nil, a.err
	}
	return []float32{1, 0}, nil
}

func newTestRetriever(tables []domain.Table, idx *recordingIndex, rr *stubReranker) (*HybridRetriever, *axisEmbedder) {
	store := memory.NewTableStore()
	_ = store.ReplaceAll(context.Background(), tables)
	emb := &axisEmbedder{stubEmbedder{dim: 2}}

	r := NewHybridRetriever(store, nil, nil, nil)
	if idx != nil {
		r.vectorIndex = idx
		r.embeddingService = emb
	}
	if rr != nil {
		r.reranker = rr
	}
	r.SetRetryPolicy(RetryPolicy{Attempts: 2, Backoff: time.Millisecond, sleep: noSleep})
	return r, emb
}

func contents(chunks []domain.ScoredChunk) []string {
	out := make([]string, len(chunks))
	for i := range chunks {
		out[i] = chunks[i].Content
	}
	return out
}

func TestSearchChunks_VectorOrderWithoutReranker(t *testing.T) {
	r, _ := newTestRetriever(nil, seedIndex(t, 3), nil)

	got, err := r.SearchChunks(context.Background(), "trafic", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk 0", "chunk 1", "chunk 2"}, contents(got))
	assert.Equal(t, got[0].VectorScore, got[0].RerankScore)
}

func TestSearchChunks_RerankedAndCapped(t *testing.T) {
	rr := &stubReranker{fn: func(texts []string) []float64 {
		// Reverse the vector order.
		scores := make([]float64, len(texts))
		for i := range texts {
			scores[i] = float64(i)
		}
		return scores
	}}
	r, _ := newTestRetriever(nil, seedIndex(t, 15), rr)

	got, err := r.SearchChunks(context.Background(), "trafic", 50)
	require.NoError(t, err)
	require.Len(t, got, domain.MaxRerankedChunks)
	assert.Equal(t, "chunk 14", got[0].Content)
	assert.Equal(t, "chunk 5", got[9].Content)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].RerankScore, got[i].RerankScore)
	}
	assert.Equal(t, 1, rr.calls)
}

func TestSearchChunks_StableOnEqualScores(t *testing.T) {
	rr := &stubReranker{fn: func(texts []string) []float64 { return make([]float64, len(texts)) }}
	r, _ := newTestRetriever(nil, seedIndex(t, 4), rr)

	got, err := r.SearchChunks(context.Background(), "trafic", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk 0", "chunk 1", "chunk 2", "chunk 3"}, contents(got))
}

func TestSearchChunks_RerankerFailureDegrades(t *testing.T) {
	tests := []struct {
		name string
		rr   *stubReranker
	}{
		{"error", &stubReranker{err: errors.New("cross-encoder down")}},
		{"score count mismatch", &stubReranker{fn: func(_ []string) []float64 { return []float64{1} }}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRetriever(nil, seedIndex(t, 3), tt.rr)
			got, err := r.SearchChunks(context.Background(), "trafic", 50)
			require.NoError(t, err)
			assert.Equal(t, []string{"chunk 0", "chunk 1", "chunk 2"}, contents(got))
		})
	}
}

func TestSearchChunks_EmptyQuestion(t *testing.T) {
	r, emb := newTestRetriever(nil, seedIndex(t, 3), nil)

	got, err := r.SearchChunks(context.Background(), "   ", 50)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, emb.embedCalls)
}

func TestSearchChunks_KLimitsCandidates(t *testing.T) {
	r, _ := newTestRetriever(nil, seedIndex(t, 8), nil)

	got, err := r.SearchChunks(context.Background(), "trafic", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSearchChunks_DropsEmptyContent(t *testing.T) {
	idx := seedIndex(t, 2)
	require.NoError(t, idx.Upsert(context.Background(), []domain.VectorPoint{
		{ID: 9, Vector: []float32{1, 0}, Payload: domain.ChunkPayload{ChunkID: "vide", Content: "  "}},
	}))
	r, _ := newTestRetriever(nil, idx, nil)

	got, err := r.SearchChunks(context.Background(), "trafic", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk 0", "chunk 1"}, contents(got))
}

func TestSearchChunks_Unavailable(t *testing.T) {
	r, _ := newTestRetriever(nil, nil, nil)
	_, err := r.SearchChunks(context.Background(), "trafic", 50)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	r.embeddingService = newStubEmbedder()
	_, err = r.SearchChunks(context.Background(), "trafic", 50)
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
}

func TestSearchChunks_EmbeddingRetriedThenUnavailable(t *testing.T) {
	r, emb := newTestRetriever(nil, seedIndex(t, 2), nil)
	emb.err = errors.New("timeout")

	_, err := r.SearchChunks(context.Background(), "trafic", 50)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, 2, emb.embedCalls)
}

// ==================== Tables ====================

var portHeader = []string{"Port", "Trafic"}

func searchTables() []domain.Table {
	return []domain.Table{
		{ID: "A.pdf_p1_table0", Report: "A.pdf", Page: 1, Header: portHeader, Rows: [][]string{{"Tanger", "12"}}},
		{ID: "A.pdf_p2_table1", Report: "A.pdf", Page: 2, Header: portHeader, Rows: [][]string{{"Agadir", "7"}}},
		{ID: "A.pdf_p5_table2", Report: "A.pdf", Page: 5, Header: portHeader, Rows: [][]string{{"Tanger", "3"}}},
		{ID: "B.pdf_p1_table3", Report: "B.pdf", Page: 1, Header: portHeader, Rows: [][]string{{"Tanger", "1"}}},
		{ID: "B.pdf_p3_table4", Report: "B.pdf", Page: 3, Header: []string{"Marée", "Heure"}, Rows: [][]string{{"Haute", "06:12"}}},
	}
}

func TestSearchTables_ScoresDedupesAndMerges(t *testing.T) {
	r, _ := newTestRetriever(searchTables(), nil, nil)

	got, err := r.SearchTables(context.Background(), "Port Tanger port", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "A.pdf", got[0].Report)
	assert.Equal(t, 1, got[0].Page)
	assert.Equal(t, 2, got[0].Score)
	assert.Equal(t, portHeader, got[0].Header)
	// Page 2 is within the merge window, page 5 is not.
	assert.Equal(t, [][]string{{"Tanger", "12"}, {"Agadir", "7"}}, got[0].Rows)

	assert.Equal(t, "B.pdf", got[1].Report)
	assert.Equal(t, [][]string{{"Tanger", "1"}}, got[1].Rows)
}

func TestSearchTables_MergedRowsComeFromMatchingTables(t *testing.T) {
	tables := searchTables()
	r, _ := newTestRetriever(tables, nil, nil)

	got, err := r.SearchTables(context.Background(), "tanger agadir haute", 5)
	require.NoError(t, err)
	for _, m := range got {
		for _, row := range m.Rows {
			found := false
			for _, tb := range tables {
				if tb.Report != m.Report || fmt.Sprint(tb.Header) != fmt.Sprint(m.Header) {
					continue
				}
				diff := tb.Page - m.Page
				if diff < 0 {
					diff = -diff
				}
				if diff > domain.TableMergePageWindow {
					continue
				}
				for _, r := range tb.Rows {
					if fmt.Sprint(r) == fmt.Sprint(row) {
						found = true
					}
				}
			}
			assert.True(t, found, "row %v of %s p%d has no source table", row, m.Report, m.Page)
		}
	}
}

func TestSearchTables_Limit(t *testing.T) {
	r, _ := newTestRetriever(searchTables(), nil, nil)

	got, err := r.SearchTables(context.Background(), "tanger", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A.pdf", got[0].Report)
}

func TestSearchTables_NoMatch(t *testing.T) {
	r, _ := newTestRetriever(searchTables(), nil, nil)

	for _, q := range []string{"", "   ", "casablanca"} {
		got, err := r.SearchTables(context.Background(), q, 5)
		require.NoError(t, err)
		assert.Empty(t, got, q)
	}
}

func TestSearchTables_CaseInsensitive(t *testing.T) {
	r, _ := newTestRetriever(searchTables(), nil, nil)

	got, err := r.SearchTables(context.Background(), "MARÉE", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B.pdf", got[0].Report)
	assert.Equal(t, 3, got[0].Page)
}

// ==================== Retrieve ====================

func TestRetrieve_CombinesBoth(t *testing.T) {
	r, _ := newTestRetriever(searchTables(), seedIndex(t, 3), nil)

	rc, err := r.Retrieve(context.Background(), "trafic tanger")
	require.NoError(t, err)
	assert.Len(t, rc.Chunks, 3)
	assert.NotEmpty(t, rc.Tables)
	assert.Equal(t, []string{"A.pdf", "B.pdf"}, rc.Reports())
}

func TestRetrieve_DegradesWithoutVectorStack(t *testing.T) {
	r, _ := newTestRetriever(searchTables(), nil, nil)

	rc, err := r.Retrieve(context.Background(), "tanger")
	require.NoError(t, err)
	assert.Empty(t, rc.Chunks)
	assert.NotEmpty(t, rc.Tables)
}

func TestRetrieve_DegradesOnTableFailure(t *testing.T) {
	r, _ := newTestRetriever(nil, seedIndex(t, 2), nil)
	r.tableStore = failingTableStore{}

	rc, err := r.Retrieve(context.Background(), "tanger")
	require.NoError(t, err)
	assert.Len(t, rc.Chunks, 2)
	assert.Empty(t, rc.Tables)
}

func TestRetrieve_ChunkFailure(t *testing.T) {
	idx := seedIndex(t, 2)
	idx.searchErr = domain.ErrDimensionMismatch
	r, _ := newTestRetriever(searchTables(), idx, nil)

	_, err := r.Retrieve(context.Background(), "tanger")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}
