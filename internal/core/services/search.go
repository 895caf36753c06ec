package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driving"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
)

// Ensure HybridRetriever implements the interface.
var _ driving.Retriever = (*HybridRetriever)(nil)

// HybridRetriever combines dense chunk retrieval with lexical table matching.
// It only reads the collections the SyncEngine writes.
type HybridRetriever struct {
	tableStore       driven.TableStore
	vectorIndex      driven.VectorIndex
	embeddingService driven.EmbeddingService
	reranker         driven.Reranker
	retry            RetryPolicy
}

// NewHybridRetriever creates a new retriever.
// The vectorIndex, embeddingService and reranker parameters are optional (can be nil).
func NewHybridRetriever(
	tableStore driven.TableStore,
	vectorIndex driven.VectorIndex,
	embeddingService driven.EmbeddingService,
	reranker driven.Reranker,
) *HybridRetriever {
	return &HybridRetriever{
		tableStore:       tableStore,
		vectorIndex:      vectorIndex,
		embeddingService: embeddingService,
		reranker:         reranker,
		retry:            DefaultRetryPolicy(),
	}
}

// SetRetryPolicy overrides the retry policy for embedding and vector calls.
func (r *HybridRetriever) SetRetryPolicy(p RetryPolicy) {
	r.retry = p
}

// SearchChunks embeds the question, fetches k nearest chunks and reranks
// them with the cross-encoder. At most domain.MaxRerankedChunks chunks are
// returned, by decreasing rerank score; equal scores keep vector order.
func (r *HybridRetriever) SearchChunks(ctx context.Context, question string, k int) ([]domain.ScoredChunk, error) {
	logger.Section("Chunk Search")

	question = strings.TrimSpace(question)
	if question == "" {
		logger.Debug("Empty question, returning no chunks")
		return []domain.ScoredChunk{}, nil
	}
	if k <= 0 {
		k = domain.DefaultChunkCandidates
	}
	if r.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if r.vectorIndex == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	// 1. Embed the question
	var vector []float32
	err := r.retry.Do(ctx, "embed question", func(ctx context.Context) error {
		var err error
		vector, err = r.embeddingService.Embed(ctx, question)
		return err
	})
	if err != nil {
		return nil, err
	}

	// 2. Nearest neighbours
	var hits []domain.VectorHit
	err = r.retry.Do(ctx, "vector search", func(ctx context.Context) error {
		var err error
		hits, err = r.vectorIndex.Search(ctx, vector, k)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("Vector search returned %d candidates (k=%d)", len(hits), k)

	candidates := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if strings.TrimSpace(h.Payload.Content) == "" {
			continue
		}
		candidates = append(candidates, domain.ScoredChunk{
			ChunkPayload: h.Payload,
			VectorScore:  h.Score,
			RerankScore:  h.Score,
		})
	}

	// 3. Rerank
	r.rerank(ctx, question, candidates)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RerankScore > candidates[j].RerankScore
	})

	if len(candidates) > domain.MaxRerankedChunks {
		candidates = candidates[:domain.MaxRerankedChunks]
	}
	logger.Info("Chunk search: %d result(s)", len(candidates))
	return candidates, nil
}

// rerank overwrites RerankScore with cross-encoder scores. Without a
// reranker, or when it fails, the vector similarity is kept.
func (r *HybridRetriever) rerank(ctx context.Context, question string, candidates []domain.ScoredChunk) {
	if r.reranker == nil || len(candidates) == 0 {
		logger.Debug("Reranker unavailable, keeping vector order")
		return
	}
	texts := make([]string, len(candidates))
	for i := range candidates {
		texts[i] = candidates[i].Content
	}
	scores, err := r.reranker.Score(ctx, question, texts)
	if err == nil && len(scores) != len(texts) {
		err = fmt.Errorf("got %d scores for %d texts", len(scores), len(texts))
	}
	if err != nil {
		logger.Warn("Rerank failed, keeping vector order: %v", err)
		return
	}
	for i := range candidates {
		candidates[i].RerankScore = scores[i]
	}
	logger.Debug("Reranked %d candidates with %s", len(candidates), r.reranker.ModelName())
}

// SearchTables scores every stored table by how many question tokens occur
// in its text, keeps the best `limit`, and merges each distinct
// (report, header) table with its fragments on nearby pages.
func (r *HybridRetriever) SearchTables(ctx context.Context, question string, limit int) ([]domain.TableMatch, error) {
	logger.Section("Table Search")

	if limit <= 0 {
		limit = domain.DefaultTableLimit
	}
	tokens := tokenSet(question)
	if len(tokens) == 0 {
		return []domain.TableMatch{}, nil
	}

	tables, err := r.tableStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	type scoredTable struct {
		table *domain.Table
		score int
	}
	var scored []scoredTable
	for i := range tables {
		text := tables[i].SearchText()
		score := 0
		for _, tok := range tokens {
			if strings.Contains(text, tok) {
				score++
			}
		}
		if score > 0 {
			scored = append(scored, scoredTable{table: &tables[i], score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	logger.Debug("Table search: %d of %d tables matched", len(scored), len(tables))

	seen := make(map[string]struct{})
	matches := make([]domain.TableMatch, 0, len(scored))
	for _, st := range scored {
		key := st.table.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		matches = append(matches, domain.TableMatch{
			Report: st.table.Report,
			Page:   st.table.Page,
			Header: st.table.Header,
			Rows:   mergeRows(tables, st.table),
			Score:  st.score,
		})
	}
	logger.Info("Table search: %d merged table(s)", len(matches))
	return matches, nil
}

// mergeRows collects, in stored order, the rows of every table sharing the
// anchor's (report, header) within domain.TableMergePageWindow pages.
// The anchor's own rows are included.
func mergeRows(tables []domain.Table, anchor *domain.Table) [][]string {
	key := anchor.Key()
	rows := [][]string{}
	for i := range tables {
		t := &tables[i]
		if t.Key() != key {
			continue
		}
		diff := t.Page - anchor.Page
		if diff < 0 {
			diff = -diff
		}
		if diff <= domain.TableMergePageWindow {
			rows = append(rows, t.Rows...)
		}
	}
	return rows
}

// tokenSet lowercases the question and splits it on whitespace, dropping duplicates.
func tokenSet(question string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(question)) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Retrieve runs chunk and table search in parallel and waits for both.
// A table failure degrades to no tables; a missing vector stack degrades
// to no chunks; any other chunk failure is returned.
func (r *HybridRetriever) Retrieve(ctx context.Context, question string) (*domain.RetrievalContext, error) {
	var (
		wg                 sync.WaitGroup
		chunks             []domain.ScoredChunk
		tables             []domain.TableMatch
		chunkErr, tableErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		chunks, chunkErr = r.SearchChunks(ctx, question, domain.DefaultChunkCandidates)
	}()
	go func() {
		defer wg.Done()
		tables, tableErr = r.SearchTables(ctx, question, domain.DefaultTableLimit)
	}()
	wg.Wait()

	if chunkErr != nil {
		if !errors.Is(chunkErr, domain.ErrEmbeddingUnavailable) && !errors.Is(chunkErr, domain.ErrVectorIndexUnavailable) {
			return nil, fmt.Errorf("search chunks: %w", chunkErr)
		}
		logger.Warn("Chunk search disabled: %v", chunkErr)
		chunks = nil
	}
	if tableErr != nil {
		logger.Warn("Table search failed: %v", tableErr)
		tables = nil
	}

	return &domain.RetrievalContext{Chunks: chunks, Tables: tables}, nil
}
