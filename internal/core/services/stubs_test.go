package services

import (
	"context"
	"errors"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/storage/memory"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driving"
)

// --- Test doubles shared by the service tests ---

// stubCorpus implements driven.Corpus over a map.
type stubCorpus struct {
	mu      sync.Mutex
	docs    map[string][]byte
	readErr map[string]error
	listErr error
	writes  []string
}

func newStubCorpus(docs map[string]string) *stubCorpus {
	c := &stubCorpus{docs: make(map[string][]byte), readErr: make(map[string]error)}
	for name, data := range docs {
		c.docs[name] = []byte(data)
	}
	return c
}

func (c *stubCorpus) List(_ context.Context) ([]domain.SourceDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	docs := make([]domain.SourceDocument, 0, len(c.docs))
	for name, data := range c.docs {
		docs = append(docs, domain.SourceDocument{Name: name, Path: "/corpus/" + name, Size: int64(len(data))})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func (c *stubCorpus) Read(_ context.Context, name string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readErr[name]; err != nil {
		return nil, err
	}
	data, ok := c.docs[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (c *stubCorpus) Write(_ context.Context, name string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[name] = data
	c.writes = append(c.writes, name)
	return nil
}

func (c *stubCorpus) Exists(_ context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.docs[name]
	return ok, nil
}

func (c *stubCorpus) set(name, data string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[name] = []byte(data)
}

func (c *stubCorpus) remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, name)
}

const stubTable = `{"0": {"0": "Port", "1": "Tanger"}, "1": {"0": "Trafic", "1": "12"}}`

// stubExtractor returns one text unit holding the document bytes and one table.
type stubExtractor struct {
	mu      sync.Mutex
	calls   map[string]int
	fail    map[string]error
	units   map[string][]domain.ContentUnit
	started chan struct{}
	block   chan struct{}
}

func newStubExtractor() *stubExtractor {
	return &stubExtractor{
		calls: make(map[string]int),
		fail:  make(map[string]error),
		units: make(map[string][]domain.ContentUnit),
	}
}

func (e *stubExtractor) Extract(ctx context.Context, name string, data []byte) ([]domain.ContentUnit, error) {
	e.mu.Lock()
	e.calls[name]++
	err := e.fail[name]
	units, custom := e.units[name]
	started, block := e.started, e.block
	e.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if custom {
		return units, nil
	}
	return []domain.ContentUnit{
		{Page: 1, Kind: domain.ContentKindText, Content: string(data)},
		{Page: 1, Kind: domain.ContentKindTable, Flavor: "lattice", Content: stubTable},
	}, nil
}

func (e *stubExtractor) totalCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0
	for _, n := range e.calls {
		total += n
	}
	return total
}

// stubEmbedder produces deterministic vectors from an FNV hash of the text.
type stubEmbedder struct {
	mu         sync.Mutex
	dim        int
	err        error
	batchSizes []int
	embedCalls int
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{dim: 4}
}

func (s *stubEmbedder) vector(text string) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum32()
	v := make([]float32, s.dim)
	for i := range v {
		v[i] = float32((sum>>(uint(i)*8))&0xff) + 1
	}
	return v
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embedCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector(text), nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchSizes = append(s.batchSizes, len(texts))
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vector(t)
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int              { return s.dim }
func (s *stubEmbedder) ModelName() string            { return "stub-embedder" }
func (s *stubEmbedder) Ping(_ context.Context) error { return nil }
func (s *stubEmbedder) Close() error                 { return nil }

// recordingIndex wraps the memory index and records upsert batches.
type recordingIndex struct {
	*memory.VectorIndex
	mu        sync.Mutex
	upserts   [][]uint64
	deletes   int
	searchErr error
}

func newRecordingIndex() *recordingIndex {
	return &recordingIndex{VectorIndex: memory.NewVectorIndex()}
}

func (r *recordingIndex) DeleteCollection(ctx context.Context) error {
	r.mu.Lock()
	r.deletes++
	r.mu.Unlock()
	return r.VectorIndex.DeleteCollection(ctx)
}

func (r *recordingIndex) Upsert(ctx context.Context, points []domain.VectorPoint) error {
	ids := make([]uint64, len(points))
	for i := range points {
		ids[i] = points[i].ID
	}
	r.mu.Lock()
	r.upserts = append(r.upserts, ids)
	r.mu.Unlock()
	return r.VectorIndex.Upsert(ctx, points)
}

func (r *recordingIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.VectorHit, error) {
	if r.searchErr != nil {
		return nil, r.searchErr
	}
	return r.VectorIndex.Search(ctx, vector, k)
}

// stubReranker returns fixed scores, or scores computed by fn.
type stubReranker struct {
	fn    func(texts []string) []float64
	err   error
	calls int
}

func (s *stubReranker) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.fn(texts), nil
}

func (s *stubReranker) ModelName() string { return "stub-reranker" }
func (s *stubReranker) Close() error      { return nil }

// failingTableStore always fails to list.
type failingTableStore struct{}

func (failingTableStore) ReplaceAll(_ context.Context, _ []domain.Table) error {
	return errors.New("table store down")
}

func (failingTableStore) List(_ context.Context) ([]domain.Table, error) {
	return nil, errors.New("table store down")
}

// flakyChunkStore wraps the memory chunk store and fails ReplaceAll while err is set.
type flakyChunkStore struct {
	*memory.ChunkStore
	err error
}

func (f *flakyChunkStore) ReplaceAll(ctx context.Context, chunks []domain.Chunk) error {
	if f.err != nil {
		return f.err
	}
	return f.ChunkStore.ReplaceAll(ctx, chunks)
}

// stubLLM records chat requests and returns a canned answer.
type stubLLM struct {
	answer   string
	err      error
	messages [][]driven.ChatMessage
	opts     []driven.ChatOptions
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	return s.Chat(ctx, []driven.ChatMessage{{Role: "user", Content: prompt}},
		driven.ChatOptions{MaxTokens: opts.MaxTokens, Temperature: opts.Temperature})
}

func (s *stubLLM) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	s.messages = append(s.messages, messages)
	s.opts = append(s.opts, opts)
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func (s *stubLLM) ModelName() string            { return "stub-llm" }
func (s *stubLLM) Ping(_ context.Context) error { return nil }
func (s *stubLLM) Close() error                 { return nil }

// stubRetriever returns a fixed retrieval context.
type stubRetriever struct {
	rc        *domain.RetrievalContext
	err       error
	questions []string
}

func (s *stubRetriever) SearchChunks(_ context.Context, _ string, _ int) ([]domain.ScoredChunk, error) {
	return s.rc.Chunks, s.err
}

func (s *stubRetriever) SearchTables(_ context.Context, _ string, _ int) ([]domain.TableMatch, error) {
	return s.rc.Tables, s.err
}

func (s *stubRetriever) Retrieve(_ context.Context, question string) (*domain.RetrievalContext, error) {
	s.questions = append(s.questions, question)
	if s.err != nil {
		return nil, s.err
	}
	return s.rc, nil
}

// stubPromptStore serves prompts from a map.
type stubPromptStore struct {
	prompts map[string]string
	err     error
}

func (s *stubPromptStore) Load(name string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	p, ok := s.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (s *stubPromptStore) Reload() {}

// stubSyncEngine records Sync calls.
type stubSyncEngine struct {
	run   *domain.SyncRun
	err   error
	syncs int
}

func (s *stubSyncEngine) Sync(_ context.Context) (*domain.SyncRun, error) {
	s.syncs++
	return s.run, s.err
}

func (s *stubSyncEngine) Rebuild(_ context.Context) (*domain.SyncRun, error) { return s.run, s.err }

func (s *stubSyncEngine) Status(_ context.Context) (*driving.SyncStatus, error) {
	return nil, domain.ErrNotFound
}

func (s *stubSyncEngine) LastRun(_ context.Context) (*domain.SyncRun, error) { return s.run, s.err }

// stubQueue records published requests.
type stubQueue struct {
	err       error
	published []domain.SyncRequest
}

func (s *stubQueue) Publish(_ context.Context, req domain.SyncRequest) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, req)
	return nil
}

func (s *stubQueue) Close() error { return nil }
