package services

import (
	"context"
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driving"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
)

// Ensure SyncEngine implements the interface.
var _ driving.SyncEngine = (*SyncEngine)(nil)

// DefaultUpsertBatchSize is the number of vectors sent per upsert request.
const DefaultUpsertBatchSize = 100

// SyncDeps are the collaborators of the SyncEngine.
// VectorIndex and Embedding are optional: without both, chunks and tables
// are still rebuilt but the vector index is left alone.
type SyncDeps struct {
	Corpus         driven.Corpus
	Extractor      driven.Extractor
	Blobs          driven.BlobStore
	Reports        driven.ReportStore
	Chunks         driven.ChunkStore
	Tables         driven.TableStore
	Runs           driven.SyncRunStore
	Chunker        driven.Chunker
	TableExtractor driven.TableExtractor
	VectorIndex    driven.VectorIndex
	Embedding      driven.EmbeddingService
}

func (d SyncDeps) validate() error {
	var missing []error
	check := func(ok bool, name string) {
		if !ok {
			missing = append(missing, fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, name))
		}
	}
	check(d.Corpus != nil, "corpus")
	check(d.Extractor != nil, "extractor")
	check(d.Blobs != nil, "blob store")
	check(d.Reports != nil, "report store")
	check(d.Chunks != nil, "chunk store")
	check(d.Tables != nil, "table store")
	check(d.Runs != nil, "sync run store")
	check(d.Chunker != nil, "chunker")
	check(d.TableExtractor != nil, "table extractor")
	return errors.Join(missing...)
}

// SyncOption configures a SyncEngine.
type SyncOption func(*SyncEngine)

// WithWorkers sets how many documents are extracted in parallel.
func WithWorkers(n int) SyncOption {
	return func(e *SyncEngine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithBatchSize sets the vector upsert batch size.
func WithBatchSize(n int) SyncOption {
	return func(e *SyncEngine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithRetryPolicy sets the retry policy for embedding and vector index calls.
func WithRetryPolicy(p RetryPolicy) SyncOption {
	return func(e *SyncEngine) {
		e.retry = p
	}
}

// SyncEngine keeps reports, chunks, tables and vectors in step with the corpus.
//
// Documents are gated by an MD5 fingerprint of their bytes. When any
// document was added, changed or removed, every chunk, table and vector is
// regenerated from the complete report set: chunk ids are positional within
// a report and vector ids are positional within the corpus, so partial
// regeneration could not keep them consistent.
type SyncEngine struct {
	deps      SyncDeps
	workers   int
	batchSize int
	retry     RetryPolicy
	now       func() time.Time

	// Status tracking
	mu      sync.RWMutex
	running bool
	status  *driving.SyncStatus
}

// NewSyncEngine creates a sync engine.
func NewSyncEngine(deps SyncDeps, opts ...SyncOption) (*SyncEngine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	e := &SyncEngine{
		deps:      deps,
		workers:   1,
		batchSize: DefaultUpsertBatchSize,
		retry:     DefaultRetryPolicy(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Fingerprint returns the hex MD5 digest used to detect document changes.
func Fingerprint(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

// Sync runs one incremental sync over the whole corpus.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (e *SyncEngine) Sync(ctx context.Context) (*domain.SyncRun, error) {
	run, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer e.end()

	logger.Section("Sync " + run.ID)

	// 0. Inherit a rebuild left unfinished by an earlier run
	last, err := e.deps.Runs.LastRun(ctx)
	switch {
	case err == nil:
		if last.RebuildPending {
			logger.Warn("previous run %s left the index out of step, rebuilding", last.ID)
			run.RebuildPending = true
		}
	case !errors.Is(err, domain.ErrNotFound):
		return e.abort(ctx, run, fmt.Errorf("read last run: %w", err))
	}

	// 1. List the corpus
	docs, err := e.deps.Corpus.List(ctx)
	if err != nil {
		return e.abort(ctx, run, fmt.Errorf("list corpus: %w", err))
	}
	e.updateStatus(func(s *driving.SyncStatus) { s.DocumentsTotal = len(docs) })

	// 2. Load stored fingerprints
	stored, err := e.deps.Reports.ListReports(ctx)
	if err != nil {
		return e.abort(ctx, run, fmt.Errorf("list reports: %w", err))
	}
	fingerprints := make(map[string]string, len(stored))
	for i := range stored {
		fingerprints[stored[i].Name] = stored[i].Fingerprint
	}

	// 3. Remove reports whose document left the corpus
	local := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		local[d.Name] = struct{}{}
	}
	if err := e.removeMissing(ctx, fingerprints, local, run); err != nil {
		return e.abort(ctx, run, err)
	}

	// 4. Extract new and changed documents
	e.processDocuments(ctx, docs, fingerprints, run)
	if err := ctx.Err(); err != nil {
		return e.abort(ctx, run, err)
	}

	// 5. Rebuild derived collections when anything changed
	if run.Dirty() {
		run.RebuildPending = true
	}
	if !run.RebuildPending {
		logger.Info("No new or changed documents, knowledge base is up to date")
		return e.complete(ctx, run)
	}
	if err := e.rebuild(ctx, run); err != nil {
		return e.abort(ctx, run, err)
	}

	// 6. Record the run
	return e.complete(ctx, run)
}

// Rebuild regenerates chunks, tables and vectors from the stored reports.
func (e *SyncEngine) Rebuild(ctx context.Context) (*domain.SyncRun, error) {
	run, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer e.end()

	logger.Section("Rebuild " + run.ID)
	run.RebuildPending = true
	if err := e.rebuild(ctx, run); err != nil {
		return e.abort(ctx, run, err)
	}
	return e.complete(ctx, run)
}

// Status returns the progress of the active run, or of the last one.
func (e *SyncEngine) Status(_ context.Context) (*driving.SyncStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.status == nil {
		return nil, domain.ErrNotFound
	}
	s := *e.status
	return &s, nil
}

// LastRun returns the last recorded run.
func (e *SyncEngine) LastRun(ctx context.Context) (*domain.SyncRun, error) {
	return e.deps.Runs.LastRun(ctx)
}

func (e *SyncEngine) removeMissing(
	ctx context.Context,
	fingerprints map[string]string,
	local map[string]struct{},
	run *domain.SyncRun,
) error {
	var removed []string
	for name := range fingerprints {
		if _, ok := local[name]; !ok {
			removed = append(removed, name)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	sort.Strings(removed)

	if err := e.deps.Reports.DeleteReports(ctx, removed); err != nil {
		return fmt.Errorf("delete reports: %w", err)
	}
	for _, name := range removed {
		if err := e.deps.Blobs.Delete(ctx, name); err != nil {
			logger.Warn("delete blob %s: %v", name, err)
		}
		delete(fingerprints, name)
	}
	run.Removed = removed
	logger.Info("%d report(s) removed because their document left the corpus", len(removed))
	return nil
}

// docOutcome is the result of processing one corpus document.
type docOutcome struct {
	name  string
	state string
	err   error
}

const (
	stateUnchanged = "unchanged"
	stateAdded     = "added"
	stateChanged   = "changed"
)

func (e *SyncEngine) processDocuments(
	ctx context.Context,
	docs []domain.SourceDocument,
	fingerprints map[string]string,
	run *domain.SyncRun,
) {
	jobs := make(chan domain.SourceDocument)
	outcomes := make(chan docOutcome)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				prior, known := fingerprints[doc.Name]
				outcomes <- e.processOneDocument(ctx, doc, prior, known)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, doc := range docs {
			select {
			case jobs <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for o := range outcomes {
		switch {
		case o.err != nil:
			if run.Failed == nil {
				run.Failed = make(map[string]string)
			}
			run.Failed[o.name] = o.err.Error()
			logger.Error("skip %s: %v", o.name, o.err)
		case o.state == stateUnchanged:
			run.Unchanged = append(run.Unchanged, o.name)
		case o.state == stateAdded:
			run.Added = append(run.Added, o.name)
		case o.state == stateChanged:
			run.Changed = append(run.Changed, o.name)
		}
		e.updateStatus(func(s *driving.SyncStatus) {
			s.DocumentsProcessed++
			if o.err != nil {
				s.ErrorCount++
			}
		})
	}

	sort.Strings(run.Unchanged)
	sort.Strings(run.Added)
	sort.Strings(run.Changed)
}

// processOneDocument applies the fingerprint gate to one document and, when
// it changed, replaces its report. A failure leaves the prior report untouched.
func (e *SyncEngine) processOneDocument(
	ctx context.Context,
	doc domain.SourceDocument,
	prior string,
	known bool,
) docOutcome {
	out := docOutcome{name: doc.Name}

	// 1. Fingerprint the bytes
	data, err := e.deps.Corpus.Read(ctx, doc.Name)
	if err != nil {
		out.err = fmt.Errorf("read: %w", err)
		return out
	}
	fingerprint := Fingerprint(data)
	if known && prior == fingerprint {
		logger.Debug("%s unchanged, skipped", doc.Name)
		out.state = stateUnchanged
		return out
	}

	logger.Info("Processing %s", doc.Name)

	// 2. Extract content
	units, err := e.deps.Extractor.Extract(ctx, doc.Name, data)
	if err != nil {
		out.err = fmt.Errorf("extract: %w", err)
		return out
	}

	// 3. Validate
	report := &domain.Report{
		Name:        doc.Name,
		Fingerprint: fingerprint,
		Units:       units,
		ExtractedAt: e.now(),
	}
	if err := report.Validate(); err != nil {
		out.err = err
		return out
	}

	// 4. Keep a copy of the bytes, then replace the report in one write
	if err := e.deps.Blobs.Put(ctx, doc.Name, data); err != nil {
		out.err = fmt.Errorf("store blob: %w", err)
		return out
	}
	if err := e.deps.Reports.SaveReport(ctx, report); err != nil {
		out.err = fmt.Errorf("save report: %w", err)
		return out
	}

	out.state = stateAdded
	if known {
		out.state = stateChanged
	}
	return out
}

// rebuild regenerates tables, chunks and vectors from the complete report set.
// The run stays pending until every phase succeeded.
func (e *SyncEngine) rebuild(ctx context.Context, run *domain.SyncRun) error {
	reports, err := e.deps.Reports.ListReports(ctx)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}

	e.updateStatus(func(s *driving.SyncStatus) { s.Phase = "tables" })
	tables := e.deps.TableExtractor.ExtractTables(reports)
	if err := e.deps.Tables.ReplaceAll(ctx, tables); err != nil {
		return fmt.Errorf("replace tables: %w", err)
	}
	run.Tables = len(tables)
	logger.Info("%d table(s) extracted", len(tables))

	e.updateStatus(func(s *driving.SyncStatus) { s.Phase = "chunks" })
	chunks, err := e.deps.Chunker.Flatten(ctx, reports)
	if err != nil {
		return fmt.Errorf("%s: %w", e.deps.Chunker.Name(), err)
	}
	if err := e.deps.Chunks.ReplaceAll(ctx, chunks); err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}
	run.Chunks = len(chunks)
	logger.Info("%d chunk(s) generated", len(chunks))

	if e.deps.VectorIndex == nil || e.deps.Embedding == nil {
		logger.Warn("vector rebuild skipped: %v", domain.ErrVectorIndexUnavailable)
		run.Rebuilt, run.RebuildPending = true, false
		return nil
	}

	e.updateStatus(func(s *driving.SyncStatus) { s.Phase = "vectors" })
	n, err := e.rebuildVectors(ctx, chunks)
	if err != nil {
		return err
	}
	run.Vectors = n
	run.Rebuilt, run.RebuildPending = true, false
	logger.Info("%d vector(s) inserted", n)
	return nil
}

// rebuildVectors drops and recreates the collection, then upserts one point
// per chunk in batches. Point ids are chunk positions.
func (e *SyncEngine) rebuildVectors(ctx context.Context, chunks []domain.Chunk) (int, error) {
	index, embedder := e.deps.VectorIndex, e.deps.Embedding

	var exists bool
	err := e.retry.Do(ctx, "check collection", func(ctx context.Context) error {
		var err error
		exists, err = index.CollectionExists(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	if exists {
		if err := e.retry.Do(ctx, "delete collection", index.DeleteCollection); err != nil {
			return 0, err
		}
	}
	dim := embedder.Dimensions()
	err = e.retry.Do(ctx, "create collection", func(ctx context.Context) error {
		return index.CreateCollection(ctx, dim)
	})
	if err != nil {
		return 0, err
	}

	inserted := 0
	for start := 0; start < len(chunks); start += e.batchSize {
		end := start + e.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Content
		}

		var vectors [][]float32
		err := e.retry.Do(ctx, fmt.Sprintf("embed batch %d-%d", start, end), func(ctx context.Context) error {
			var err error
			vectors, err = embedder.EmbedBatch(ctx, texts)
			return err
		})
		if err != nil {
			return inserted, err
		}
		if len(vectors) != len(batch) {
			return inserted, fmt.Errorf("embed batch %d-%d: got %d vectors for %d chunks",
				start, end, len(vectors), len(batch))
		}

		points := make([]domain.VectorPoint, len(batch))
		for i := range batch {
			points[i] = domain.VectorPoint{
				ID:      uint64(start + i),
				Vector:  vectors[i],
				Payload: domain.PayloadOf(batch[i]),
			}
		}
		err = e.retry.Do(ctx, fmt.Sprintf("upsert batch %d-%d", start, end), func(ctx context.Context) error {
			return index.Upsert(ctx, points)
		})
		if err != nil {
			return inserted, err
		}
		inserted += len(points)
		logger.Debug("batch %d to %d inserted", start, end)
	}
	return inserted, nil
}

// begin marks a run active. Ingestion assumes a single writer.
func (e *SyncEngine) begin() (*domain.SyncRun, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil, domain.ErrSyncInProgress
	}
	e.running = true
	run := &domain.SyncRun{ID: uuid.NewString(), StartedAt: e.now()}
	e.status = &driving.SyncStatus{RunID: run.ID, Running: true, Phase: "documents"}
	return run, nil
}

func (e *SyncEngine) end() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	if e.status != nil {
		e.status.Running = false
	}
}

func (e *SyncEngine) updateStatus(fn func(*driving.SyncStatus)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != nil {
		fn(e.status)
	}
}

// complete records a finished run.
func (e *SyncEngine) complete(ctx context.Context, run *domain.SyncRun) (*domain.SyncRun, error) {
	run.FinishedAt = e.now()
	e.updateStatus(func(s *driving.SyncStatus) { s.Phase = "done" })
	if err := e.deps.Runs.SaveRun(ctx, run); err != nil {
		return run, fmt.Errorf("save sync run: %w", err)
	}
	logger.Info("Sync complete: %d added, %d changed, %d removed, %d unchanged, %d errors",
		len(run.Added), len(run.Changed), len(run.Removed), len(run.Unchanged), len(run.Failed))
	return run, nil
}

// abort records a run that stopped on an error. The run is still saved
// so the failure shows up in the history.
func (e *SyncEngine) abort(ctx context.Context, run *domain.SyncRun, cause error) (*domain.SyncRun, error) {
	run.FinishedAt = e.now()
	e.updateStatus(func(s *driving.SyncStatus) { s.Phase = "failed" })
	if err := e.deps.Runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		return run, errors.Join(cause, fmt.Errorf("save sync run: %w", err))
	}
	return run, cause
}
