// Package bootstrap builds the application graph from domain.Settings.
// Driving adapters (CLI, HTTP, MCP, worker) receive a ready App and never
// construct driven adapters themselves.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/ai"
	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/config/file"
	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/extractor/pdf"
	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/history/redis"
	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/queue/rabbitmq"
	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/storage/memory"
	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/storage/mongo"
	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/storage/sqlite"
	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/vector/pgvector"
	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/vector/qdrant"
	"github.com/ihssane2002/chatbot-entreprise/internal/connectors/filesystem"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/services"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
	"github.com/ihssane2002/chatbot-entreprise/internal/normalisers/table"
	"github.com/ihssane2002/chatbot-entreprise/internal/postprocessors/chunker"
)

// Stores groups the persistence ports of one storage backend.
type Stores struct {
	Reports driven.ReportStore
	Chunks  driven.ChunkStore
	Tables  driven.TableStore
	Blobs   driven.BlobStore
	Runs    driven.SyncRunStore
}

// App is the wired application.
type App struct {
	Settings domain.Settings
	Corpus   *filesystem.Corpus
	Stores   Stores

	VectorIndex driven.VectorIndex
	AI          *ai.InitResult
	Prompts     driven.PromptStore
	History     driven.HistoryStore
	Queue       driven.SyncQueue

	Sync      *services.SyncEngine
	Retriever *services.HybridRetriever
	Query     *services.QueryService
	Ingest    *services.IngestService

	// Warnings lists optional services that were disabled.
	Warnings []string

	closers []func() error
}

// Option customises New.
type Option func(*options)

type options struct {
	promptDir string
	skipAI    bool
	skipQueue bool
}

// WithPromptDir overrides the prompt template directory.
func WithPromptDir(dir string) Option {
	return func(o *options) { o.promptDir = dir }
}

// WithoutAI skips the embedding, LLM and rerank services. Used by commands
// that only read stored data.
func WithoutAI() Option {
	return func(o *options) { o.skipAI = true }
}

// WithoutQueue runs upload syncs inline even when a broker is configured.
// The sync worker itself uses it.
func WithoutQueue() Option {
	return func(o *options) { o.skipQueue = true }
}

// New wires every component. Storage failures are fatal; an unreachable
// vector index, history cache or broker is reported in Warnings and the
// corresponding feature degrades.
func New(ctx context.Context, settings domain.Settings, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	app := &App{
		Settings: settings,
		Corpus:   filesystem.New(settings.Corpus.Dir),
	}

	if err := app.openStorage(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	app.openVectorIndex(ctx)

	if o.skipAI {
		app.AI = &ai.InitResult{}
	} else {
		app.AI = ai.Init(ctx, &app.Settings)
		app.Warnings = append(app.Warnings, app.AI.Warnings...)
	}
	app.closers = append(app.closers, func() error { app.AI.Close(); return nil })

	prompts, err := file.NewPromptStore(o.promptDir)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("prompt store: %w", err)
	}
	app.Prompts = prompts

	app.openHistory(ctx)
	if !o.skipQueue {
		app.openQueue(ctx)
	}

	if err := app.buildServices(); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) openStorage(ctx context.Context) error {
	s := a.Settings.Storage
	switch s.Backend {
	case domain.StorageMongo:
		store, err := mongo.NewStore(ctx, mongo.Config{URI: s.MongoURI, Database: s.MongoDatabase})
		if err != nil {
			return fmt.Errorf("open mongo storage: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.Stores = Stores{
			Reports: store.ReportStore(),
			Chunks:  store.ChunkStore(),
			Tables:  store.TableStore(),
			Blobs:   store.BlobStore(),
			Runs:    store.SyncRunStore(),
		}
	case domain.StorageMemory:
		a.Stores = Stores{
			Reports: memory.NewReportStore(),
			Chunks:  memory.NewChunkStore(),
			Tables:  memory.NewTableStore(),
			Blobs:   memory.NewBlobStore(),
			Runs:    memory.NewSyncRunStore(),
		}
	default:
		store, err := sqlite.NewStore(s.DataDir)
		if err != nil {
			return fmt.Errorf("open sqlite storage: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.Stores = Stores{
			Reports: store.ReportStore(),
			Chunks:  store.ChunkStore(),
			Tables:  store.TableStore(),
			Blobs:   store.BlobStore(),
			Runs:    store.SyncRunStore(),
		}
	}
	return nil
}

func (a *App) openVectorIndex(ctx context.Context) {
	v := a.Settings.VectorIndex
	var index driven.VectorIndex
	switch v.Backend {
	case domain.VectorPGVector:
		pg, err := pgvector.New(ctx, pgvector.Config{DatabaseURL: v.DatabaseURL, Table: v.Collection})
		if err != nil {
			a.warn(fmt.Sprintf("%v: %v", domain.ErrVectorIndexUnavailable, err))
			return
		}
		index = pg
	case domain.VectorMemory:
		index = memory.NewVectorIndex()
	default:
		index = qdrant.New(qdrant.Config{URL: v.URL, APIKey: v.APIKey, Collection: v.Collection})
	}
	a.VectorIndex = index
	a.closers = append(a.closers, index.Close)
}

func (a *App) openHistory(ctx context.Context) {
	h := a.Settings.History
	if h.RedisAddr != "" {
		store, err := redis.New(ctx, redis.Config{
			Addr:     h.RedisAddr,
			Password: h.RedisPassword,
			DB:       h.RedisDB,
			TTL:      h.TTL,
			MaxTurns: h.MaxTurns,
		})
		if err == nil {
			a.History = store
			a.closers = append(a.closers, store.Close)
			return
		}
		a.warn(fmt.Sprintf("history cache disabled, keeping conversations in memory: %v", err))
	}
	a.History = memory.NewHistoryStore(h.MaxTurns)
}

func (a *App) openQueue(ctx context.Context) {
	q := a.Settings.Queue
	if q.AMQPURL == "" {
		return
	}
	conn, err := rabbitmq.Dial(ctx, q.AMQPURL)
	if err != nil {
		a.warn(fmt.Sprintf("sync queue disabled, uploads sync inline: %v", err))
		return
	}
	publisher := rabbitmq.NewPublisher(conn, q.Queue)
	a.Queue = publisher
	a.closers = append(a.closers, publisher.Close)
}

func (a *App) buildServices() error {
	s := a.Settings
	retry := services.RetryPolicy{Attempts: s.Sync.Retries, Backoff: s.Sync.Backoff}

	engine, err := services.NewSyncEngine(services.SyncDeps{
		Corpus:         a.Corpus,
		Extractor:      pdf.New(pdf.WithTablesDir(s.Corpus.TablesDir)),
		Blobs:          a.Stores.Blobs,
		Reports:        a.Stores.Reports,
		Chunks:         a.Stores.Chunks,
		Tables:         a.Stores.Tables,
		Runs:           a.Stores.Runs,
		Chunker:        chunker.New(chunker.WithMaxLength(s.Chunking.MaxLength), chunker.WithTableThreshold(s.Chunking.TableThreshold)),
		TableExtractor: table.Extractor{},
		VectorIndex:    a.VectorIndex,
		Embedding:      a.AI.EmbeddingService,
	},
		services.WithWorkers(s.Sync.Workers),
		services.WithBatchSize(s.Sync.BatchSize),
		services.WithRetryPolicy(retry),
	)
	if err != nil {
		return fmt.Errorf("build sync engine: %w", err)
	}
	a.Sync = engine

	a.Retriever = services.NewHybridRetriever(a.Stores.Tables, a.VectorIndex, a.AI.EmbeddingService, a.AI.Reranker)
	a.Retriever.SetRetryPolicy(retry)

	a.Query = services.NewQueryService(
		a.Retriever,
		a.AI.LLMService,
		services.NewPromptAssembler(a.Prompts),
		services.WithHistoryStore(a.History),
		services.WithReportBaseURL(s.Server.ReportBaseURL),
		services.WithChatOptions(driven.ChatOptions{MaxTokens: s.LLM.MaxTokens, Temperature: s.LLM.Temperature}),
		services.WithMaxHistoryTurns(s.History.MaxTurns),
	)

	a.Ingest = services.NewIngestService(a.Corpus, a.Sync, a.Queue)
	return nil
}

func (a *App) warn(msg string) {
	logger.Warn("%s", msg)
	a.Warnings = append(a.Warnings, msg)
}

// Close releases every opened resource, in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
