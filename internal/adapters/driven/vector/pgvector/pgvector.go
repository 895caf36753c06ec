// Package pgvector provides a vector index adapter backed by PostgreSQL
// with the pgvector extension. The collection is one table.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// DefaultTable is used when no collection name is configured.
const DefaultTable = "rag_chunks"

// Config holds the database settings.
type Config struct {
	// DatabaseURL is a PostgreSQL connection string (required).
	DatabaseURL string

	// Table is the collection table name (default: rag_chunks).
	Table string

	// MaxConns bounds the pool (default: 10).
	MaxConns int32
}

// Index stores chunk vectors in a PostgreSQL table with a vector column.
type Index struct {
	pool  *pgxpool.Pool
	table string // sanitised identifier

	mu  sync.RWMutex
	dim int
}

// New connects to the database and verifies it answers.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%w: database URL is required", domain.ErrInvalidInput)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10
	}

	config, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	config.MaxConns = cfg.MaxConns
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Index{pool: pool, table: tableIdent(cfg.Table)}, nil
}

func tableIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// CollectionExists reports whether the table exists and remembers its dimension.
func (s *Index) CollectionExists(ctx context.Context) (bool, error) {
	var dim *int32
	err := s.pool.QueryRow(ctx,
		`SELECT a.atttypmod
		 FROM pg_attribute a
		 WHERE a.attrelid = to_regclass($1) AND a.attname = 'embedding'`,
		s.table,
	).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to inspect collection: %w", err)
	}
	if dim != nil {
		s.setDim(int(*dim))
	}
	return true, nil
}

// CreateCollection creates the table and its cosine HNSW index.
func (s *Index) CreateCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", domain.ErrInvalidInput, dim)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE %s (
			id BIGINT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			chunk_id TEXT NOT NULL,
			rapport TEXT NOT NULL,
			page INTEGER NOT NULL,
			content TEXT NOT NULL
		)`, s.table, dim),
		fmt.Sprintf(`CREATE INDEX ON %s USING hnsw (embedding vector_cosine_ops)`, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}
	s.setDim(dim)
	return nil
}

// DeleteCollection drops the table.
func (s *Index) DeleteCollection(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	s.setDim(0)
	return nil
}

// Upsert inserts or replaces points in one batch round-trip.
func (s *Index) Upsert(ctx context.Context, points []domain.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (id, embedding, chunk_id, rapport, page, content)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			chunk_id = EXCLUDED.chunk_id,
			rapport = EXCLUDED.rapport,
			page = EXCLUDED.page,
			content = EXCLUDED.content`, s.table)

	batch := &pgx.Batch{}
	for _, p := range points {
		if err := s.checkDim(len(p.Vector)); err != nil {
			return fmt.Errorf("point %d: %w", p.ID, err)
		}
		batch.Queue(query,
			int64(p.ID), pgvector.NewVector(p.Vector),
			p.Payload.ChunkID, p.Payload.Report, p.Payload.Page, p.Payload.Content,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert point %d: %w", points[i].ID, err)
		}
	}
	return nil
}

// Search returns the k nearest points. Score is cosine similarity.
func (s *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.VectorHit, error) {
	if k <= 0 {
		return []domain.VectorHit{}, nil
	}
	if err := s.checkDim(len(vector)); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, chunk_id, rapport, page, content, 1 - (embedding <=> $1) AS similarity
		 FROM %s
		 ORDER BY embedding <=> $1, id
		 LIMIT $2`, s.table),
		pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	hits := []domain.VectorHit{}
	for rows.Next() {
		var (
			id  int64
			hit domain.VectorHit
		)
		if err := rows.Scan(&id, &hit.Payload.ChunkID, &hit.Payload.Report,
			&hit.Payload.Page, &hit.Payload.Content, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		hit.ID = uint64(id)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Close closes the connection pool.
func (s *Index) Close() error {
	s.pool.Close()
	return nil
}

func (s *Index) setDim(dim int) {
	s.mu.Lock()
	s.dim = dim
	s.mu.Unlock()
}

func (s *Index) checkDim(n int) error {
	s.mu.RLock()
	dim := s.dim
	s.mu.RUnlock()
	if dim > 0 && n != dim {
		return fmt.Errorf("%w: got %d, collection has %d", domain.ErrDimensionMismatch, n, dim)
	}
	return nil
}
