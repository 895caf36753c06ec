package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.chatbot/data/rag.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".chatbot", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "rag.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ReportStore returns a ReportStore interface backed by this store.
func (s *Store) ReportStore() driven.ReportStore {
	return &reportStore{store: s}
}

// ChunkStore returns a ChunkStore interface backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// TableStore returns a TableStore interface backed by this store.
func (s *Store) TableStore() driven.TableStore {
	return &tableStore{store: s}
}

// BlobStore returns a BlobStore interface backed by this store.
func (s *Store) BlobStore() driven.BlobStore {
	return &blobStore{store: s}
}

// SyncRunStore returns a SyncRunStore interface backed by this store.
func (s *Store) SyncRunStore() driven.SyncRunStore {
	return &syncRunStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ==================== Report Store ====================

// reportStore implements driven.ReportStore.
type reportStore struct {
	store *Store
}

var _ driven.ReportStore = (*reportStore)(nil)

// SaveReport inserts or replaces a report in one statement.
func (s *reportStore) SaveReport(ctx context.Context, report *domain.Report) error {
	unitsJSON, err := json.Marshal(report.Units)
	if err != nil {
		return fmt.Errorf("marshalling units: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO reports (name, fingerprint, units, extracted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			units = excluded.units,
			extracted_at = excluded.extracted_at
	`, report.Name, report.Fingerprint, string(unitsJSON), report.ExtractedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by name.
func (s *reportStore) GetReport(ctx context.Context, name string) (*domain.Report, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT name, fingerprint, units, extracted_at FROM reports WHERE name = ?
	`, name)

	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ListReports returns every report ordered by name.
func (s *reportStore) ListReports(ctx context.Context) ([]domain.Report, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT name, fingerprint, units, extracted_at FROM reports ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	reports := []domain.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return reports, nil
}

// DeleteReports removes the named reports.
func (s *reportStore) DeleteReports(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			if _, err := tx.ExecContext(ctx, "DELETE FROM reports WHERE name = ?", name); err != nil {
				return fmt.Errorf("deleting report %s: %w", name, err)
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var report domain.Report
	var unitsJSON string
	var extractedAt sql.NullTime
	if err := row.Scan(&report.Name, &report.Fingerprint, &unitsJSON, &extractedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning report: %w", err)
	}
	if err := json.Unmarshal([]byte(unitsJSON), &report.Units); err != nil {
		return nil, fmt.Errorf("unmarshalling units: %w", err)
	}
	if extractedAt.Valid {
		report.ExtractedAt = extractedAt.Time
	}
	return &report, nil
}

// ==================== Chunk Store ====================

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// ReplaceAll swaps the whole chunk collection in one transaction.
func (s *chunkStore) ReplaceAll(ctx context.Context, chunks []domain.Chunk) error {
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
			return fmt.Errorf("clearing chunks: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (position, id, report, page, kind, chunk_index, content)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing chunk insert: %w", err)
		}
		defer stmt.Close()

		for i, c := range chunks {
			if _, err := stmt.ExecContext(ctx, i, c.ID, c.Report, c.Page, string(c.Kind), c.Index, c.Content); err != nil {
				return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// List returns chunks in insertion order.
func (s *chunkStore) List(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, report, page, kind, chunk_index, content FROM chunks ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	chunks := []domain.Chunk{}
	for rows.Next() {
		var c domain.Chunk
		var kind string
		if err := rows.Scan(&c.ID, &c.Report, &c.Page, &kind, &c.Index, &c.Content); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Kind = domain.ContentKind(kind)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// Count returns the number of stored chunks.
func (s *chunkStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// ==================== Table Store ====================

// tableStore implements driven.TableStore.
type tableStore struct {
	store *Store
}

var _ driven.TableStore = (*tableStore)(nil)

// ReplaceAll swaps the whole table collection in one transaction.
func (s *tableStore) ReplaceAll(ctx context.Context, tables []domain.Table) error {
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM report_tables"); err != nil {
			return fmt.Errorf("clearing tables: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO report_tables (position, id, report, page, header, row_data)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing table insert: %w", err)
		}
		defer stmt.Close()

		for i, t := range tables {
			headerJSON, err := json.Marshal(t.Header)
			if err != nil {
				return fmt.Errorf("marshalling header: %w", err)
			}
			rowsJSON, err := json.Marshal(t.Rows)
			if err != nil {
				return fmt.Errorf("marshalling rows: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, i, t.ID, t.Report, t.Page, string(headerJSON), string(rowsJSON)); err != nil {
				return fmt.Errorf("inserting table %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// List returns tables in insertion order.
func (s *tableStore) List(ctx context.Context) ([]domain.Table, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, report, page, header, row_data FROM report_tables ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	defer rows.Close()

	tables := []domain.Table{}
	for rows.Next() {
		var t domain.Table
		var headerJSON, rowsJSON string
		if err := rows.Scan(&t.ID, &t.Report, &t.Page, &headerJSON, &rowsJSON); err != nil {
			return nil, fmt.Errorf("scanning table: %w", err)
		}
		if err := json.Unmarshal([]byte(headerJSON), &t.Header); err != nil {
			return nil, fmt.Errorf("unmarshalling header: %w", err)
		}
		if err := json.Unmarshal([]byte(rowsJSON), &t.Rows); err != nil {
			return nil, fmt.Errorf("unmarshalling rows: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tables: %w", err)
	}
	return tables, nil
}

// ==================== Blob Store ====================

// blobStore implements driven.BlobStore.
type blobStore struct {
	store *Store
}

var _ driven.BlobStore = (*blobStore)(nil)

// Put stores or replaces a blob.
func (s *blobStore) Put(ctx context.Context, name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO blobs (name, data, size, stored_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			size = excluded.size,
			stored_at = excluded.stored_at
	`, name, data, len(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving blob: %w", err)
	}
	return nil
}

// Get returns a blob's bytes.
func (s *blobStore) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.store.db.QueryRowContext(ctx, "SELECT data FROM blobs WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return data, nil
}

// Delete removes a blob.
func (s *blobStore) Delete(ctx context.Context, name string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM blobs WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

// Exists reports whether a blob is stored.
func (s *blobStore) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blobs WHERE name = ?", name).Scan(&n); err != nil {
		return false, fmt.Errorf("checking blob: %w", err)
	}
	return n > 0, nil
}

// ==================== Sync Run Store ====================

// syncRunStore implements driven.SyncRunStore.
type syncRunStore struct {
	store *Store
}

var _ driven.SyncRunStore = (*syncRunStore)(nil)

// SaveRun stores a run, replacing any run with the same ID.
func (s *syncRunStore) SaveRun(ctx context.Context, run *domain.SyncRun) error {
	summary, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshalling run: %w", err)
	}
	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, started_at, finished_at, summary)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			summary = excluded.summary
	`, run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), string(summary))
	if err != nil {
		return fmt.Errorf("saving sync run: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run.
func (s *syncRunStore) LastRun(ctx context.Context) (*domain.SyncRun, error) {
	var summary string
	err := s.store.db.QueryRowContext(ctx, `
		SELECT summary FROM sync_runs ORDER BY started_at DESC, rowid DESC LIMIT 1
	`).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading sync run: %w", err)
	}

	var run domain.SyncRun
	if err := json.Unmarshal([]byte(summary), &run); err != nil {
		return nil, fmt.Errorf("unmarshalling run: %w", err)
	}
	return &run, nil
}
