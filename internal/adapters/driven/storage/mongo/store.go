// Package mongo provides MongoDB implementations of the report, chunk,
// table, blob and sync run stores. Raw PDFs live in a GridFS bucket.
package mongo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
)

// Collection and bucket names.
const (
	DefaultDatabase = "rag_db"

	reportsCollection = "knowledge"
	chunksCollection  = "chunks"
	tablesCollection  = "tables"
	runsCollection    = "sync_runs"
	blobBucket        = "pdfs"

	stagingSuffix = "_staging"
)

// Config holds the connection settings.
type Config struct {
	// URI is a MongoDB connection string (required).
	URI string

	// Database is the database name (default: rag_db).
	Database string

	// Timeout bounds connection and ping (default: 10s).
	Timeout time.Duration
}

// Store holds one client and hands out the store interfaces.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	bucket *gridfs.Bucket
}

// NewStore connects to MongoDB and verifies the server answers.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: mongo URI is required", domain.ErrInvalidInput)
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(blobBucket))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("opening gridfs bucket: %w", err)
	}

	return &Store{client: client, db: db, bucket: bucket}, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// ReportStore returns a ReportStore backed by the knowledge collection.
func (s *Store) ReportStore() driven.ReportStore {
	return &reportStore{coll: s.db.Collection(reportsCollection)}
}

// ChunkStore returns a ChunkStore backed by the chunks collection.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// TableStore returns a TableStore backed by the tables collection.
func (s *Store) TableStore() driven.TableStore {
	return &tableStore{store: s}
}

// BlobStore returns a BlobStore backed by GridFS.
func (s *Store) BlobStore() driven.BlobStore {
	return &blobStore{bucket: s.bucket}
}

// SyncRunStore returns a SyncRunStore backed by the sync_runs collection.
func (s *Store) SyncRunStore() driven.SyncRunStore {
	return &syncRunStore{coll: s.db.Collection(runsCollection)}
}

// replaceCollection swaps the contents of name for docs. Documents are
// written to a staging collection which is then renamed over the target,
// so readers see either the old or the new collection.
func (s *Store) replaceCollection(ctx context.Context, name string, docs []any) error {
	target := s.db.Collection(name)
	if len(docs) == 0 {
		if _, err := target.DeleteMany(ctx, bson.D{}); err != nil {
			return fmt.Errorf("clearing %s: %w", name, err)
		}
		return nil
	}

	staging := s.db.Collection(name + stagingSuffix)
	if err := staging.Drop(ctx); err != nil {
		return fmt.Errorf("dropping %s staging: %w", name, err)
	}
	if _, err := staging.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("inserting %s: %w", name, err)
	}

	dbName := s.db.Name()
	cmd := bson.D{
		{Key: "renameCollection", Value: dbName + "." + name + stagingSuffix},
		{Key: "to", Value: dbName + "." + name},
		{Key: "dropTarget", Value: true},
	}
	if err := s.client.Database("admin").RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("swapping %s: %w", name, err)
	}
	return nil
}

// ==================== Report Store ====================

type reportDoc struct {
	Name        string               `bson:"_id"`
	Fingerprint string               `bson:"fingerprint"`
	Units       []domain.ContentUnit `bson:"units"`
	ExtractedAt time.Time            `bson:"extracted_at"`
}

func toReportDoc(r *domain.Report) reportDoc {
	units := r.Units
	if units == nil {
		units = []domain.ContentUnit{}
	}
	return reportDoc{Name: r.Name, Fingerprint: r.Fingerprint, Units: units, ExtractedAt: r.ExtractedAt.UTC()}
}

func (d reportDoc) toDomain() domain.Report {
	return domain.Report{Name: d.Name, Fingerprint: d.Fingerprint, Units: d.Units, ExtractedAt: d.ExtractedAt}
}

type reportStore struct {
	coll *mongo.Collection
}

var _ driven.ReportStore = (*reportStore)(nil)

// SaveReport upserts the report keyed by name.
func (s *reportStore) SaveReport(ctx context.Context, report *domain.Report) error {
	doc := toReportDoc(report)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.Name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by name.
func (s *reportStore) GetReport(ctx context.Context, name string) (*domain.Report, error) {
	var doc reportDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	report := doc.toDomain()
	return &report, nil
}

// ListReports returns every report ordered by name.
func (s *reportStore) ListReports(ctx context.Context) ([]domain.Report, error) {
	cursor, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	var docs []reportDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding reports: %w", err)
	}
	reports := make([]domain.Report, len(docs))
	for i, d := range docs {
		reports[i] = d.toDomain()
	}
	return reports, nil
}

// DeleteReports removes the named reports.
func (s *reportStore) DeleteReports(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	if _, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": names}}); err != nil {
		return fmt.Errorf("deleting reports: %w", err)
	}
	return nil
}

// ==================== Chunk Store ====================

type chunkDoc struct {
	Position int    `bson:"_id"`
	ChunkID  string `bson:"chunk_id"`
	Report   string `bson:"rapport"`
	Page     int    `bson:"page"`
	Kind     string `bson:"type"`
	Index    int    `bson:"index"`
	Content  string `bson:"content"`
}

func toChunkDocs(chunks []domain.Chunk) []any {
	docs := make([]any, len(chunks))
	for i, c := range chunks {
		docs[i] = chunkDoc{
			Position: i,
			ChunkID:  c.ID,
			Report:   c.Report,
			Page:     c.Page,
			Kind:     string(c.Kind),
			Index:    c.Index,
			Content:  c.Content,
		}
	}
	return docs
}

func (d chunkDoc) toDomain() domain.Chunk {
	return domain.Chunk{
		ID:      d.ChunkID,
		Report:  d.Report,
		Page:    d.Page,
		Kind:    domain.ContentKind(d.Kind),
		Index:   d.Index,
		Content: d.Content,
	}
}

type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// ReplaceAll swaps the chunk collection.
func (s *chunkStore) ReplaceAll(ctx context.Context, chunks []domain.Chunk) error {
	return s.store.replaceCollection(ctx, chunksCollection, toChunkDocs(chunks))
}

// List returns chunks in insertion order.
func (s *chunkStore) List(ctx context.Context) ([]domain.Chunk, error) {
	coll := s.store.db.Collection(chunksCollection)
	cursor, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	var docs []chunkDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding chunks: %w", err)
	}
	chunks := make([]domain.Chunk, len(docs))
	for i, d := range docs {
		chunks[i] = d.toDomain()
	}
	return chunks, nil
}

// Count returns the number of stored chunks.
func (s *chunkStore) Count(ctx context.Context) (int, error) {
	n, err := s.store.db.Collection(chunksCollection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return int(n), nil
}

// ==================== Table Store ====================

type tableDoc struct {
	Position int        `bson:"_id"`
	TableID  string     `bson:"table_id"`
	Report   string     `bson:"rapport"`
	Page     int        `bson:"page"`
	Header   []string   `bson:"header"`
	Rows     [][]string `bson:"rows"`
}

func toTableDocs(tables []domain.Table) []any {
	docs := make([]any, len(tables))
	for i, t := range tables {
		docs[i] = tableDoc{Position: i, TableID: t.ID, Report: t.Report, Page: t.Page, Header: t.Header, Rows: t.Rows}
	}
	return docs
}

func (d tableDoc) toDomain() domain.Table {
	return domain.Table{ID: d.TableID, Report: d.Report, Page: d.Page, Header: d.Header, Rows: d.Rows}
}

type tableStore struct {
	store *Store
}

var _ driven.TableStore = (*tableStore)(nil)

// ReplaceAll swaps the table collection.
func (s *tableStore) ReplaceAll(ctx context.Context, tables []domain.Table) error {
	return s.store.replaceCollection(ctx, tablesCollection, toTableDocs(tables))
}

// List returns tables in insertion order.
func (s *tableStore) List(ctx context.Context) ([]domain.Table, error) {
	coll := s.store.db.Collection(tablesCollection)
	cursor, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	var docs []tableDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding tables: %w", err)
	}
	tables := make([]domain.Table, len(docs))
	for i, d := range docs {
		tables[i] = d.toDomain()
	}
	return tables, nil
}

// ==================== Blob Store ====================

type blobStore struct {
	bucket *gridfs.Bucket
}

var _ driven.BlobStore = (*blobStore)(nil)

type fileRef struct {
	ID primitive.ObjectID `bson:"_id"`
}

// Put uploads a new revision and removes older revisions of the same name.
func (s *blobStore) Put(ctx context.Context, name string, data []byte) error {
	id, err := s.bucket.UploadFromStream(name, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("uploading blob: %w", err)
	}
	refs, err := s.revisions(ctx, name)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if ref.ID == id {
			continue
		}
		if err := s.bucket.Delete(ref.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("deleting old blob revision: %w", err)
		}
	}
	return nil
}

// Get downloads the latest revision.
func (s *blobStore) Get(_ context.Context, name string) ([]byte, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(name)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return data, nil
}

// Delete removes every revision of name.
func (s *blobStore) Delete(ctx context.Context, name string) error {
	refs, err := s.revisions(ctx, name)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := s.bucket.Delete(ref.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("deleting blob: %w", err)
		}
	}
	return nil
}

// Exists reports whether any revision of name is stored.
func (s *blobStore) Exists(ctx context.Context, name string) (bool, error) {
	refs, err := s.revisions(ctx, name)
	if err != nil {
		return false, err
	}
	return len(refs) > 0, nil
}

func (s *blobStore) revisions(ctx context.Context, name string) ([]fileRef, error) {
	cursor, err := s.bucket.Find(bson.M{"filename": name})
	if err != nil {
		return nil, fmt.Errorf("finding blob: %w", err)
	}
	var refs []fileRef
	if err := cursor.All(ctx, &refs); err != nil {
		return nil, fmt.Errorf("decoding blob files: %w", err)
	}
	return refs, nil
}

// ==================== Sync Run Store ====================

type runDoc struct {
	ID        string         `bson:"_id"`
	StartedAt time.Time      `bson:"started_at"`
	Run       domain.SyncRun `bson:"run"`
}

type syncRunStore struct {
	coll *mongo.Collection
}

var _ driven.SyncRunStore = (*syncRunStore)(nil)

// SaveRun upserts the run keyed by ID.
func (s *syncRunStore) SaveRun(ctx context.Context, run *domain.SyncRun) error {
	doc := runDoc{ID: run.ID, StartedAt: run.StartedAt.UTC(), Run: *run}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": run.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving sync run: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run.
func (s *syncRunStore) LastRun(ctx context.Context) (*domain.SyncRun, error) {
	var doc runDoc
	err := s.coll.FindOne(ctx, bson.D{}, options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading sync run: %w", err)
	}
	return &doc.Run, nil
}
