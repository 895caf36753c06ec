package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driving"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

var pdfMagic = []byte("%PDF-")

// IngestService stores uploaded PDFs in the corpus and brings the knowledge
// base up to date, either inline or through the sync queue.
type IngestService struct {
	corpus driven.Corpus
	engine driving.SyncEngine
	queue  driven.SyncQueue
	now    func() time.Time
}

// NewIngestService creates an ingest service. When queue is nil the sync
// runs inline on every upload.
func NewIngestService(corpus driven.Corpus, engine driving.SyncEngine, queue driven.SyncQueue) *IngestService {
	return &IngestService{
		corpus: corpus,
		engine: engine,
		queue:  queue,
		now:    time.Now,
	}
}

// Upload validates and stores a PDF. An existing document with the same
// name is replaced and re-processed by the following sync.
func (s *IngestService) Upload(ctx context.Context, name string, data []byte) (*domain.UploadResult, error) {
	name, err := CleanReportName(name)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", domain.ErrInvalidInput)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, fmt.Errorf("%w: %s is not a PDF document", domain.ErrUnsupportedType, name)
	}

	existed, err := s.corpus.Exists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check corpus: %w", err)
	}
	if err := s.corpus.Write(ctx, name, data); err != nil {
		return nil, fmt.Errorf("store %s: %w", name, err)
	}
	result := &domain.UploadResult{Name: name, Replaced: existed}
	logger.Info("stored upload %s (%d bytes, replaced=%t)", name, len(data), existed)

	if s.queue != nil {
		req := domain.SyncRequest{
			ID:          uuid.NewString(),
			Reason:      "upload " + name,
			RequestedAt: s.now().UTC(),
		}
		err := s.queue.Publish(ctx, req)
		if err == nil {
			result.Queued = true
			return result, nil
		}
		logger.Warn("queue sync for %s, syncing inline: %v", name, err)
	}

	run, err := s.engine.Sync(ctx)
	if err != nil {
		return result, fmt.Errorf("sync after upload: %w", err)
	}
	result.Run = run
	if reason, failed := run.Failed[name]; failed {
		return result, fmt.Errorf("%w: %s: %s", domain.ErrExtractionFailed, name, reason)
	}
	return result, nil
}

// CleanReportName reduces a client-supplied file name to a safe base name
// with a .pdf extension.
func CleanReportName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	name = filepath.Base(name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("%w: missing file name", domain.ErrInvalidInput)
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", fmt.Errorf("%w: %s is not a .pdf file", domain.ErrUnsupportedType, name)
	}
	return name, nil
}
