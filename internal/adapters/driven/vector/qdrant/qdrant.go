// Package qdrant provides a vector index adapter over the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultURL        = "http://localhost:6333"
	DefaultCollection = "rag_chunks"
	DefaultTimeout    = 15 * time.Second
)

// Config holds the Qdrant connection settings.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Index stores chunk vectors in one cosine-distance Qdrant collection.
type Index struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu  sync.RWMutex
	dim int // 0 until the collection is created or inspected
}

// New creates a Qdrant client. No request is made until the first call.
func New(cfg Config) *Index {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Index{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// CollectionExists reports whether the collection exists and remembers its size.
func (s *Index) CollectionExists(ctx context.Context) (bool, error) {
	var info collectionInfo
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, &info)
	if status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.setDim(info.Result.Config.Params.Vectors.Size)
	return true, nil
}

// CreateCollection creates the collection with cosine distance.
func (s *Index) CreateCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", domain.ErrInvalidInput, dim)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if _, err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
		return err
	}
	s.setDim(dim)
	return nil
}

// DeleteCollection drops the collection. A missing collection is not an error.
func (s *Index) DeleteCollection(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	s.setDim(0)
	return nil
}

type point struct {
	ID      uint64              `json:"id"`
	Vector  []float32           `json:"vector"`
	Payload domain.ChunkPayload `json:"payload"`
}

// Upsert writes a batch of points and waits for them to be indexed.
func (s *Index) Upsert(ctx context.Context, points []domain.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	body := struct {
		Points []point `json:"points"`
	}{Points: make([]point, len(points))}
	for i, p := range points {
		if err := s.checkDim(len(p.Vector)); err != nil {
			return fmt.Errorf("point %d: %w", p.ID, err)
		}
		body.Points[i] = point{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
	return err
}

// Search returns the k nearest points by cosine similarity.
func (s *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.VectorHit, error) {
	if k <= 0 {
		return []domain.VectorHit{}, nil
	}
	if err := s.checkDim(len(vector)); err != nil {
		return nil, err
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      uint64              `json:"id"`
			Score   float64             `json:"score"`
			Payload domain.ChunkPayload `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	hits := make([]domain.VectorHit, len(resp.Result))
	for i, r := range resp.Result {
		hits[i] = domain.VectorHit{ID: r.ID, Score: r.Score, Payload: r.Payload}
	}
	return hits, nil
}

// Close releases idle connections.
func (s *Index) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Index) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
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

// do sends a JSON request and decodes the response into out when non-nil.
// The HTTP status is returned alongside any error.
func (s *Index) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("qdrant: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("qdrant: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
		switch {
		case resp.StatusCode == http.StatusNotFound:
			err = fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		case resp.StatusCode == http.StatusBadRequest && strings.Contains(string(msg), "dimension"):
			err = fmt.Errorf("%w: %w", domain.ErrDimensionMismatch, err)
		}
		return resp.StatusCode, err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("qdrant: decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
