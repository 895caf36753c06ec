// Package tei provides a cross-encoder reranker backed by a Text Embeddings
// Inference server (POST /rerank), for example serving
// cross-encoder/ms-marco-MiniLM-L-6-v2.
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/ratelimit"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Default configuration values.
const (
	DefaultModel   = "cross-encoder/ms-marco-MiniLM-L-6-v2"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the reranker.
type Config struct {
	// URL is the server base URL (required), e.g. http://localhost:8080.
	URL string

	// Model is reported by ModelName; the server decides which model runs.
	Model string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// Limiter throttles requests. Nil means unlimited.
	Limiter *ratelimit.Limiter
}

// Reranker scores (query, text) pairs over HTTP.
type Reranker struct {
	client  *http.Client
	url     string
	model   string
	apiKey  string
	limiter *ratelimit.Limiter
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// New creates a reranker.
func New(cfg Config) (*Reranker, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("tei: %w: URL is required", domain.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Reranker{
		client:  &http.Client{Timeout: cfg.Timeout},
		url:     cfg.URL,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		limiter: cfg.Limiter,
	}, nil
}

// Score returns raw cross-encoder logits, one per text, in input order.
// The server answers sorted by score; results are mapped back by index.
func (r *Reranker) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts, RawScores: true, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		r.limiter.Backoff(ratelimit.ParseRetryAfter(resp.Header.Get("Retry-After")))
		return nil, fmt.Errorf("tei: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tei error (status %d): %s", resp.StatusCode, string(msg))
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("tei: got %d scores for %d texts", len(results), len(texts))
	}

	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(texts) || seen[res.Index] {
			return nil, fmt.Errorf("tei: invalid result index %d", res.Index)
		}
		seen[res.Index] = true
		scores[res.Index] = res.Score
	}
	return scores, nil
}

// ModelName returns the configured cross-encoder name.
func (r *Reranker) ModelName() string {
	return r.model
}

// Close releases resources.
func (r *Reranker) Close() error {
	return nil
}
