// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/embedding/openai"
	ollamallm "github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/llm/ollama"
	openaillm "github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/llm/openai"
	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/rerank/tei"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
	"github.com/ihssane2002/chatbot-entreprise/internal/ratelimit"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Reranker         driven.Reranker
	Warnings         []string // Non-fatal issues that disabled a service.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
	if r.Reranker != nil {
		r.Reranker.Close()
	}
}

// Init builds every configured AI service. The embedding service is pinged
// because sync cannot proceed without it; the LLM is not, so a temporarily
// busy provider still lets the server start. Failures become warnings and
// leave the corresponding service nil.
func Init(ctx context.Context, settings *domain.Settings) *InitResult {
	result := &InitResult{}

	embedding, err := CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}
	result.EmbeddingService = embedding

	llm, err := CreateLLMService(&settings.LLM)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%v: %v", domain.ErrLLMUnavailable, err))
	}
	result.LLMService = llm

	reranker, err := CreateReranker(&settings.Rerank)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("reranker disabled: %v", err))
	}
	result.Reranker = reranker

	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	return result
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// ValidateLLMConfig creates an LLM service and pings it once.
func ValidateLLMConfig(ctx context.Context, settings *domain.LLMSettings) error {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	limiter := ratelimit.New(ratelimit.Config{RequestsPerSecond: settings.RequestsPerSecond})
	dimensions := domain.EmbeddingDimensions()[settings.Model]

	switch settings.Provider {
	case domain.AIProviderOllama:
		if dimensions == 0 {
			dimensions = ollamaembed.DefaultDimensions
		}
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
			Limiter:    limiter,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
			Limiter:    limiter,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	limiter := ratelimit.New(ratelimit.Config{RequestsPerSecond: settings.RequestsPerSecond})

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Limiter: limiter,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Retries: settings.Retries,
			Backoff: settings.Backoff,
			Limiter: limiter,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

// CreateReranker creates the cross-encoder client. Returns nil when no
// endpoint is configured; retrieval then keeps vector order.
func CreateReranker(settings *domain.RerankSettings) (driven.Reranker, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	r, err := tei.New(tei.Config{
		URL:    settings.URL,
		Model:  settings.Model,
		APIKey: settings.APIKey,
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}
