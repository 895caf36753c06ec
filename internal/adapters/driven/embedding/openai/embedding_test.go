package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/ratelimit"
)

func TestNewEmbeddingService(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	svc, err := NewEmbeddingService(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, 1536, svc.Dimensions())

	svc, err = NewEmbeddingService(Config{APIKey: "k", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, svc.Dimensions())

	svc, err = NewEmbeddingService(Config{APIKey: "k", Model: "custom", Dimensions: 8})
	require.NoError(t, err)
	assert.Equal(t, 8, svc.Dimensions())
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"un", "deux"}, req.Input)
		assert.Equal(t, 2, req.Dimensions)

		// Out of order on purpose.
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.3,0.4],"index":1},{"embedding":[0.1,0.2],"index":0}]}`))
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{
		APIKey: "secret", BaseURL: server.URL, Model: "text-embedding-3-small", Dimensions: 2,
	})
	require.NoError(t, err)

	got, err := svc.EmbedBatch(context.Background(), []string{"un", "deux"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, got)

	empty, err := svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestEmbeddingService_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"api error", http.StatusBadRequest, `{"error":{"message":"bad input"}}`, nil},
		{"rate limited", http.StatusTooManyRequests, `{}`, domain.ErrRateLimited},
		{"dimension mismatch", http.StatusOK, `{"data":[{"embedding":[1,2,3],"index":0}]}`, domain.ErrDimensionMismatch},
		{"missing embeddings", http.StatusOK, `{"data":[]}`, nil},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			limiter := ratelimit.New(ratelimit.Config{})
			svc, err := NewEmbeddingService(Config{
				APIKey: "k", BaseURL: server.URL, Model: "m", Dimensions: 2, Limiter: limiter,
			})
			require.NoError(t, err)

			_, err = svc.Embed(context.Background(), "texte")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.status == http.StatusTooManyRequests {
				assert.False(t, limiter.Allow(), "429 must pause the limiter")
			}
		})
	}
}

func TestEmbeddingService_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	good, err := NewEmbeddingService(Config{APIKey: "good", BaseURL: server.URL})
	require.NoError(t, err)
	assert.NoError(t, good.Ping(context.Background()))

	bad, err := NewEmbeddingService(Config{APIKey: "bad", BaseURL: server.URL})
	require.NoError(t, err)
	assert.Error(t, bad.Ping(context.Background()))
	assert.NoError(t, bad.Close())
}
