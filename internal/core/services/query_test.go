package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/storage/memory"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
)

func TestQueryService_Ask(t *testing.T) {
	retriever := &stubRetriever{rc: testContext()}
	llm := &stubLLM{answer: "  Le trafic a augmenté de 12 %.  "}
	svc := NewQueryService(retriever, llm, nil)

	res := svc.Ask(context.Background(), domain.QueryRequest{Question: "  Quel est le trafic ?  "})

	require.True(t, res.OK(), res.Error)
	assert.Empty(t, res.Error)
	assert.Equal(t, "Le trafic a augmenté de 12 %.\n\n---\n**Rapports utilisés :**\n"+
		"- [A.pdf](http://localhost:5000/static/rapports/A.pdf)\n"+
		"- [B.pdf](http://localhost:5000/static/rapports/B.pdf)", res.Answer)
	assert.Equal(t, []string{"Quel est le trafic ?"}, retriever.questions)

	require.Len(t, llm.messages, 1)
	msgs := llm.messages[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, driven.DefaultPrompts[driven.PromptSystem], msgs[0].Content)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "**Question posée :**\nQuel est le trafic ?")
	assert.Equal(t, driven.ChatOptions{MaxTokens: 2000, Temperature: 0.4}, llm.opts[0])
}

func TestQueryService_Ask_EmptyQuestion(t *testing.T) {
	retriever := &stubRetriever{rc: testContext()}
	svc := NewQueryService(retriever, &stubLLM{answer: "x"}, nil)

	res := svc.Ask(context.Background(), domain.QueryRequest{Question: "  "})
	assert.False(t, res.OK())
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.Answer)
	assert.Empty(t, retriever.questions)
}

func TestQueryService_Ask_Errors(t *testing.T) {
	tests := []struct {
		name      string
		retriever *stubRetriever
		llm       driven.LLMService
	}{
		{
			name:      "no model",
			retriever: &stubRetriever{rc: testContext()},
			llm:       nil,
		},
		{
			name:      "retrieval fails",
			retriever: &stubRetriever{err: errors.New("vector search: boom")},
			llm:       &stubLLM{answer: "x"},
		},
		{
			name:      "model fails permanently",
			retriever: &stubRetriever{rc: testContext()},
			llm:       &stubLLM{err: errors.New("401 unauthorized")},
		},
		{
			name:      "model returns nothing",
			retriever: &stubRetriever{rc: &domain.RetrievalContext{}},
			llm:       &stubLLM{answer: "   "},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewQueryService(tt.retriever, tt.llm, nil).Ask(context.Background(),
				domain.QueryRequest{Question: "Trafic ?"})
			assert.False(t, res.OK())
			assert.True(t, strings.HasPrefix(res.Error, "Erreur interne : "), res.Error)
		})
	}
}

func TestQueryService_Ask_ModelUnavailable(t *testing.T) {
	llm := &stubLLM{err: fmt.Errorf("chat: %w: 503", domain.ErrServiceUnavailable)}
	svc := NewQueryService(&stubRetriever{rc: testContext()}, llm, nil,
		WithReportBaseURL("https://rapports.example.org/"))

	res := svc.Ask(context.Background(), domain.QueryRequest{Question: "Trafic ?"})

	require.True(t, res.OK())
	assert.True(t, strings.HasPrefix(res.Answer, driven.DefaultPrompts[driven.PromptUnavailable]))
	assert.Contains(t, res.Answer, "- [A.pdf](https://rapports.example.org/A.pdf)")
}

func TestQueryService_Ask_RetrievalUnavailable(t *testing.T) {
	retriever := &stubRetriever{err: fmt.Errorf("embed question: %w: vector index timeout", domain.ErrServiceUnavailable)}
	llm := &stubLLM{answer: "x"}
	svc := NewQueryService(retriever, llm, nil)

	res := svc.Ask(context.Background(), domain.QueryRequest{Question: "Trafic ?"})

	require.True(t, res.OK(), res.Error)
	assert.Equal(t, driven.DefaultPrompts[driven.PromptUnavailable], res.Answer)
	assert.Empty(t, llm.messages, "the answer model is not called without context")
}

func TestQueryService_Ask_VectorIndexTimeout(t *testing.T) {
	idx := seedIndex(t, 2)
	idx.searchErr = errors.New("context deadline exceeded")
	retriever, _ := newTestRetriever(nil, idx, nil)
	llm := &stubLLM{answer: "x"}

	res := NewQueryService(retriever, llm, nil).Ask(context.Background(), domain.QueryRequest{Question: "Trafic ?"})

	require.True(t, res.OK(), res.Error)
	assert.Equal(t, driven.DefaultPrompts[driven.PromptUnavailable], res.Answer)
}

func TestQueryService_Ask_SessionHistory(t *testing.T) {
	ctx := context.Background()
	history := memory.NewHistoryStore(10)
	require.NoError(t, history.Append(ctx, "s1", domain.HistoryTurn{Question: "Q précédente", Answer: "R précédente"}))

	llm := &stubLLM{answer: "Réponse."}
	svc := NewQueryService(&stubRetriever{rc: &domain.RetrievalContext{}}, llm, nil, WithHistoryStore(history))

	res := svc.Ask(ctx, domain.QueryRequest{Question: "Nouvelle question", SessionID: "s1"})
	require.True(t, res.OK())
	assert.Contains(t, llm.messages[0][1].Content, "- Q: Q précédente\n  A: R précédente\n")

	turns, err := history.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, domain.HistoryTurn{Question: "Nouvelle question", Answer: "Réponse."}, turns[1])
}

func TestQueryService_Ask_RequestHistoryWins(t *testing.T) {
	ctx := context.Background()
	history := memory.NewHistoryStore(10)
	require.NoError(t, history.Append(ctx, "s1", domain.HistoryTurn{Question: "stockée", Answer: "x"}))

	llm := &stubLLM{answer: "Réponse."}
	svc := NewQueryService(&stubRetriever{rc: &domain.RetrievalContext{}}, llm, nil, WithHistoryStore(history))

	res := svc.Ask(ctx, domain.QueryRequest{
		Question:  "Question",
		SessionID: "s1",
		History:   []domain.HistoryTurn{{Question: "fournie", Answer: "y"}},
	})
	require.True(t, res.OK())
	prompt := llm.messages[0][1].Content
	assert.Contains(t, prompt, "- Q: fournie")
	assert.NotContains(t, prompt, "stockée")
}

func TestQueryService_Ask_HistoryCapped(t *testing.T) {
	var turns []domain.HistoryTurn
	for i := 0; i < 5; i++ {
		turns = append(turns, domain.HistoryTurn{Question: fmt.Sprintf("q%d", i), Answer: "a"})
	}
	llm := &stubLLM{answer: "ok"}
	svc := NewQueryService(&stubRetriever{rc: &domain.RetrievalContext{}}, llm, nil, WithMaxHistoryTurns(2))

	res := svc.Ask(context.Background(), domain.QueryRequest{Question: "Question", History: turns})
	require.True(t, res.OK())
	prompt := llm.messages[0][1].Content
	assert.NotContains(t, prompt, "- Q: q2")
	assert.Contains(t, prompt, "- Q: q3")
	assert.Contains(t, prompt, "- Q: q4")
}
