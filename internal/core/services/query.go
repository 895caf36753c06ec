package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driving"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// DefaultReportBaseURL is where the HTTP server exposes the corpus PDFs.
const DefaultReportBaseURL = "http://localhost:5000/static/rapports/"

// errEmptyQuestion is reported when the question is blank.
const errEmptyQuestion = "Aucune question fournie."

// QueryService answers questions from retrieved report context.
type QueryService struct {
	retriever     driving.Retriever
	llm           driven.LLMService
	assembler     *PromptAssembler
	history       driven.HistoryStore
	reportBaseURL string
	chatOptions   driven.ChatOptions
	maxTurns      int
}

// QueryOption configures a QueryService.
type QueryOption func(*QueryService)

// WithHistoryStore enables session history lookups for requests without history.
func WithHistoryStore(store driven.HistoryStore) QueryOption {
	return func(s *QueryService) {
		s.history = store
	}
}

// WithReportBaseURL sets the base URL of the report links.
func WithReportBaseURL(baseURL string) QueryOption {
	return func(s *QueryService) {
		if baseURL != "" {
			s.reportBaseURL = baseURL
		}
	}
}

// WithChatOptions sets the generation parameters.
func WithChatOptions(opts driven.ChatOptions) QueryOption {
	return func(s *QueryService) {
		s.chatOptions = opts
	}
}

// WithMaxHistoryTurns caps how many previous turns go into the prompt.
func WithMaxHistoryTurns(n int) QueryOption {
	return func(s *QueryService) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// NewQueryService creates a query service. The LLM may be nil, in which case
// every question fails with an internal error.
func NewQueryService(
	retriever driving.Retriever,
	llm driven.LLMService,
	assembler *PromptAssembler,
	opts ...QueryOption,
) *QueryService {
	if assembler == nil {
		assembler = NewPromptAssembler(nil)
	}
	s := &QueryService{
		retriever:     retriever,
		llm:           llm,
		assembler:     assembler,
		reportBaseURL: DefaultReportBaseURL,
		chatOptions:   driven.ChatOptions{MaxTokens: 2000, Temperature: 0.4},
		maxTurns:      10,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask retrieves context for the question, generates an answer and appends
// links to the reports it drew on. It never returns an empty result.
func (s *QueryService) Ask(ctx context.Context, req domain.QueryRequest) domain.QueryResult {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return domain.QueryResult{Error: errEmptyQuestion}
	}
	if s.llm == nil {
		return internalError(domain.ErrLLMUnavailable)
	}
	if s.retriever == nil {
		return internalError(fmt.Errorf("%w: retriever not configured", domain.ErrServiceUnavailable))
	}

	history := s.loadHistory(ctx, req)

	rc, err := s.retriever.Retrieve(ctx, question)
	switch {
	case errors.Is(err, domain.ErrServiceUnavailable):
		logger.Warn("retrieval backend unavailable: %v", err)
		return domain.QueryResult{Answer: s.assembler.Unavailable()}
	case err != nil:
		logger.Error("retrieve context: %v", err)
		return internalError(err)
	}

	prompt := s.assembler.Build(question, history, rc)
	logger.Debug("prompt for %q: %d chars, %d chunks, %d tables",
		question, len(prompt), len(rc.Chunks), len(rc.Tables))

	answer, err := s.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: s.assembler.System()},
		{Role: "user", Content: prompt},
	}, s.chatOptions)
	switch {
	case errors.Is(err, domain.ErrServiceUnavailable):
		logger.Warn("answer model unavailable: %v", err)
		answer = s.assembler.Unavailable()
	case err != nil:
		logger.Error("generate answer: %v", err)
		return internalError(err)
	}

	answer = AppendReportsUsed(answer, rc.Reports(), s.reportBaseURL)
	if strings.TrimSpace(answer) == "" {
		return internalError(errors.New("empty answer"))
	}

	s.saveTurn(ctx, req.SessionID, domain.HistoryTurn{Question: question, Answer: answer})
	return domain.QueryResult{Answer: answer}
}

func (s *QueryService) loadHistory(ctx context.Context, req domain.QueryRequest) []domain.HistoryTurn {
	history := req.History
	if len(history) == 0 && req.SessionID != "" && s.history != nil {
		stored, err := s.history.Get(ctx, req.SessionID)
		if err != nil {
			logger.Warn("load history of session %s: %v", req.SessionID, err)
		}
		history = stored
	}
	if len(history) > s.maxTurns {
		history = history[len(history)-s.maxTurns:]
	}
	return history
}

func (s *QueryService) saveTurn(ctx context.Context, sessionID string, turn domain.HistoryTurn) {
	if sessionID == "" || s.history == nil {
		return
	}
	if err := s.history.Append(ctx, sessionID, turn); err != nil {
		logger.Warn("save history of session %s: %v", sessionID, err)
	}
}

func internalError(err error) domain.QueryResult {
	return domain.QueryResult{Error: "Erreur interne : " + err.Error()}
}
