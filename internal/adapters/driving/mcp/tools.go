package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

// SearchChunksInput is the input schema for the search_chunks tool.
type SearchChunksInput struct {
	Question   string `json:"question" jsonschema:"the question to find report passages for"`
	Candidates int    `json:"candidates,omitempty" jsonschema:"vector candidates before reranking (default 50)"`
}

// SearchChunksOutput is the output schema for the search_chunks tool.
type SearchChunksOutput struct {
	Chunks []ChunkOutput `json:"chunks"`
	Count  int           `json:"count"`
}

// ChunkOutput is one retrieved passage.
type ChunkOutput struct {
	ChunkID     string  `json:"chunk_id"`
	Report      string  `json:"rapport"`
	Page        int     `json:"page"`
	Content     string  `json:"content"`
	VectorScore float64 `json:"vector_score"`
	RerankScore float64 `json:"rerank_score"`
}

// SearchTablesInput is the input schema for the search_tables tool.
type SearchTablesInput struct {
	Question string `json:"question" jsonschema:"the question whose words are matched against tables"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of tables (default 5)"`
}

// SearchTablesOutput is the output schema for the search_tables tool.
type SearchTablesOutput struct {
	Tables []domain.TableMatch `json:"tables"`
	Count  int                 `json:"count"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question  string               `json:"question" jsonschema:"the question to answer from the reports"`
	History   []domain.HistoryTurn `json:"history,omitempty" jsonschema:"previous turns of the conversation, oldest first"`
	SessionID string               `json:"session_id,omitempty" jsonschema:"stored conversation to continue when history is empty"`
}

// SyncInput is the input schema for the sync tool.
type SyncInput struct {
	Rebuild bool `json:"rebuild,omitempty" jsonschema:"regenerate chunks, tables and vectors without rescanning the corpus"`
}

// SyncOutput summarises a sync run.
type SyncOutput struct {
	RunID      string            `json:"run_id"`
	Added      []string          `json:"added"`
	Changed    []string          `json:"changed"`
	Removed    []string          `json:"removed"`
	Unchanged  int               `json:"unchanged"`
	Failed     map[string]string `json:"failed,omitempty"`
	Rebuilt    bool              `json:"rebuilt"`
	Chunks     int               `json:"chunks"`
	Tables     int               `json:"tables"`
	Vectors    int               `json:"vectors"`
	DurationMS int64             `json:"duration_ms"`
}

func toSyncOutput(run *domain.SyncRun) SyncOutput {
	return SyncOutput{
		RunID:      run.ID,
		Added:      nonNil(run.Added),
		Changed:    nonNil(run.Changed),
		Removed:    nonNil(run.Removed),
		Unchanged:  len(run.Unchanged),
		Failed:     run.Failed,
		Rebuilt:    run.Rebuilt,
		Chunks:     run.Chunks,
		Tables:     run.Tables,
		Vectors:    run.Vectors,
		DurationMS: run.Duration().Milliseconds(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// registerTools registers the tools whose ports are configured.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_chunks",
		Description: "Find the report passages most relevant to a question",
	}, s.handleSearchChunks)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_tables",
		Description: "Find report tables sharing words with a question, with rows merged across nearby pages",
	}, s.handleSearchTables)

	if s.ports.Query != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question from the reports, with links to the reports used",
		}, s.handleAsk)
	}

	if s.ports.Sync != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "sync",
			Description: "Bring the knowledge base up to date with the report directory",
		}, s.handleSync)
	}
}

func (s *Server) handleSearchChunks(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchChunksInput,
) (*mcp.CallToolResult, SearchChunksOutput, error) {
	k := input.Candidates
	if k <= 0 {
		k = domain.DefaultChunkCandidates
	}
	chunks, err := s.ports.Retriever.SearchChunks(ctx, input.Question, k)
	if err != nil {
		return nil, SearchChunksOutput{}, err
	}
	out := SearchChunksOutput{Chunks: make([]ChunkOutput, len(chunks)), Count: len(chunks)}
	for i, c := range chunks {
		out.Chunks[i] = ChunkOutput{
			ChunkID:     c.ChunkID,
			Report:      c.Report,
			Page:        c.Page,
			Content:     c.Content,
			VectorScore: c.VectorScore,
			RerankScore: c.RerankScore,
		}
	}
	return nil, out, nil
}

func (s *Server) handleSearchTables(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchTablesInput,
) (*mcp.CallToolResult, SearchTablesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = domain.DefaultTableLimit
	}
	tables, err := s.ports.Retriever.SearchTables(ctx, input.Question, limit)
	if err != nil {
		return nil, SearchTablesOutput{}, err
	}
	if tables == nil {
		tables = []domain.TableMatch{}
	}
	return nil, SearchTablesOutput{Tables: tables, Count: len(tables)}, nil
}

// handleAsk reports answer failures as tool errors so the assistant sees them.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, domain.QueryResult, error) {
	result := s.ports.Query.Ask(ctx, domain.QueryRequest{
		Question:  input.Question,
		History:   input.History,
		SessionID: input.SessionID,
	})
	if !result.OK() {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: result.Error}},
		}, result, nil
	}
	return nil, result, nil
}

func (s *Server) handleSync(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SyncInput,
) (*mcp.CallToolResult, SyncOutput, error) {
	var (
		run *domain.SyncRun
		err error
	)
	if input.Rebuild {
		run, err = s.ports.Sync.Rebuild(ctx)
	} else {
		run, err = s.ports.Sync.Sync(ctx)
	}
	if errors.Is(err, domain.ErrSyncInProgress) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "a sync is already running"}},
		}, SyncOutput{}, nil
	}
	if err != nil {
		return nil, SyncOutput{}, fmt.Errorf("sync: %w", err)
	}
	return nil, toSyncOutput(run), nil
}
