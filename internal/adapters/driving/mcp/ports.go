package mcp

import (
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driving"
)

// Ports aggregates the services the MCP server exposes.
type Ports struct {
	// Retriever backs search_chunks and search_tables.
	Retriever driving.Retriever

	// Query backs the ask tool. Optional.
	Query driving.QueryService

	// Sync backs the sync tool. Optional.
	Sync driving.SyncEngine

	// Reports backs the report resources. Optional.
	Reports driven.ReportStore
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	return nil
}
