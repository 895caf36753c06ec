// Package mcp exposes the knowledge base to AI assistants over the Model
// Context Protocol: retrieval and answer tools plus report resources.
package mcp

import "errors"

// ErrMissingRetriever is returned when the retriever is not provided.
var ErrMissingRetriever = errors.New("mcp: retriever is required")
