package domain

import "strings"

// Retrieval defaults.
const (
	// DefaultChunkCandidates is the number of vector candidates reranked per question.
	DefaultChunkCandidates = 50

	// MaxRerankedChunks is the number of chunks kept after reranking.
	MaxRerankedChunks = 10

	// DefaultTableLimit is the number of scored tables expanded per question.
	DefaultTableLimit = 5

	// TableMergePageWindow is the page distance within which split tables are merged.
	TableMergePageWindow = 2
)

// ScoredChunk is a retrieved chunk with its scores.
type ScoredChunk struct {
	ChunkPayload

	// VectorScore is the similarity returned by the vector index.
	VectorScore float64 `json:"vector_score"`

	// RerankScore is the cross-encoder relevance. Equal to VectorScore
	// when no reranker is configured.
	RerankScore float64 `json:"rerank_score"`
}

// TableMatch is one logical table returned by table search,
// with rows merged from nearby pages.
type TableMatch struct {
	Report string     `json:"rapport"`
	Page   int        `json:"page"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`

	// Score is the number of question tokens found in the table text.
	Score int `json:"score"`
}

// RetrievalContext is everything retrieved for one question.
type RetrievalContext struct {
	Chunks []ScoredChunk
	Tables []TableMatch
}

// Reports returns the distinct trimmed report names referenced by the context.
func (c *RetrievalContext) Reports() []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for i := range c.Chunks {
		add(strings.TrimSpace(c.Chunks[i].Report))
	}
	for i := range c.Tables {
		add(strings.TrimSpace(c.Tables[i].Report))
	}
	return names
}
