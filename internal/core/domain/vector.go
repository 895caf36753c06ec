package domain

// ChunkPayload is the chunk data carried alongside a vector.
type ChunkPayload struct {
	ChunkID string `json:"chunk_id"`
	Report  string `json:"rapport"`
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// PayloadOf returns the payload mirroring a chunk.
func PayloadOf(c Chunk) ChunkPayload {
	return ChunkPayload{ChunkID: c.ID, Report: c.Report, Page: c.Page, Content: c.Content}
}

// VectorPoint is one chunk embedding in the vector index.
// IDs are positional and only stable within one index generation.
type VectorPoint struct {
	ID      uint64
	Vector  []float32
	Payload ChunkPayload
}

// VectorHit is a nearest-neighbour result.
type VectorHit struct {
	// ID is the point id.
	ID uint64

	// Score is the cosine similarity (higher is closer).
	Score float64

	// Payload is the stored chunk data.
	Payload ChunkPayload
}
