package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an exact cosine-similarity index held in memory.
// It scans every point on search, which is fine for tests and small corpora.
type VectorIndex struct {
	mu     sync.RWMutex
	exists bool
	dim    int
	points map[uint64]domain.VectorPoint
}

// NewVectorIndex creates an index without a collection.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{}
}

// CollectionExists reports whether the collection was created.
func (v *VectorIndex) CollectionExists(_ context.Context) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.exists, nil
}

// CreateCollection creates an empty collection for vectors of size dim.
func (v *VectorIndex) CreateCollection(_ context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", domain.ErrInvalidInput, dim)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.exists {
		return fmt.Errorf("%w: collection already exists", domain.ErrInvalidInput)
	}
	v.exists = true
	v.dim = dim
	v.points = make(map[uint64]domain.VectorPoint)
	return nil
}

// DeleteCollection drops the collection and its points.
func (v *VectorIndex) DeleteCollection(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.exists = false
	v.dim = 0
	v.points = nil
	return nil
}

// Upsert inserts or replaces points.
func (v *VectorIndex) Upsert(_ context.Context, points []domain.VectorPoint) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.exists {
		return fmt.Errorf("%w: collection does not exist", domain.ErrNotFound)
	}
	for _, p := range points {
		if len(p.Vector) != v.dim {
			return fmt.Errorf("%w: point %d has %d dimensions, collection has %d",
				domain.ErrDimensionMismatch, p.ID, len(p.Vector), v.dim)
		}
	}
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		v.points[p.ID] = p
	}
	return nil
}

// Search returns the k points closest to vector by cosine similarity.
// Ties are broken by point id.
func (v *VectorIndex) Search(_ context.Context, vector []float32, k int) ([]domain.VectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.exists {
		return nil, fmt.Errorf("%w: collection does not exist", domain.ErrNotFound)
	}
	if len(vector) != v.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d",
			domain.ErrDimensionMismatch, len(vector), v.dim)
	}

	hits := make([]domain.VectorHit, 0, len(v.points))
	for id, p := range v.points {
		hits = append(hits, domain.VectorHit{ID: id, Score: Cosine(vector, p.Vector), Payload: p.Payload})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close is a no-op.
func (v *VectorIndex) Close() error {
	return nil
}

// Len returns the number of stored points.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.points)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
