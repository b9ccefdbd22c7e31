package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

// Dense is an in-memory vector index over the corpus artifact. Vectors
// are L2-normalized at load time so search is a single dot product per
// entry. The index is immutable after construction and safe for
// concurrent readers.
type Dense struct {
	entries []Entry
	vectors [][]float32
	dim     int
}

func NewDense(entries []Entry) (*Dense, error) {
	idx := &Dense{
		entries: entries,
		vectors: make([][]float32, 0, len(entries)),
	}
	for _, entry := range entries {
		if len(entry.Embedding) == 0 {
			return nil, fmt.Errorf("chunk %s has no embedding", entry.ChunkID)
		}
		if idx.dim == 0 {
			idx.dim = len(entry.Embedding)
		}
		if len(entry.Embedding) != idx.dim {
			return nil, fmt.Errorf("chunk %s embedding dimension %d, want %d", entry.ChunkID, len(entry.Embedding), idx.dim)
		}
		idx.vectors = append(idx.vectors, normalize(entry.Embedding))
	}
	return idx, nil
}

func (d *Dense) Search(ctx context.Context, vector []float32, topN int) ([]domain.RankedCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != d.dim {
		return nil, fmt.Errorf("query dimension %d, want %d", len(vector), d.dim)
	}
	if topN <= 0 || len(d.entries) == 0 {
		return nil, nil
	}

	query := normalize(vector)
	scored := make([]domain.RankedCandidate, 0, len(d.entries))
	for i, entry := range d.entries {
		scored = append(scored, domain.RankedCandidate{
			Passage:    entry.passage(),
			DenseScore: dot(query, d.vectors[i]),
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].DenseScore != scored[j].DenseScore {
			return scored[i].DenseScore > scored[j].DenseScore
		}
		return scored[i].Passage.ChunkID < scored[j].Passage.ChunkID
	})
	if topN < len(scored) {
		scored = scored[:topN]
	}
	return scored, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
