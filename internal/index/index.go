// Package index provides an exact inner-product nearest-neighbor index over
// L2-normalized vectors. Inner product over unit vectors equals cosine
// similarity, so ranking by dot product ranks by semantic closeness.
package index

import (
	"fmt"
	"sort"

	"github.com/docsift/docsift/internal/domain"
)

// Entry pairs a sentence id with its raw embedding vector.
type Entry struct {
	ID     int
	Vector []float32
}

// Hit is one ranked search result: the entry id and its cosine similarity.
type Hit struct {
	ID    int
	Score float32
}

// Index is an immutable-after-build brute-force index. Build fully, then
// publish; a built index is safe for concurrent readers.
type Index struct {
	dim     int
	ids     []int
	vectors [][]float32
}

// Build normalizes every entry vector and constructs the index. Zero and
// dimension-mismatched vectors are skipped: a zero vector cannot be
// normalized and would poison inner-product ranking.
func Build(dim int, entries []Entry) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dim)
	}

	ix := &Index{
		dim:     dim,
		ids:     make([]int, 0, len(entries)),
		vectors: make([][]float32, 0, len(entries)),
	}

	for _, e := range entries {
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("entry %d: vector dimension %d, index dimension %d",
				e.ID, len(e.Vector), dim)
		}
		v := make([]float32, dim)
		copy(v, e.Vector)
		if !domain.NormalizeL2(v) {
			continue
		}
		ix.ids = append(ix.ids, e.ID)
		ix.vectors = append(ix.vectors, v)
	}

	return ix, nil
}

// Size returns the number of indexed vectors.
func (ix *Index) Size() int { return len(ix.vectors) }

// Dimension returns the vector dimension.
func (ix *Index) Dimension() int { return ix.dim }

// Search returns the top-k entries by cosine similarity, descending score,
// ties broken by ascending id. The result length is min(topK, Size()).
// The query is normalized with the same L2 scheme as the indexed vectors.
func (ix *Index) Search(query []float32, topK int) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), ix.dim)
	}
	if topK <= 0 || len(ix.vectors) == 0 {
		return []Hit{}, nil
	}

	q := make([]float32, ix.dim)
	copy(q, query)
	if !domain.NormalizeL2(q) {
		return []Hit{}, nil
	}

	hits := make([]Hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = Hit{ID: ix.ids[i], Score: dot(q, v)}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
