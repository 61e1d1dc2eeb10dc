// Package vectorindex implements exact nearest-neighbour search over the
// directory embeddings.
package vectorindex

import (
	"fmt"
	"sort"

	"github.com/DreamCats/hospitalvoice/internal/embedding"
)

// Neighbor is one search hit: the row position of the vector and its
// squared L2 distance to the query.
type Neighbor struct {
	Position int
	Distance float32
}

// Flat is a brute-force L2 index. Rows keep the order they were built
// with, so a Neighbor's Position addresses the record store directly.
type Flat struct {
	dim     int
	vectors [][]float32
}

// Build creates an index over embeddings. All embeddings must share one
// dimension; callers normalize them before building.
func Build(embeddings [][]float32) (*Flat, error) {
	if len(embeddings) == 0 {
		return &Flat{}, nil
	}

	dim := len(embeddings[0])
	if dim == 0 {
		return nil, fmt.Errorf("embedding 0 is empty")
	}
	for i, v := range embeddings {
		if len(v) != dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), dim)
		}
	}

	return &Flat{dim: dim, vectors: embeddings}, nil
}

// Len returns the number of indexed vectors
func (f *Flat) Len() int {
	return len(f.vectors)
}

// Dimension returns the vector size, 0 for an empty index
func (f *Flat) Dimension() int {
	return f.dim
}

// Search returns up to k neighbours of query ordered by ascending distance.
// Ties keep row order.
func (f *Flat) Search(query []float32, k int) ([]Neighbor, error) {
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), f.dim)
	}

	hits := make([]Neighbor, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Neighbor{Position: i, Distance: embedding.SquaredL2Distance(query, v)}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
