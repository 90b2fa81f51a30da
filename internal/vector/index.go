package vector

import (
	"errors"
	"fmt"
	"sort"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// FlatIndex is an exhaustive nearest-neighbour index: every search scans every
// stored vector and ranks by squared L2 distance. Ids are insertion positions.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

type Hit struct {
	ID       int
	Distance float32
}

func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

func (x *FlatIndex) Dim() int { return x.dim }

func (x *FlatIndex) Len() int { return len(x.vectors) }

// Add appends vectors; ids continue from the current length.
func (x *FlatIndex) Add(vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("add vector %d: %w (got %d want %d)", i, ErrDimensionMismatch, len(v), x.dim)
		}
	}
	for _, v := range vectors {
		x.vectors = append(x.vectors, append([]float32(nil), v...))
	}
	return nil
}

// Search returns up to k hits ordered nearest first. Equal distances keep
// insertion order.
func (x *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("search: %w (got %d want %d)", ErrDimensionMismatch, len(query), x.dim)
	}
	if k <= 0 || len(x.vectors) == 0 {
		return []Hit{}, nil
	}
	hits := make([]Hit, 0, len(x.vectors))
	for id, v := range x.vectors {
		hits = append(hits, Hit{ID: id, Distance: squaredL2(query, v)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
