package knn

import (
	"fmt"

	"github.com/sanonone/contigraph/pkg/core/distance"
	"github.com/sanonone/contigraph/pkg/core/types"
)

// Searcher is the capability the neighbor graph builder needs from an index.
// Vectors receive consecutive ids starting at 0 in insertion order. Once all
// vectors have been added, Search must be safe for concurrent use.
type Searcher interface {
	Add(vector []float32) (uint32, error)
	// Search returns up to k candidates ordered by ascending squared distance,
	// ties broken by ascending id.
	Search(query []float32, k int) ([]types.Candidate, error)
	Len() int
}

// Flat is an exact brute force searcher. Every query scans the full set.
type Flat struct {
	dim     int
	vectors [][]float32
	distFn  distance.DistanceFuncF32
}

// NewFlat creates an empty exact searcher.
func NewFlat() *Flat {
	return &Flat{distFn: distance.SquaredEuclidean()}
}

// Add appends a vector. The slice is retained and must not be modified afterwards.
func (f *Flat) Add(vector []float32) (uint32, error) {
	if len(f.vectors) == 0 {
		f.dim = len(vector)
	} else if len(vector) != f.dim {
		return 0, fmt.Errorf("flat: vector dimension %d, index dimension %d", len(vector), f.dim)
	}
	f.vectors = append(f.vectors, vector)
	return uint32(len(f.vectors) - 1), nil
}

// Search scans every stored vector and keeps the k best in a bounded max-heap.
func (f *Flat) Search(query []float32, k int) ([]types.Candidate, error) {
	if k <= 0 || len(f.vectors) == 0 {
		return []types.Candidate{}, nil
	}
	results := NewMaxHeap(k + 1)
	for i, v := range f.vectors {
		d, err := f.distFn(query, v)
		if err != nil {
			return nil, err
		}
		c := types.Candidate{Id: uint32(i), Distance: d}
		if results.Len() < k {
			results.PushCandidate(c)
			continue
		}
		if c.Less(results.Peek()) {
			results.PopCandidate()
			results.PushCandidate(c)
		}
	}
	return results.Sorted(), nil
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	return len(f.vectors)
}
