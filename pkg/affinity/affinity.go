// Package affinity derives the two sparse matrices the labeling stages work
// on from the neighbor graph: the precomputed distance matrix consumed by the
// density clusterer and the Gaussian weight matrix consumed by propagation.
//
// Both matrices are immutable. Whenever the entity set changes they are
// rebuilt from the new graph.
package affinity

import (
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/sanonone/contigraph/pkg/core/workers"
	"github.com/sanonone/contigraph/pkg/graph"
)

// ErrInvalidSigma is returned for a non-positive kernel bandwidth.
var ErrInvalidSigma = errors.New("sigma must be positive")

// Gaussian returns the kernel weight exp(-d / (2 sigma^2)) of a squared distance.
func Gaussian(d, sigma float64) float64 {
	return math.Exp(-d / (2 * sigma * sigma))
}

// Affinity bundles the matrices built from one graph.
type Affinity struct {
	// Distance holds raw squared distances on edges and +Inf elsewhere.
	Distance *Matrix
	// Weight holds Gaussian kernel weights on edges and 0 elsewhere.
	Weight *Matrix
}

// Builder builds affinity matrices.
type Builder struct {
	Sigma   float64
	Workers int
}

// Build converts the outgoing edges of g into both matrices. Row i is the
// neighbor list of entity i; the matrices are not symmetrized.
func (b Builder) Build(g *graph.Graph) (*Affinity, error) {
	if b.Sigma <= 0 || math.IsNaN(b.Sigma) {
		return nil, ErrInvalidSigma
	}

	n := g.Len()
	rowPtr := make([]int, n+1)
	for i, e := range g.Entities {
		rowPtr[i+1] = rowPtr[i] + len(e.Neighbors)
	}
	nnz := rowPtr[n]

	colIdx := make([]int, nnz)
	dist := make([]float64, nnz)
	weight := make([]float64, nnz)

	err := workers.ForEach(b.Workers, n, func(i int) error {
		lo := rowPtr[i]
		neighbors := g.Entities[i].Neighbors
		order := make([]int, len(neighbors))
		for k := range order {
			order[k] = k
		}
		sort.Slice(order, func(x, y int) bool { return neighbors[order[x]].Index < neighbors[order[y]].Index })
		for k, o := range order {
			nb := neighbors[o]
			colIdx[lo+k] = nb.Index
			dist[lo+k] = nb.Distance
			weight[lo+k] = Gaussian(nb.Distance, b.Sigma)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a := &Affinity{
		Distance: &Matrix{n: n, rowPtr: rowPtr, colIdx: colIdx, values: dist, fill: math.Inf(1)},
		Weight:   &Matrix{n: n, rowPtr: rowPtr, colIdx: colIdx, values: weight, fill: 0},
	}
	slog.Debug("[Affinity] Matrices built", "n", n, "nnz", nnz, "sigma", b.Sigma)
	return a, nil
}
