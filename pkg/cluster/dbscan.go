package cluster

import (
	"errors"
	"log/slog"
	"math"

	"github.com/sanonone/contigraph/pkg/affinity"
)

// Default DBSCAN parameters.
const (
	DefaultEps        = 1.65
	DefaultMinSamples = 2
)

// ErrInvalidEps is returned for a non-positive neighborhood radius.
var ErrInvalidEps = errors.New("eps must be positive")

// ErrInvalidMinSamples is returned when the core point threshold is below 1.
var ErrInvalidMinSamples = errors.New("min samples must be at least 1")

// ClusteringAlgorithm produces the initial hard labeling from a precomputed
// distance matrix. Implementations must be deterministic.
type ClusteringAlgorithm interface {
	Fit(d *affinity.Matrix) (Labeling, error)
}

// DBSCAN is density-based clustering over a sparse precomputed distance
// matrix.
//
// The neighborhood of point i is i itself plus every stored entry of row i
// with distance <= Eps. A point with at least MinSamples points in its
// neighborhood is a core point. Clusters grow from core points in index
// order and are numbered 0, 1, 2, ... in the order they are discovered.
type DBSCAN struct {
	Eps        float64
	MinSamples int
}

var _ ClusteringAlgorithm = DBSCAN{}

// Fit labels every row of d.
func (c DBSCAN) Fit(d *affinity.Matrix) (Labeling, error) {
	if c.Eps <= 0 || math.IsNaN(c.Eps) {
		return nil, ErrInvalidEps
	}
	if c.MinSamples < 1 {
		return nil, ErrInvalidMinSamples
	}

	n, _ := d.Dims()
	neighborhoods := make([][]int, n)
	core := make([]bool, n)
	for i := 0; i < n; i++ {
		hood := []int{i}
		d.DoRowNonZero(i, func(j int, v float64) {
			if j != i && v <= c.Eps {
				hood = append(hood, j)
			}
		})
		neighborhoods[i] = hood
		core[i] = len(hood) >= c.MinSamples
	}

	labels := make(Labeling, n)
	next := 0
	stack := make([]int, 0, 64)
	for i := 0; i < n; i++ {
		if !labels[i].IsNoise() || !core[i] {
			continue
		}
		label := Cluster(next)
		next++

		stack = append(stack[:0], i)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !labels[p].IsNoise() {
				continue
			}
			labels[p] = label
			if !core[p] {
				continue
			}
			for _, q := range neighborhoods[p] {
				if labels[q].IsNoise() {
					stack = append(stack, q)
				}
			}
		}
	}

	clusters, noise := labels.Counts()
	slog.Info("[Cluster] DBSCAN finished", "entities", n, "clusters", clusters, "noise", noise, "eps", c.Eps, "min_samples", c.MinSamples)
	return labels, nil
}
