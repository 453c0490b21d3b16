// Package dataset turns the filtered neighbor graph into fixed-shape training
// records and exposes them as a read-only dataset.
package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/sanonone/contigraph/pkg/affinity"
	"github.com/sanonone/contigraph/pkg/core/workers"
	"github.com/sanonone/contigraph/pkg/graph"
	"gonum.org/v1/gonum/floats"
)

// ErrInvalidK is returned for a non-positive slot count.
var ErrInvalidK = errors.New("k must be positive")

// TrainingRecord is the fixed-shape unit handed to the training loop.
// Every slice has exactly K rows or entries; unused slots are zero.
type TrainingRecord struct {
	ID      int64
	Feature []float32
	// NeighborFeatures is K x D, one row per neighbor slot.
	NeighborFeatures [][]float32
	// NeighborMask has a leading 1 for every filled slot.
	NeighborMask []float32
	// NeighborWeights is a softmax over the Gaussian kernel of the filled
	// slots, or one-hot for a single neighbor, or all zero.
	NeighborWeights []float32
}

// Neighbors returns the number of filled slots.
func (r TrainingRecord) Neighbors() int {
	n := 0
	for _, m := range r.NeighborMask {
		if m == 0 {
			break
		}
		n++
	}
	return n
}

// Assembler builds training records.
type Assembler struct {
	K       int
	Sigma   float64
	Workers int
}

// Assemble produces one record per entity of g, in order. Neighbor lists
// longer than K are truncated. An empty graph yields no records.
func (a Assembler) Assemble(g *graph.Graph) ([]TrainingRecord, error) {
	if a.K <= 0 {
		return nil, ErrInvalidK
	}
	if a.Sigma <= 0 || math.IsNaN(a.Sigma) {
		return nil, affinity.ErrInvalidSigma
	}

	records := make([]TrainingRecord, g.Len())
	if g.Len() == 0 {
		return records, nil
	}
	dim := len(g.Entities[0].Feature)

	err := workers.ForEach(a.Workers, g.Len(), func(i int) error {
		e := g.Entities[i]
		if len(e.Feature) != dim {
			return fmt.Errorf("entity %d has dimension %d, want %d", e.ID, len(e.Feature), dim)
		}
		neighbors := e.Neighbors
		if len(neighbors) > a.K {
			neighbors = neighbors[:a.K]
		}

		rec := TrainingRecord{
			ID:               e.ID,
			Feature:          e.Feature,
			NeighborFeatures: make([][]float32, a.K),
			NeighborMask:     make([]float32, a.K),
			NeighborWeights:  Weights(neighbors, a.K, a.Sigma),
		}
		block := make([]float32, a.K*dim)
		for s := 0; s < a.K; s++ {
			rec.NeighborFeatures[s] = block[s*dim : (s+1)*dim : (s+1)*dim]
		}
		for s, nb := range neighbors {
			copy(rec.NeighborFeatures[s], g.Entities[nb.Index].Feature)
			rec.NeighborMask[s] = 1
		}
		records[i] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("[Dataset] Training records assembled", "records", len(records), "k", a.K, "dim", dim)
	return records, nil
}

// Weights returns the length-k neighbor weight vector for the given
// neighbors (at most k of them).
func Weights(neighbors []graph.Neighbor, k int, sigma float64) []float32 {
	out := make([]float32, k)
	switch len(neighbors) {
	case 0:
		return out
	case 1:
		out[0] = 1
		return out
	}

	coef := make([]float64, len(neighbors))
	for i, nb := range neighbors {
		coef[i] = affinity.Gaussian(nb.Distance, sigma)
	}
	lse := floats.LogSumExp(coef)
	for i, c := range coef {
		out[i] = float32(math.Exp(c - lse))
	}
	return out
}
