// Package propagation refines a hard labeling by spreading label
// distributions along the weighted neighbor graph.
package propagation

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/sanonone/contigraph/pkg/affinity"
	"github.com/sanonone/contigraph/pkg/cluster"
	"github.com/sanonone/contigraph/pkg/core/workers"
)

// Defaults for LabelPropagation.
const (
	DefaultSelfWeight    = 1.0
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-4
)

var (
	ErrInvalidSelfWeight    = errors.New("self weight must be non-negative")
	ErrInvalidMaxIterations = errors.New("max iterations must be at least 1")
	ErrInvalidTolerance     = errors.New("tolerance must be non-negative")
)

// PropagationAlgorithm refines an initial labeling using a weight matrix.
// The initial labeling is never modified.
type PropagationAlgorithm interface {
	Propagate(initial cluster.Labeling, weights *affinity.Matrix) (*Result, error)
}

// Result is the refined labeling plus run statistics.
type Result struct {
	Labels     cluster.Labeling
	Iterations int
	Converged  bool
	// Resolved counts entities that entered as Noise and left with a cluster.
	Resolved int
}

// LabelPropagation is iterative weighted-majority propagation.
//
// Every entity carries a distribution over the cluster ids present in the
// initial labeling. Labeled entities start one-hot, Noise entities start at
// zero. One iteration computes, for every row i of the weight matrix,
//
//	F'(i) = normalize(SelfWeight*F(i) + sum_j W(i,j)*F(j))
//
// from the previous iteration's frozen state. With Clamp set, initially
// labeled entities keep their one-hot distribution. The hard label is the
// argmax with ties going to the lowest cluster id; an all-zero distribution
// stays Noise. Iteration stops once no hard label changes and no
// distribution entry moved by more than Tolerance, or after MaxIterations.
type LabelPropagation struct {
	SelfWeight    float64
	MaxIterations int
	Tolerance     float64
	Clamp         bool
	Workers       int
}

var _ PropagationAlgorithm = LabelPropagation{}

// NewLabelPropagation returns a propagator with the default parameters.
func NewLabelPropagation() LabelPropagation {
	return LabelPropagation{
		SelfWeight:    DefaultSelfWeight,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		Clamp:         true,
	}
}

func (p LabelPropagation) validate() error {
	if p.SelfWeight < 0 || math.IsNaN(p.SelfWeight) {
		return ErrInvalidSelfWeight
	}
	if p.MaxIterations < 1 {
		return ErrInvalidMaxIterations
	}
	if p.Tolerance < 0 || math.IsNaN(p.Tolerance) {
		return ErrInvalidTolerance
	}
	return nil
}

// Propagate runs to convergence or to the iteration cap. Hitting the cap is
// reported through Result.Converged and a warning, not an error.
func (p LabelPropagation) Propagate(initial cluster.Labeling, weights *affinity.Matrix) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	n, _ := weights.Dims()
	if len(initial) != n {
		return nil, fmt.Errorf("labeling has %d entries, weight matrix has %d rows", len(initial), n)
	}

	classes := 0
	for _, l := range initial {
		if id, ok := l.ClusterID(); ok && id+1 > classes {
			classes = id + 1
		}
	}

	cur := make([]float64, n*classes)
	next := make([]float64, n*classes)
	for i, l := range initial {
		if id, ok := l.ClusterID(); ok {
			cur[i*classes+id] = 1
		}
	}
	labels := initial.Clone()
	nextLabels := make(cluster.Labeling, n)

	res := &Result{}
	for res.Iterations < p.MaxIterations {
		res.Iterations++

		var mu sync.Mutex
		maxDelta := 0.0
		changed := false
		err := workers.ForEachRange(p.Workers, n, func(lo, hi int) error {
			localDelta := 0.0
			localChanged := false
			for i := lo; i < hi; i++ {
				row := next[i*classes : (i+1)*classes]
				p.update(i, classes, initial[i], cur, row, weights)
				for c, v := range row {
					if d := math.Abs(v - cur[i*classes+c]); d > localDelta {
						localDelta = d
					}
				}
				nextLabels[i] = hardLabel(row)
				if nextLabels[i] != labels[i] {
					localChanged = true
				}
			}
			mu.Lock()
			if localDelta > maxDelta {
				maxDelta = localDelta
			}
			changed = changed || localChanged
			mu.Unlock()
			return nil
		})
		if err != nil {
			return nil, err
		}

		cur, next = next, cur
		labels, nextLabels = nextLabels, labels

		if !changed && maxDelta <= p.Tolerance {
			res.Converged = true
			break
		}
	}

	for i, l := range initial {
		if l.IsNoise() && !labels[i].IsNoise() {
			res.Resolved++
		}
	}
	res.Labels = labels

	if !res.Converged {
		slog.Warn("[Propagation] Iteration cap reached without convergence", "iterations", res.Iterations, "tolerance", p.Tolerance)
	}
	_, noise := labels.Counts()
	slog.Info("[Propagation] Labels refined", "entities", n, "iterations", res.Iterations, "converged", res.Converged, "resolved", res.Resolved, "noise", noise)
	return res, nil
}

// update writes the new distribution of entity i into out.
func (p LabelPropagation) update(i, classes int, seed cluster.Label, cur, out []float64, weights *affinity.Matrix) {
	if id, ok := seed.ClusterID(); ok && p.Clamp {
		clear(out)
		out[id] = 1
		return
	}

	own := cur[i*classes : (i+1)*classes]
	for c := range out {
		out[c] = p.SelfWeight * own[c]
	}
	weights.DoRowNonZero(i, func(j int, w float64) {
		if j == i {
			return
		}
		nb := cur[j*classes : (j+1)*classes]
		for c := range out {
			out[c] += w * nb[c]
		}
	})

	sum := 0.0
	for _, v := range out {
		sum += v
	}
	if sum > 0 {
		for c := range out {
			out[c] /= sum
		}
	}
}

func hardLabel(dist []float64) cluster.Label {
	best, bestVal := -1, 0.0
	for c, v := range dist {
		if v > bestVal {
			best, bestVal = c, v
		}
	}
	if best < 0 {
		return cluster.Noise()
	}
	return cluster.Cluster(best)
}
