package cluster

import (
	"fmt"
	"log/slog"

	"github.com/sanonone/contigraph/pkg/graph"
)

// LabeledEntity is a graphed entity carrying its hard label.
type LabeledEntity struct {
	graph.GraphedEntity
	Label Label
}

// LabelEntities pairs the entities of g with labels by position.
func LabelEntities(g *graph.Graph, labels Labeling) ([]LabeledEntity, error) {
	if len(labels) != g.Len() {
		return nil, fmt.Errorf("labeling has %d entries, graph has %d entities", len(labels), g.Len())
	}
	out := make([]LabeledEntity, g.Len())
	for i, e := range g.Entities {
		out[i] = LabeledEntity{GraphedEntity: e, Label: labels[i]}
	}
	return out, nil
}

// Filtered is the outcome of dropping Noise entities.
type Filtered struct {
	Graph   *graph.Graph
	Labels  Labeling
	Removed int
}

// AmbiguityFilter removes entities still labeled Noise after propagation,
// together with every edge pointing at them. Surviving entities keep their
// relative order and their remaining edges; lists are not refilled.
type AmbiguityFilter struct{}

// Filter returns a new graph and labeling. The input is not modified.
// An empty or all-noise input yields an empty result without error.
func (AmbiguityFilter) Filter(g *graph.Graph, labels Labeling) (*Filtered, error) {
	if len(labels) != g.Len() {
		return nil, fmt.Errorf("labeling has %d entries, graph has %d entities", len(labels), g.Len())
	}

	keep := make([]bool, len(labels))
	kept := make(Labeling, 0, len(labels))
	for i, l := range labels {
		if !l.IsNoise() {
			keep[i] = true
			kept = append(kept, l)
		}
	}

	sub, err := g.Subgraph(keep)
	if err != nil {
		return nil, fmt.Errorf("filter noise: %w", err)
	}
	removed := len(labels) - len(kept)
	slog.Info("[Cluster] Ambiguous entities removed", "removed", removed, "kept", len(kept), "edges", sub.EdgeCount())
	return &Filtered{Graph: sub, Labels: kept, Removed: removed}, nil
}
