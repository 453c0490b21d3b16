// Package graph builds the directed k-nearest-neighbor graph over entity
// feature vectors.
//
// Each entity points to at most k other entities whose squared Euclidean
// distance falls below a threshold. The relation is asymmetric: A listing B
// says nothing about B listing A.
package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sanonone/contigraph/pkg/core/distance"
	"github.com/sanonone/contigraph/pkg/core/hnsw"
	"github.com/sanonone/contigraph/pkg/core/knn"
	"github.com/sanonone/contigraph/pkg/core/types"
	"github.com/sanonone/contigraph/pkg/core/workers"
	"github.com/sanonone/contigraph/pkg/features"
)

// Default squared distance thresholds.
const (
	DefaultThreshold            = 10.0
	DefaultMultisampleThreshold = 6.0
)

// Search backends.
const (
	SearchExact = "exact"
	SearchHNSW  = "hnsw"
)

// ErrInvalidK is returned for a non-positive neighbor count.
var ErrInvalidK = errors.New("k must be positive")

// ThresholdFor returns the default squared distance threshold.
func ThresholdFor(multisample bool) float64 {
	if multisample {
		return DefaultMultisampleThreshold
	}
	return DefaultThreshold
}

// Neighbor is an outgoing edge.
type Neighbor struct {
	ID       int64
	Index    int
	Distance float64 // squared Euclidean
}

// GraphedEntity is a loaded entity together with its outgoing edges,
// ordered by increasing distance.
type GraphedEntity struct {
	features.RawEntity
	Neighbors []Neighbor
}

// Graph is the neighbor graph in entity load order.
type Graph struct {
	Entities []GraphedEntity
	Index    *IndexMap
}

// Len returns the number of entities.
func (g *Graph) Len() int {
	return len(g.Entities)
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, e := range g.Entities {
		n += len(e.Neighbors)
	}
	return n
}

// Subgraph keeps the entities whose keep flag is set and drops every edge
// pointing at a removed entity. Surviving edges are not re-filled.
func (g *Graph) Subgraph(keep []bool) (*Graph, error) {
	if len(keep) != len(g.Entities) {
		return nil, fmt.Errorf("keep mask has %d entries, graph has %d entities", len(keep), len(g.Entities))
	}

	newIndex := make([]int, len(g.Entities))
	ids := make([]int64, 0, len(g.Entities))
	for i, e := range g.Entities {
		newIndex[i] = -1
		if keep[i] {
			newIndex[i] = len(ids)
			ids = append(ids, e.ID)
		}
	}
	index, err := NewIndexMap(ids)
	if err != nil {
		return nil, err
	}

	out := make([]GraphedEntity, 0, len(ids))
	for i, e := range g.Entities {
		if !keep[i] {
			continue
		}
		neighbors := make([]Neighbor, 0, len(e.Neighbors))
		for _, nb := range e.Neighbors {
			if j := newIndex[nb.Index]; j >= 0 {
				neighbors = append(neighbors, Neighbor{ID: nb.ID, Index: j, Distance: nb.Distance})
			}
		}
		out = append(out, GraphedEntity{RawEntity: e.RawEntity, Neighbors: neighbors})
	}
	return &Graph{Entities: out, Index: index}, nil
}

// SearchConfig selects and tunes the nearest neighbor backend.
type SearchConfig struct {
	Algorithm string
	HNSW      hnsw.Config
}

// NewSearcher creates an empty searcher for cfg.
func NewSearcher(cfg SearchConfig) (knn.Searcher, error) {
	switch cfg.Algorithm {
	case SearchExact, "":
		return knn.NewFlat(), nil
	case SearchHNSW:
		return hnsw.New(cfg.HNSW)
	default:
		return nil, fmt.Errorf("unknown search algorithm: %s", cfg.Algorithm)
	}
}

// Builder computes the neighbor graph.
type Builder struct {
	K int
	// Threshold drops neighbors whose squared distance is greater or equal.
	Threshold float64
	Search    SearchConfig
	Workers   int
}

// Build indexes every feature vector, queries k+1 neighbors per entity,
// removes the entity itself and applies the threshold.
func (b Builder) Build(entities []features.RawEntity) (*Graph, error) {
	if b.K <= 0 {
		return nil, ErrInvalidK
	}
	if len(entities) == 0 {
		return nil, features.ErrEmptyPopulation
	}

	ids := make([]int64, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	index, err := NewIndexMap(ids)
	if err != nil {
		return nil, err
	}

	searcher, err := NewSearcher(b.Search)
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		if _, err := searcher.Add(e.Feature); err != nil {
			return nil, fmt.Errorf("failed to index entity %d: %w", e.ID, err)
		}
	}

	distFn := distance.SquaredEuclidean()
	out := make([]GraphedEntity, len(entities))
	err = workers.ForEach(b.Workers, len(entities), func(i int) error {
		hits, err := searcher.Search(entities[i].Feature, b.K+1)
		if err != nil {
			return fmt.Errorf("neighbor search for entity %d: %w", entities[i].ID, err)
		}
		hits = dropSelf(hits, uint32(i), b.K)

		// Backends may report approximate distances, recompute them exactly.
		for h := range hits {
			d, err := distFn(entities[i].Feature, entities[hits[h].Id].Feature)
			if err != nil {
				return err
			}
			hits[h].Distance = d
		}
		sort.SliceStable(hits, func(x, y int) bool { return hits[x].Less(hits[y]) })

		neighbors := make([]Neighbor, 0, len(hits))
		for _, h := range hits {
			if h.Distance >= b.Threshold {
				continue
			}
			j := int(h.Id)
			neighbors = append(neighbors, Neighbor{ID: index.ID(j), Index: j, Distance: h.Distance})
		}
		out[i] = GraphedEntity{RawEntity: entities[i], Neighbors: neighbors}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g := &Graph{Entities: out, Index: index}
	slog.Info("[Graph] Neighbor graph built", "entities", g.Len(), "edges", g.EdgeCount(), "k", b.K, "threshold", b.Threshold, "search", searchName(b.Search))
	return g, nil
}

// dropSelf removes the query's own position from hits. If the query is not
// among them (duplicates or approximate search) the farthest hit is dropped
// instead so that at most k remain.
func dropSelf(hits []types.Candidate, self uint32, k int) []types.Candidate {
	out := make([]types.Candidate, 0, len(hits))
	for _, h := range hits {
		if h.Id != self {
			out = append(out, h)
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func searchName(cfg SearchConfig) string {
	if cfg.Algorithm == "" {
		return SearchExact
	}
	return cfg.Algorithm
}
