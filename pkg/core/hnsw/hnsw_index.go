// Package hnsw provides the implementation of the Hierarchical Navigable Small World
// (HNSW) graph algorithm for approximate nearest neighbor search.
//
// The index is tuned for the batch use of the neighbor graph builder: vectors
// are inserted sequentially with a seeded level generator, so two builds over
// the same input produce the same graph, and searches are then issued
// concurrently against the frozen structure.
package hnsw

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/sanonone/contigraph/pkg/core/distance"
	"github.com/sanonone/contigraph/pkg/core/knn"
	"github.com/sanonone/contigraph/pkg/core/types"
)

// maxLevelCap bounds the layer count regardless of what the level generator draws.
const maxLevelCap = 16

// Config holds the HNSW construction and search parameters.
type Config struct {
	M              int
	EfConstruction int
	EfSearch       int
	Precision      distance.PrecisionType
	Seed           int64
}

// DefaultConfig returns the parameters used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		M:              16,
		EfConstruction: 200,
		EfSearch:       64,
		Precision:      distance.Float32,
		Seed:           2024,
	}
}

// Index represents the hierarchical graph structure.
type Index struct {
	mu sync.RWMutex

	m              int // max connections per node on upper layers
	mMax0          int // max connections per node on layer 0
	efConstruction int
	efSearch       int
	ml             float64 // level normalization factor, 1/ln(m)

	rng *rand.Rand

	entrypointID uint32
	maxLevel     int
	dim          int

	nodes []*Node

	precision   distance.PrecisionType
	distFuncF32 distance.DistanceFuncF32
	distFuncF16 distance.DistanceFuncF16

	visitedPool sync.Pool
}

var _ knn.Searcher = (*Index)(nil)

// New creates an empty index. Zero values in cfg fall back to DefaultConfig.
func New(cfg Config) (*Index, error) {
	def := DefaultConfig()
	if cfg.M <= 0 {
		cfg.M = def.M
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = def.EfConstruction
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = def.EfSearch
	}
	if cfg.M < 2 {
		return nil, fmt.Errorf("hnsw: m must be at least 2, got %d", cfg.M)
	}

	h := &Index{
		m:              cfg.M,
		mMax0:          cfg.M * 2,
		efConstruction: cfg.EfConstruction,
		efSearch:       cfg.EfSearch,
		ml:             1.0 / math.Log(float64(cfg.M)),
		rng:            rand.New(rand.NewSource(cfg.Seed)),
		maxLevel:       -1,
		nodes:          make([]*Node, 0, 1024),
		precision:      cfg.Precision,
	}
	h.visitedPool = sync.Pool{
		New: func() any { return NewBitSet(256) },
	}

	switch cfg.Precision {
	case distance.Float32, "":
		h.precision = distance.Float32
		h.distFuncF32 = distance.SquaredEuclidean()
	case distance.Float16:
		h.distFuncF16 = distance.SquaredEuclideanF16()
	default:
		return nil, fmt.Errorf("hnsw: unsupported precision: %s", cfg.Precision)
	}
	return h, nil
}

// Len returns the number of inserted vectors.
func (h *Index) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

func (h *Index) randomLevel() int {
	level := int(math.Floor(-math.Log(1-h.rng.Float64()) * h.ml))
	if level > maxLevelCap {
		level = maxLevelCap
	}
	return level
}

// newNode stores the vector in the index precision.
func (h *Index) newNode(id uint32, vector []float32) *Node {
	node := &Node{InternalID: id}
	switch h.precision {
	case distance.Float32:
		node.VectorF32 = vector
	case distance.Float16:
		node.VectorF16 = distance.ToFloat16(vector)
	}
	return node
}

// distanceFrom returns a distance function from the given node to any other,
// resolved once so the traversal loop does not switch on precision.
func (h *Index) distanceFrom(q *Node) func(n *Node) (float64, error) {
	if h.precision == distance.Float16 {
		fn, v := h.distFuncF16, q.VectorF16
		return func(n *Node) (float64, error) { return fn(v, n.VectorF16) }
	}
	fn, v := h.distFuncF32, q.VectorF32
	return func(n *Node) (float64, error) { return fn(v, n.VectorF32) }
}

// Add inserts a vector and returns its internal id. Insertions are serialized.
func (h *Index) Add(vector []float32) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.nodes) == 0 {
		h.dim = len(vector)
	} else if len(vector) != h.dim {
		return 0, fmt.Errorf("hnsw: vector dimension %d, index dimension %d", len(vector), h.dim)
	}

	internalID := uint32(len(h.nodes))
	node := h.newNode(internalID, vector)
	level := h.randomLevel()
	node.Connections = make([][]uint32, level+1)
	h.nodes = append(h.nodes, node)

	if h.maxLevel == -1 {
		h.entrypointID = internalID
		h.maxLevel = level
		return internalID, nil
	}

	distFn := h.distanceFrom(node)

	currentEntryPoint := h.entrypointID
	for l := h.maxLevel; l > level; l-- {
		nearest, err := h.searchLayerUnlocked(distFn, currentEntryPoint, 1, l)
		if err != nil {
			return 0, err
		}
		if len(nearest) > 0 {
			currentEntryPoint = nearest[0].Id
		}
	}

	for l := min(level, h.maxLevel); l >= 0; l-- {
		candidates, err := h.searchLayerUnlocked(distFn, currentEntryPoint, h.efConstruction, l)
		if err != nil {
			return 0, err
		}

		maxConns := h.m
		if l == 0 {
			maxConns = h.mMax0
		}

		selected := h.selectNeighbors(candidates, h.m)
		node.Connections[l] = make([]uint32, len(selected))
		for i, c := range selected {
			node.Connections[l][i] = c.Id
		}

		for _, c := range selected {
			if err := h.linkBack(h.nodes[c.Id], internalID, l, maxConns); err != nil {
				return 0, err
			}
		}
		if len(candidates) > 0 {
			currentEntryPoint = candidates[0].Id
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entrypointID = internalID
	}
	return internalID, nil
}

// linkBack adds the reverse edge neighbor -> newID on layer l and, when the
// neighbor overflows, re-selects its connections with the same heuristic.
func (h *Index) linkBack(neighbor *Node, newID uint32, l, maxConns int) error {
	if l > neighbor.level() {
		return nil
	}
	conns := append(neighbor.Connections[l], newID)
	if len(conns) <= maxConns {
		neighbor.Connections[l] = conns
		return nil
	}

	distFn := h.distanceFrom(neighbor)
	candidates := make([]types.Candidate, 0, len(conns))
	for _, id := range conns {
		d, err := distFn(h.nodes[id])
		if err != nil {
			return err
		}
		candidates = append(candidates, types.Candidate{Id: id, Distance: d})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Less(candidates[j]) })

	pruned := h.selectNeighbors(candidates, maxConns)
	ids := make([]uint32, len(pruned))
	for i, c := range pruned {
		ids[i] = c.Id
	}
	neighbor.Connections[l] = ids
	return nil
}

// selectNeighbors implements the diversity heuristic from the HNSW paper:
// a candidate is kept only if it is closer to the base than to every
// neighbor already kept. Discarded candidates back-fill free slots so that
// no node ends up weakly connected. Candidates must be sorted ascending.
func (h *Index) selectNeighbors(candidates []types.Candidate, m int) []types.Candidate {
	if len(candidates) <= m {
		return candidates
	}

	results := make([]types.Candidate, 0, m)
	discarded := make([]types.Candidate, 0, len(candidates))

	for _, e := range candidates {
		if len(results) >= m {
			break
		}
		good := true
		eFn := h.distanceFrom(h.nodes[e.Id])
		for _, r := range results {
			d, err := eFn(h.nodes[r.Id])
			if err != nil || d < e.Distance {
				good = false
				break
			}
		}
		if good {
			results = append(results, e)
		} else {
			discarded = append(discarded, e)
		}
	}

	for _, c := range discarded {
		if len(results) >= m {
			break
		}
		results = append(results, c)
	}
	return results
}

// Search finds the k nearest stored vectors to query.
func (h *Index) Search(query []float32, k int) ([]types.Candidate, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.maxLevel == -1 || k <= 0 {
		return []types.Candidate{}, nil
	}
	if len(query) != h.dim {
		return nil, fmt.Errorf("hnsw: query dimension %d, index dimension %d", len(query), h.dim)
	}

	distFn := h.distanceFrom(h.newNode(0, query))

	currentEntryPoint := h.entrypointID
	for l := h.maxLevel; l > 0; l-- {
		nearest, err := h.searchLayerUnlocked(distFn, currentEntryPoint, 1, l)
		if err != nil {
			return nil, err
		}
		if len(nearest) == 0 {
			return nil, fmt.Errorf("hnsw: search failed at level %d", l)
		}
		currentEntryPoint = nearest[0].Id
	}

	ef := max(h.efSearch, k)
	found, err := h.searchLayerUnlocked(distFn, currentEntryPoint, ef, 0)
	if err != nil {
		return nil, err
	}
	if len(found) > k {
		found = found[:k]
	}
	return found, nil
}

var errMissingEntryPoint = errors.New("hnsw: entry point not found")

// searchLayerUnlocked performs the best-first search of one layer and returns
// up to ef candidates in ascending distance order. The caller holds the lock.
func (h *Index) searchLayerUnlocked(distFn func(*Node) (float64, error), entrypointID uint32, ef int, level int) ([]types.Candidate, error) {
	visited := h.visitedPool.Get().(*BitSet)
	defer func() {
		visited.Clear()
		h.visitedPool.Put(visited)
	}()
	visited.EnsureCapacity(uint32(len(h.nodes)))

	candidates := knn.NewMinHeap(ef)
	results := knn.NewMaxHeap(ef + 1)

	if int(entrypointID) >= len(h.nodes) {
		return nil, errMissingEntryPoint
	}
	d, err := distFn(h.nodes[entrypointID])
	if err != nil {
		return nil, err
	}
	ep := types.Candidate{Id: entrypointID, Distance: d}
	candidates.PushCandidate(ep)
	results.PushCandidate(ep)
	visited.Add(entrypointID)

	for candidates.Len() > 0 {
		current := candidates.PopCandidate()
		if results.Len() >= ef && results.Peek().Less(current) {
			break
		}

		currentNode := h.nodes[current.Id]
		if level > currentNode.level() {
			continue
		}

		for _, neighborID := range currentNode.Connections[level] {
			if visited.Has(neighborID) {
				continue
			}
			visited.Add(neighborID)

			d, err := distFn(h.nodes[neighborID])
			if err != nil {
				return nil, err
			}
			c := types.Candidate{Id: neighborID, Distance: d}
			if results.Len() < ef || c.Less(results.Peek()) {
				candidates.PushCandidate(c)
				results.PushCandidate(c)
				if results.Len() > ef {
					results.PopCandidate()
				}
			}
		}
	}

	return results.Sorted(), nil
}
