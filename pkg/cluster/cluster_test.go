package cluster

import (
	"testing"

	"github.com/sanonone/contigraph/pkg/affinity"
	"github.com/sanonone/contigraph/pkg/features"
	"github.com/sanonone/contigraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type edge struct {
	to int
	d  float64
}

func buildGraph(t *testing.T, ids []int64, edges [][]edge) *graph.Graph {
	t.Helper()
	require.Len(t, edges, len(ids))
	idx, err := graph.NewIndexMap(ids)
	require.NoError(t, err)
	g := &graph.Graph{Index: idx, Entities: make([]graph.GraphedEntity, len(ids))}
	for i, id := range ids {
		g.Entities[i].RawEntity = features.RawEntity{ID: id, Feature: []float32{float32(i)}}
		for _, e := range edges[i] {
			g.Entities[i].Neighbors = append(g.Entities[i].Neighbors, graph.Neighbor{ID: ids[e.to], Index: e.to, Distance: e.d})
		}
	}
	return g
}

func distances(t *testing.T, g *graph.Graph) *affinity.Matrix {
	t.Helper()
	a, err := affinity.Builder{Sigma: 1}.Build(g)
	require.NoError(t, err)
	return a.Distance
}

func TestLabel(t *testing.T) {
	var zero Label
	assert.True(t, zero.IsNoise())
	assert.Equal(t, Noise(), zero)

	l := Cluster(0)
	assert.False(t, l.IsNoise())
	id, ok := l.ClusterID()
	assert.True(t, ok)
	assert.Equal(t, 0, id)
	assert.NotEqual(t, Noise(), l)

	_, ok = Noise().ClusterID()
	assert.False(t, ok)
	assert.Equal(t, "noise", Noise().String())
	assert.Equal(t, "cluster(3)", Cluster(3).String())
	assert.Panics(t, func() { Cluster(-1) })

	ls := Labeling{Cluster(0), Noise(), Cluster(2), Cluster(0)}
	c, n := ls.Counts()
	assert.Equal(t, 2, c)
	assert.Equal(t, 1, n)
	assert.True(t, ls.Equal(ls.Clone()))
	assert.False(t, ls.Equal(ls[:2]))
}

func TestDBSCANTwoGroupsAndNoise(t *testing.T) {
	// 0-1-2 chained within eps, 3-4 a second group, 5 far from everything.
	g := buildGraph(t, []int64{1, 2, 3, 4, 5, 6}, [][]edge{
		{{1, 1}},
		{{0, 1}, {2, 1.5}},
		{{1, 1.5}},
		{{4, 0.5}},
		{{3, 0.5}},
		{{0, 9}},
	})

	labels, err := DBSCAN{Eps: 1.65, MinSamples: 2}.Fit(distances(t, g))
	require.NoError(t, err)
	assert.Equal(t, Labeling{Cluster(0), Cluster(0), Cluster(0), Cluster(1), Cluster(1), Noise()}, labels)
}

func TestDBSCANBorderPoint(t *testing.T) {
	// With MinSamples 3 only entity 1 is core; 0 and 2 join as border points.
	g := buildGraph(t, []int64{1, 2, 3, 4}, [][]edge{
		{{1, 1}},
		{{0, 1}, {2, 1}},
		{{1, 1}},
		{},
	})
	labels, err := DBSCAN{Eps: 1.65, MinSamples: 3}.Fit(distances(t, g))
	require.NoError(t, err)
	assert.Equal(t, Labeling{Cluster(0), Cluster(0), Cluster(0), Noise()}, labels)
}

func TestDBSCANUsesOutgoingRows(t *testing.T) {
	// 1 points at 0 but 0 has no edges: 1 is core and pulls 0 in as a border point.
	g := buildGraph(t, []int64{1, 2}, [][]edge{{}, {{0, 1}}})
	labels, err := DBSCAN{Eps: 1.65, MinSamples: 2}.Fit(distances(t, g))
	require.NoError(t, err)
	assert.Equal(t, Labeling{Cluster(0), Cluster(0)}, labels)
}

func TestDBSCANEpsInclusive(t *testing.T) {
	g := buildGraph(t, []int64{1, 2}, [][]edge{{{1, 1.65}}, {{0, 1.65}}})
	labels, err := DBSCAN{Eps: 1.65, MinSamples: 2}.Fit(distances(t, g))
	require.NoError(t, err)
	assert.Equal(t, Labeling{Cluster(0), Cluster(0)}, labels)
}

func TestDBSCANMinSamplesOne(t *testing.T) {
	g := buildGraph(t, []int64{1, 2}, [][]edge{{}, {}})
	labels, err := DBSCAN{Eps: 1, MinSamples: 1}.Fit(distances(t, g))
	require.NoError(t, err)
	assert.Equal(t, Labeling{Cluster(0), Cluster(1)}, labels)
}

func TestDBSCANInvalidParams(t *testing.T) {
	g := buildGraph(t, []int64{1}, [][]edge{{}})
	_, err := DBSCAN{Eps: 0, MinSamples: 2}.Fit(distances(t, g))
	assert.ErrorIs(t, err, ErrInvalidEps)
	_, err = DBSCAN{Eps: 1, MinSamples: 0}.Fit(distances(t, g))
	assert.ErrorIs(t, err, ErrInvalidMinSamples)
}

func TestDBSCANDeterministic(t *testing.T) {
	g := buildGraph(t, []int64{1, 2, 3, 4}, [][]edge{
		{{1, 0.2}}, {{0, 0.2}}, {{3, 0.3}}, {{2, 0.3}},
	})
	d := distances(t, g)
	first, err := DBSCAN{Eps: 1, MinSamples: 2}.Fit(d)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := DBSCAN{Eps: 1, MinSamples: 2}.Fit(d)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFilterRemovesNoiseAndDanglingEdges(t *testing.T) {
	g := buildGraph(t, []int64{10, 20, 30}, [][]edge{
		{{1, 1}, {2, 2}},
		{{2, 1}, {0, 1}},
		{{0, 2}},
	})
	labels := Labeling{Cluster(0), Noise(), Cluster(0)}

	out, err := AmbiguityFilter{}.Filter(g, labels)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Removed)
	assert.Equal(t, Labeling{Cluster(0), Cluster(0)}, out.Labels)
	require.Equal(t, 2, out.Graph.Len())

	first := out.Graph.Entities[0]
	assert.Equal(t, int64(10), first.ID)
	require.Len(t, first.Neighbors, 1)
	assert.Equal(t, graph.Neighbor{ID: 30, Index: 1, Distance: 2}, first.Neighbors[0])

	second := out.Graph.Entities[1]
	assert.Equal(t, int64(30), second.ID)
	assert.Equal(t, []graph.Neighbor{{ID: 10, Index: 0, Distance: 2}}, second.Neighbors)

	// The input is untouched.
	assert.Len(t, g.Entities[0].Neighbors, 2)
	assert.Equal(t, 3, g.Len())
}

func TestFilterAllNoise(t *testing.T) {
	g := buildGraph(t, []int64{1, 2}, [][]edge{{{1, 1}}, {{0, 1}}})
	out, err := AmbiguityFilter{}.Filter(g, Labeling{Noise(), Noise()})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Graph.Len())
	assert.Empty(t, out.Labels)
	assert.Equal(t, 2, out.Removed)
}

func TestFilterEmptyAndMismatch(t *testing.T) {
	g := buildGraph(t, nil, nil)
	out, err := AmbiguityFilter{}.Filter(g, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Graph.Len())

	g = buildGraph(t, []int64{1}, [][]edge{{}})
	_, err = AmbiguityFilter{}.Filter(g, Labeling{})
	assert.Error(t, err)
}

func TestLabelEntities(t *testing.T) {
	g := buildGraph(t, []int64{7, 8}, [][]edge{{{1, 1}}, {}})
	le, err := LabelEntities(g, Labeling{Cluster(1), Noise()})
	require.NoError(t, err)
	require.Len(t, le, 2)
	assert.Equal(t, int64(7), le[0].ID)
	assert.Equal(t, Cluster(1), le[0].Label)
	assert.True(t, le[1].Label.IsNoise())
}
