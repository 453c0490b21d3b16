package knn

import (
	"testing"

	"github.com/sanonone/contigraph/pkg/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinHeapOrder(t *testing.T) {
	h := NewMinHeap(4)
	for _, c := range []types.Candidate{
		{Id: 1, Distance: 5.0},
		{Id: 2, Distance: 2.0},
		{Id: 3, Distance: 8.0},
		{Id: 0, Distance: 2.0},
	} {
		h.PushCandidate(c)
	}

	var got []uint32
	for h.Len() > 0 {
		got = append(got, h.PopCandidate().Id)
	}
	assert.Equal(t, []uint32{0, 2, 1, 3}, got)
}

func TestMaxHeapSorted(t *testing.T) {
	h := NewMaxHeap(4)
	for _, c := range []types.Candidate{
		{Id: 1, Distance: 5.0},
		{Id: 2, Distance: 8.0},
		{Id: 3, Distance: 2.0},
		{Id: 4, Distance: 8.0},
	} {
		h.PushCandidate(c)
	}
	assert.Equal(t, uint32(4), h.Peek().Id)

	sorted := h.Sorted()
	require.Len(t, sorted, 4)
	assert.Equal(t, []float64{2, 5, 8, 8}, []float64{sorted[0].Distance, sorted[1].Distance, sorted[2].Distance, sorted[3].Distance})
	assert.Equal(t, uint32(2), sorted[2].Id)
	assert.Equal(t, 0, h.Len())
}

func TestFlatSearch(t *testing.T) {
	f := NewFlat()
	points := [][]float32{{0, 0}, {1, 0}, {0, 2}, {3, 3}, {1, 0}}
	for i, p := range points {
		id, err := f.Add(p)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), id)
	}
	assert.Equal(t, 5, f.Len())

	res, err := f.Search([]float32{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	// Equidistant points 1 and 4 come back in id order.
	assert.Equal(t, []uint32{0, 1, 4}, []uint32{res[0].Id, res[1].Id, res[2].Id})
	assert.InDelta(t, 0.0, res[0].Distance, 1e-9)
	assert.InDelta(t, 1.0, res[1].Distance, 1e-9)

	res, err = f.Search([]float32{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 5)
}

func TestFlatDimensionMismatch(t *testing.T) {
	f := NewFlat()
	_, err := f.Add([]float32{1, 2})
	require.NoError(t, err)
	_, err = f.Add([]float32{1})
	assert.Error(t, err)
}
