// Package knn defines the nearest neighbor search contract shared by the exact
// and approximate backends, together with the candidate heaps both of them
// use during traversal.
package knn

import (
	"container/heap"

	"github.com/sanonone/contigraph/pkg/core/types"
)

// MinHeap keeps the closest candidate on top. Searches pop from it to decide
// which vertex to expand next.
type MinHeap []types.Candidate

func (h MinHeap) Len() int           { return len(h) }
func (h MinHeap) Less(i, j int) bool { return h[i].Less(h[j]) }
func (h MinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *MinHeap) Push(x any) { *h = append(*h, x.(types.Candidate)) }

func (h *MinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// PushCandidate is a typed wrapper around heap.Push.
func (h *MinHeap) PushCandidate(c types.Candidate) { heap.Push(h, c) }

// PopCandidate is a typed wrapper around heap.Pop.
func (h *MinHeap) PopCandidate() types.Candidate { return heap.Pop(h).(types.Candidate) }

// MaxHeap keeps the farthest of the retained candidates on top, which makes it
// cheap to evict the worst result when a closer one shows up.
type MaxHeap []types.Candidate

func (h MaxHeap) Len() int           { return len(h) }
func (h MaxHeap) Less(i, j int) bool { return h[j].Less(h[i]) }
func (h MaxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *MaxHeap) Push(x any) { *h = append(*h, x.(types.Candidate)) }

func (h *MaxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// PushCandidate is a typed wrapper around heap.Push.
func (h *MaxHeap) PushCandidate(c types.Candidate) { heap.Push(h, c) }

// PopCandidate is a typed wrapper around heap.Pop.
func (h *MaxHeap) PopCandidate() types.Candidate { return heap.Pop(h).(types.Candidate) }

// Peek returns the farthest retained candidate without removing it.
func (h MaxHeap) Peek() types.Candidate { return h[0] }

// Sorted drains the heap and returns its content in ascending order.
func (h *MaxHeap) Sorted() []types.Candidate {
	out := make([]types.Candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = h.PopCandidate()
	}
	return out
}

// NewMinHeap creates an empty min-heap with pre-allocated capacity.
func NewMinHeap(capacity int) *MinHeap {
	h := make(MinHeap, 0, capacity)
	return &h
}

// NewMaxHeap creates an empty max-heap with pre-allocated capacity.
func NewMaxHeap(capacity int) *MaxHeap {
	h := make(MaxHeap, 0, capacity)
	return &h
}
