package graph

import (
	"fmt"

	"github.com/tidwall/btree"
)

// IndexMap is the bidirectional mapping between entity ids and their
// positions in load order. It is built once and never mutated.
type IndexMap struct {
	toIndex btree.Map[int64, int]
	toID    []int64
}

// NewIndexMap indexes ids by position. Duplicate ids are rejected.
func NewIndexMap(ids []int64) (*IndexMap, error) {
	m := &IndexMap{toID: make([]int64, len(ids))}
	copy(m.toID, ids)
	for i, id := range ids {
		if _, replaced := m.toIndex.Set(id, i); replaced {
			return nil, fmt.Errorf("duplicate entity id %d", id)
		}
	}
	return m, nil
}

// Index returns the position of id.
func (m *IndexMap) Index(id int64) (int, bool) {
	return m.toIndex.Get(id)
}

// ID returns the id stored at position i.
func (m *IndexMap) ID(i int) int64 {
	return m.toID[i]
}

// Len returns the number of mapped entities.
func (m *IndexMap) Len() int {
	return len(m.toID)
}

// SortedIDs returns all ids in ascending order.
func (m *IndexMap) SortedIDs() []int64 {
	out := make([]int64, 0, m.toIndex.Len())
	m.toIndex.Scan(func(id int64, _ int) bool {
		out = append(out, id)
		return true
	})
	return out
}
