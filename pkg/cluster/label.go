// Package cluster assigns provisional cluster labels from the precomputed
// distance matrix and removes entities that remain unassigned.
package cluster

import "strconv"

// Label is either Noise or a cluster id. The zero value is Noise, so an
// unassigned entity can never be mistaken for cluster 0.
type Label struct {
	id       int
	assigned bool
}

// Noise returns the unassigned label.
func Noise() Label {
	return Label{}
}

// Cluster returns the label of cluster id. Cluster ids are non-negative.
func Cluster(id int) Label {
	if id < 0 {
		panic("cluster: negative cluster id " + strconv.Itoa(id))
	}
	return Label{id: id, assigned: true}
}

// IsNoise reports whether the label is unassigned.
func (l Label) IsNoise() bool {
	return !l.assigned
}

// ClusterID returns the cluster id and true, or 0 and false for Noise.
func (l Label) ClusterID() (int, bool) {
	return l.id, l.assigned
}

func (l Label) String() string {
	if !l.assigned {
		return "noise"
	}
	return "cluster(" + strconv.Itoa(l.id) + ")"
}

// Labeling maps entity position to label.
type Labeling []Label

// Clone returns an independent copy.
func (ls Labeling) Clone() Labeling {
	out := make(Labeling, len(ls))
	copy(out, ls)
	return out
}

// Counts returns the number of distinct clusters and of noise entities.
func (ls Labeling) Counts() (clusters, noise int) {
	seen := make(map[int]struct{})
	for _, l := range ls {
		if id, ok := l.ClusterID(); ok {
			seen[id] = struct{}{}
		} else {
			noise++
		}
	}
	return len(seen), noise
}

// Equal reports whether both labelings assign the same label everywhere.
func (ls Labeling) Equal(other Labeling) bool {
	if len(ls) != len(other) {
		return false
	}
	for i := range ls {
		if ls[i] != other[i] {
			return false
		}
	}
	return true
}
