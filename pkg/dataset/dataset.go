package dataset

import (
	"iter"

	"github.com/sanonone/contigraph/pkg/affinity"
)

// Stats summarizes one pipeline run.
type Stats struct {
	Loaded         int
	GraphEdges     int
	Clusters       int
	InitialNoise   int
	Iterations     int
	Converged      bool
	Resolved       int
	Removed        int
	Retained       int
	RetainedEdges  int
	MustLinkEdges  int
	MustLinkPath   string
	SearchBackend  string
	DistanceKernel string
}

// Dataset is the immutable result of a pipeline run. It is safe for
// concurrent reads.
type Dataset struct {
	runID    string
	k        int
	dim      int
	records  []TrainingRecord
	affinity *affinity.Affinity
	stats    Stats
}

// New wraps assembled records. The caller must not modify records afterwards.
func New(runID string, k, dim int, records []TrainingRecord, aff *affinity.Affinity, stats Stats) *Dataset {
	return &Dataset{
		runID:    runID,
		k:        k,
		dim:      dim,
		records:  records,
		affinity: aff,
		stats:    stats,
	}
}

func (d *Dataset) RunID() string { return d.runID }
func (d *Dataset) K() int        { return d.k }
func (d *Dataset) Dim() int      { return d.dim }
func (d *Dataset) Len() int      { return len(d.records) }
func (d *Dataset) Stats() Stats  { return d.stats }

// At returns record i.
func (d *Dataset) At(i int) TrainingRecord {
	return d.records[i]
}

// All iterates over the records in order.
func (d *Dataset) All() iter.Seq2[int, TrainingRecord] {
	return func(yield func(int, TrainingRecord) bool) {
		for i, r := range d.records {
			if !yield(i, r) {
				return
			}
		}
	}
}

// Affinity returns the matrices rebuilt over the retained entities.
func (d *Dataset) Affinity() *affinity.Affinity {
	return d.affinity
}
