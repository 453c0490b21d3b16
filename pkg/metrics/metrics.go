// Package metrics holds the Prometheus collectors updated by the pipeline.
// Collectors are registered on the default registry through promauto;
// exposing them is up to the embedding process.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 1. Stage Duration (Histogram)
	// Wall time of each pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "contigraph_stage_duration_seconds",
			Help: "Duration of pipeline stages in seconds",
			// From a few milliseconds (filtering) to minutes (graph on large populations)
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"stage"},
	)

	// 2. Entities (Gauge)
	// Entity count leaving each stage of the last run.
	Entities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "contigraph_entities",
			Help: "Number of entities after each pipeline stage",
		},
		[]string{"stage"},
	)

	// 3. Graph Edges (Gauge)
	GraphEdges = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "contigraph_graph_edges",
			Help: "Number of directed neighbor edges",
		},
		[]string{"graph"}, // "full" or "filtered"
	)

	// 4. Propagation Iterations (Gauge)
	PropagationIterations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "contigraph_propagation_iterations",
			Help: "Iterations run by the last label propagation",
		},
	)

	// 5. Non-convergence (Counter)
	// Incremented every time propagation stops at the iteration cap.
	PropagationNotConverged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contigraph_propagation_not_converged_total",
			Help: "Label propagation runs that hit the iteration cap",
		},
	)

	// 6. Pipeline Runs (Counter)
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contigraph_pipeline_runs_total",
			Help: "Pipeline builds by outcome",
		},
		[]string{"outcome"}, // "ok" or "error"
	)
)

// Stage names used as label values.
const (
	StageLoad        = "load"
	StageGraph       = "graph"
	StageAffinity    = "affinity"
	StageCluster     = "cluster"
	StagePropagation = "propagation"
	StageFilter      = "filter"
	StageMustLink    = "must_link"
	StageAssemble    = "assemble"
)

// ObserveStage records the time elapsed since start for stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
