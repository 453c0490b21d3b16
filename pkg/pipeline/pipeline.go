// Package pipeline wires the stages together: load features, build the
// neighbor graph, cluster, propagate, drop ambiguous entities, export the
// must-link constraints and assemble the training dataset.
//
// A Pipeline holds no state between runs; every Build starts from scratch.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/contigraph/pkg/affinity"
	"github.com/sanonone/contigraph/pkg/cluster"
	"github.com/sanonone/contigraph/pkg/core/distance"
	"github.com/sanonone/contigraph/pkg/dataset"
	"github.com/sanonone/contigraph/pkg/features"
	"github.com/sanonone/contigraph/pkg/graph"
	"github.com/sanonone/contigraph/pkg/metrics"
	"github.com/sanonone/contigraph/pkg/persistence"
	"github.com/sanonone/contigraph/pkg/propagation"
	"github.com/sanonone/contigraph/pkg/store"
)

// ErrEmptyPopulation is returned when there is nothing to build from, either
// because the store holds no entities or because every entity was dropped as
// ambiguous.
var ErrEmptyPopulation = features.ErrEmptyPopulation

// Pipeline runs the dataset construction.
type Pipeline struct {
	cfg Config

	// Clusterer and Propagator default to DBSCAN and LabelPropagation
	// configured from cfg. They may be replaced before Build.
	Clusterer  cluster.ClusteringAlgorithm
	Propagator propagation.PropagationAlgorithm
}

// New validates cfg and returns a pipeline using the default algorithms.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg: cfg,
		Clusterer: cluster.DBSCAN{
			Eps:        cfg.Clustering.Eps,
			MinSamples: cfg.Clustering.MinSamples,
		},
		Propagator: propagation.LabelPropagation{
			SelfWeight:    cfg.Propagation.SelfWeight,
			MaxIterations: cfg.Propagation.MaxIterations,
			Tolerance:     cfg.Propagation.Tolerance,
			Clamp:         cfg.Propagation.Clamp,
			Workers:       cfg.Workers,
		},
	}, nil
}

// Config returns the configuration the pipeline was created with.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Build opens the store at cfg.DatasetPath and runs the pipeline on it.
func Build(cfg Config) (*dataset.Dataset, error) {
	p, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.DatasetPath == "" {
		return nil, &ConfigError{Field: "dataset_path", Reason: "must not be empty"}
	}
	s, err := store.Open(cfg.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	return p.Build(s)
}

// Build runs every stage on the attributes of s.
func (p *Pipeline) Build(s store.Store) (ds *dataset.Dataset, err error) {
	runID := uuid.NewString()
	log := slog.With("run_id", runID)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.PipelineRuns.WithLabelValues(outcome).Inc()
	}()

	cfg := p.cfg
	stats := dataset.Stats{
		MustLinkPath:   cfg.MustLinkPath,
		SearchBackend:  cfg.searchConfig().Algorithm,
		DistanceKernel: distance.KernelName(),
	}
	if stats.SearchBackend == "" {
		stats.SearchBackend = graph.SearchExact
	}
	log.Info("[Pipeline] Starting dataset construction", "k", cfg.K, "sigma", cfg.Sigma, "multisample", cfg.Multisample, "threshold", cfg.Threshold(), "search", stats.SearchBackend)

	// 1. Features
	start := time.Now()
	pop, err := features.Loader{Multisample: cfg.Multisample, Workers: cfg.Workers}.Load(s)
	if err != nil {
		return nil, fmt.Errorf("failed to load features: %w", err)
	}
	metrics.ObserveStage(metrics.StageLoad, start)
	metrics.Entities.WithLabelValues(metrics.StageLoad).Set(float64(len(pop.Entities)))
	stats.Loaded = len(pop.Entities)

	// 2. Neighbor graph
	start = time.Now()
	g, err := graph.Builder{
		K:         cfg.K,
		Threshold: cfg.Threshold(),
		Search:    cfg.searchConfig(),
		Workers:   cfg.Workers,
	}.Build(pop.Entities)
	if err != nil {
		return nil, fmt.Errorf("failed to build neighbor graph: %w", err)
	}
	metrics.ObserveStage(metrics.StageGraph, start)
	metrics.GraphEdges.WithLabelValues("full").Set(float64(g.EdgeCount()))
	stats.GraphEdges = g.EdgeCount()

	// 3. Affinity over the full graph
	start = time.Now()
	aff, err := affinity.Builder{Sigma: cfg.Sigma, Workers: cfg.Workers}.Build(g)
	if err != nil {
		return nil, fmt.Errorf("failed to build affinity matrices: %w", err)
	}
	metrics.ObserveStage(metrics.StageAffinity, start)

	// 4. Initial labels
	start = time.Now()
	initial, err := p.Clusterer.Fit(aff.Distance)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}
	if len(initial) != g.Len() {
		return nil, fmt.Errorf("clustering returned %d labels for %d entities", len(initial), g.Len())
	}
	metrics.ObserveStage(metrics.StageCluster, start)
	stats.Clusters, stats.InitialNoise = initial.Counts()

	// 5. Propagation
	start = time.Now()
	refined, err := p.Propagator.Propagate(initial, aff.Weight)
	if err != nil {
		return nil, fmt.Errorf("label propagation failed: %w", err)
	}
	metrics.ObserveStage(metrics.StagePropagation, start)
	metrics.PropagationIterations.Set(float64(refined.Iterations))
	if !refined.Converged {
		metrics.PropagationNotConverged.Inc()
	}
	stats.Iterations = refined.Iterations
	stats.Converged = refined.Converged
	stats.Resolved = refined.Resolved

	// 6. Ambiguity filter
	start = time.Now()
	filtered, err := cluster.AmbiguityFilter{}.Filter(g, refined.Labels)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage(metrics.StageFilter, start)
	metrics.Entities.WithLabelValues(metrics.StageFilter).Set(float64(filtered.Graph.Len()))
	metrics.GraphEdges.WithLabelValues("filtered").Set(float64(filtered.Graph.EdgeCount()))
	stats.Removed = filtered.Removed
	stats.Retained = filtered.Graph.Len()
	stats.RetainedEdges = filtered.Graph.EdgeCount()
	if filtered.Graph.Len() == 0 {
		log.Warn("[Pipeline] Every entity was filtered as noise", "loaded", stats.Loaded)
		return nil, fmt.Errorf("no entity left after filtering %d noise entities: %w", filtered.Removed, ErrEmptyPopulation)
	}

	// 7. Must-link constraints
	start = time.Now()
	written, err := persistence.Export(cfg.MustLinkPath, filtered.Graph)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage(metrics.StageMustLink, start)
	stats.MustLinkEdges = written

	// 8. Affinity over the retained entities
	start = time.Now()
	retainedAff, err := affinity.Builder{Sigma: cfg.Sigma, Workers: cfg.Workers}.Build(filtered.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild affinity matrices: %w", err)
	}
	metrics.ObserveStage(metrics.StageAffinity, start)

	// 9. Training records
	start = time.Now()
	records, err := dataset.Assembler{K: cfg.K, Sigma: cfg.Sigma, Workers: cfg.Workers}.Assemble(filtered.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble training records: %w", err)
	}
	metrics.ObserveStage(metrics.StageAssemble, start)
	metrics.Entities.WithLabelValues(metrics.StageAssemble).Set(float64(len(records)))

	ds = dataset.New(runID, cfg.K, pop.Dim(), records, retainedAff, stats)
	log.Info("[Pipeline] Dataset ready",
		"records", ds.Len(),
		"clusters", stats.Clusters,
		"removed", stats.Removed,
		"must_link_edges", stats.MustLinkEdges,
		"iterations", stats.Iterations,
		"converged", stats.Converged,
	)
	return ds, nil
}

// IsEmptyPopulation reports whether err means nothing was left to build from.
func IsEmptyPopulation(err error) bool {
	return errors.Is(err, ErrEmptyPopulation)
}
