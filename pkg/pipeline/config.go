package pipeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/sanonone/contigraph/pkg/cluster"
	"github.com/sanonone/contigraph/pkg/core/distance"
	"github.com/sanonone/contigraph/pkg/core/hnsw"
	"github.com/sanonone/contigraph/pkg/graph"
	"github.com/sanonone/contigraph/pkg/propagation"
)

// Config holds every tunable of a pipeline run.
type Config struct {
	// Attribute store root (zarr directory, .json or .yaml file).
	DatasetPath  string `yaml:"dataset_path"`
	MustLinkPath string `yaml:"must_link_path"`

	K           int     `yaml:"k"`     // max neighbors per entity
	Sigma       float64 `yaml:"sigma"` // Gaussian kernel bandwidth
	Multisample bool    `yaml:"multisample"`
	// DistanceThreshold drops neighbors at or beyond this squared distance.
	// Zero derives it from Multisample.
	DistanceThreshold float64 `yaml:"distance_threshold"`
	Workers           int     `yaml:"workers"` // 0 = one per CPU

	Search      SearchConfig      `yaml:"search"`
	Clustering  ClusteringConfig  `yaml:"clustering"`
	Propagation PropagationConfig `yaml:"propagation"`
}

type SearchConfig struct {
	Algorithm      string `yaml:"algorithm"` // "exact" or "hnsw"
	M              int    `yaml:"m"`
	EfConstruction int    `yaml:"ef_construction"`
	EfSearch       int    `yaml:"ef_search"`
	Precision      string `yaml:"precision"` // "float32" or "float16"
	Seed           int64  `yaml:"seed"`
}

type ClusteringConfig struct {
	Eps        float64 `yaml:"eps"`
	MinSamples int     `yaml:"min_samples"`
}

type PropagationConfig struct {
	SelfWeight    float64 `yaml:"self_weight"`
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
	Clamp         bool    `yaml:"clamp"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	h := hnsw.DefaultConfig()
	return Config{
		MustLinkPath: "must_link.csv",
		K:            3,
		Sigma:        1.0,
		Search: SearchConfig{
			Algorithm:      graph.SearchExact,
			M:              h.M,
			EfConstruction: h.EfConstruction,
			EfSearch:       h.EfSearch,
			Precision:      string(h.Precision),
			Seed:           h.Seed,
		},
		Clustering: ClusteringConfig{
			Eps:        cluster.DefaultEps,
			MinSamples: cluster.DefaultMinSamples,
		},
		Propagation: PropagationConfig{
			SelfWeight:    propagation.DefaultSelfWeight,
			MaxIterations: propagation.DefaultMaxIterations,
			Tolerance:     propagation.DefaultTolerance,
			Clamp:         true,
		},
	}
}

// Threshold returns the effective distance threshold.
func (c Config) Threshold() float64 {
	if c.DistanceThreshold > 0 {
		return c.DistanceThreshold
	}
	return graph.ThresholdFor(c.Multisample)
}

// ConfigError describes one malformed configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// Validate reports every malformed value, joined. It does not touch the
// filesystem.
func (c Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...any) {
		errs = append(errs, &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}
	positive := func(field string, v float64) {
		if !(v > 0) || math.IsInf(v, 0) {
			bad(field, "must be positive, got %v", v)
		}
	}

	if c.K <= 0 {
		bad("k", "must be positive, got %d", c.K)
	}
	positive("sigma", c.Sigma)
	if c.DistanceThreshold < 0 || math.IsNaN(c.DistanceThreshold) {
		bad("distance_threshold", "must be zero (derived) or positive, got %v", c.DistanceThreshold)
	}
	if c.Workers < 0 {
		bad("workers", "must be zero (one per CPU) or positive, got %d", c.Workers)
	}
	if c.MustLinkPath == "" {
		bad("must_link_path", "must not be empty")
	}

	switch c.Search.Algorithm {
	case graph.SearchExact, "":
	case graph.SearchHNSW:
		if c.Search.M < 2 {
			bad("search.m", "must be at least 2, got %d", c.Search.M)
		}
		if c.Search.EfConstruction < 0 {
			bad("search.ef_construction", "must not be negative, got %d", c.Search.EfConstruction)
		}
		if c.Search.EfSearch < 0 {
			bad("search.ef_search", "must not be negative, got %d", c.Search.EfSearch)
		}
	default:
		bad("search.algorithm", "unknown algorithm %q", c.Search.Algorithm)
	}
	if _, err := distance.ParsePrecision(c.Search.Precision); err != nil {
		bad("search.precision", "%v", err)
	}

	positive("clustering.eps", c.Clustering.Eps)
	if c.Clustering.MinSamples < 1 {
		bad("clustering.min_samples", "must be at least 1, got %d", c.Clustering.MinSamples)
	}

	if c.Propagation.SelfWeight < 0 || math.IsNaN(c.Propagation.SelfWeight) {
		bad("propagation.self_weight", "must not be negative, got %v", c.Propagation.SelfWeight)
	}
	if c.Propagation.MaxIterations < 1 {
		bad("propagation.max_iterations", "must be at least 1, got %d", c.Propagation.MaxIterations)
	}
	if c.Propagation.Tolerance < 0 || math.IsNaN(c.Propagation.Tolerance) {
		bad("propagation.tolerance", "must not be negative, got %v", c.Propagation.Tolerance)
	}

	return errors.Join(errs...)
}

func (c Config) searchConfig() graph.SearchConfig {
	precision, _ := distance.ParsePrecision(c.Search.Precision)
	return graph.SearchConfig{
		Algorithm: c.Search.Algorithm,
		HNSW: hnsw.Config{
			M:              c.Search.M,
			EfConstruction: c.Search.EfConstruction,
			EfSearch:       c.Search.EfSearch,
			Precision:      precision,
			Seed:           c.Search.Seed,
		},
	}
}
