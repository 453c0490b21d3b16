// Package features loads entity feature vectors from an attribute store and
// normalizes them.
//
// Group A (composition features) is standardized per entity, group B
// (abundance features) is standardized per dimension across the population
// only when several samples contribute to it.
package features

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/sanonone/contigraph/pkg/core/workers"
	"github.com/sanonone/contigraph/pkg/store"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrValidation wraps every data-validation failure of the input store.
	ErrValidation = errors.New("data validation failed")
	// ErrShapeMismatch is returned when feature matrices do not line up with the id list.
	ErrShapeMismatch = errors.New("feature shape mismatch")
	// ErrEmptyPopulation is returned when there are no entities to work with.
	ErrEmptyPopulation = errors.New("empty entity population")
)

// RawEntity is an entity as loaded: its id and normalized feature vector.
type RawEntity struct {
	ID      int64
	Feature []float32
}

// Population is the ordered output of the loader.
type Population struct {
	Entities []RawEntity
	DimA     int
	DimB     int
}

// Dim is the full feature dimension.
func (p *Population) Dim() int {
	return p.DimA + p.DimB
}

// Loader reads and normalizes features.
type Loader struct {
	// Multisample enables column-wise standardization of group B.
	Multisample bool
	// Workers bounds the normalization parallelism. Zero means one per CPU.
	Workers int
}

// Load reads the id list and both feature groups from s.
func (l Loader) Load(s store.Store) (*Population, error) {
	for _, key := range []string{store.KeyIDs, store.KeyFeatureA, store.KeyFeatureB} {
		if !s.Has(key) {
			return nil, fmt.Errorf("%w: %w: %s", ErrValidation, store.ErrAttributeMissing, key)
		}
	}

	var rawIDs []float64
	var groupA, groupB [][]float64
	if err := s.Decode(store.KeyIDs, &rawIDs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.Decode(store.KeyFeatureA, &groupA); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.Decode(store.KeyFeatureB, &groupB); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	n := len(rawIDs)
	if n == 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidation, ErrEmptyPopulation)
	}
	if len(groupA) != n || len(groupB) != n {
		return nil, fmt.Errorf("%w: %w: %d ids, %d rows in %s, %d rows in %s",
			ErrValidation, ErrShapeMismatch, n, len(groupA), store.KeyFeatureA, len(groupB), store.KeyFeatureB)
	}
	dimA, err := rowWidth(groupA, store.KeyFeatureA)
	if err != nil {
		return nil, err
	}
	dimB, err := rowWidth(groupB, store.KeyFeatureB)
	if err != nil {
		return nil, err
	}

	ids, err := parseIDs(rawIDs)
	if err != nil {
		return nil, err
	}

	if l.Multisample {
		zscoreColumns(groupB, l.Workers)
	}

	entities := make([]RawEntity, n)
	err = workers.ForEach(l.Workers, n, func(i int) error {
		zscoreInPlace(groupA[i])
		feature := make([]float32, 0, dimA+dimB)
		for _, v := range groupA[i] {
			feature = append(feature, float32(v))
		}
		for _, v := range groupB[i] {
			feature = append(feature, float32(v))
		}
		entities[i] = RawEntity{ID: ids[i], Feature: feature}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("[Features] Loaded entities", "entities", n, "dim_a", dimA, "dim_b", dimB, "multisample", l.Multisample)
	return &Population{Entities: entities, DimA: dimA, DimB: dimB}, nil
}

// rowWidth checks that every row of m has the same width and returns it.
func rowWidth(m [][]float64, key string) (int, error) {
	width := len(m[0])
	for i, row := range m {
		if len(row) != width {
			return 0, fmt.Errorf("%w: %w: row %d of %s has %d values, expected %d",
				ErrValidation, ErrShapeMismatch, i, key, len(row), width)
		}
	}
	return width, nil
}

// parseIDs converts numeric ids to integers, rejecting fractional and duplicate values.
func parseIDs(raw []float64) ([]int64, error) {
	ids := make([]int64, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	for i, v := range raw {
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: id at position %d is not an integer: %v", ErrValidation, i, v)
		}
		id := int64(v)
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrValidation, id)
		}
		seen[id] = struct{}{}
		ids[i] = id
	}
	return ids, nil
}

// zscoreInPlace standardizes x with the population standard deviation.
// A constant vector is only centered.
func zscoreInPlace(x []float64) {
	if len(x) == 0 {
		return
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	if std == 0 {
		std = 1
	}
	floats.AddConst(-mean, x)
	floats.Scale(1/std, x)
}

// zscoreColumns standardizes each column of m across rows.
func zscoreColumns(m [][]float64, nWorkers int) {
	if len(m) == 0 {
		return
	}
	_ = workers.ForEach(nWorkers, len(m[0]), func(j int) error {
		col := make([]float64, len(m))
		for i := range m {
			col[i] = m[i][j]
		}
		zscoreInPlace(col)
		for i := range m {
			m[i][j] = col[i]
		}
		return nil
	})
}
