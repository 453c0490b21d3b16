// Package distance provides the squared Euclidean kernels used to compare
// entity feature vectors.
//
// Two storage precisions are supported: float32 (the canonical feature
// representation) and float16, which the approximate index can use to halve
// its memory footprint. The float32 kernel is dispatched at init time to
// either a pure Go loop or the Gonum BLAS implementation, depending on the
// SIMD features reported by the CPU.
package distance

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/klauspost/cpuid/v2"
	"github.com/x448/float16"
	"gonum.org/v1/gonum/blas/gonum"
)

// PrecisionType defines the data type used for vector storage and calculations.
type PrecisionType string

const (
	// Float32 represents single-precision floating-point numbers.
	Float32 PrecisionType = "float32"
	// Float16 represents half-precision floating-point numbers.
	Float16 PrecisionType = "float16"
)

// ErrLengthMismatch is returned when two vectors of different dimension are compared.
var ErrLengthMismatch = errors.New("vectors must have the same length")

// DistanceFuncF32 computes the squared Euclidean distance of two float32 vectors.
type DistanceFuncF32 func(v1, v2 []float32) (float64, error)

// DistanceFuncF16 computes the squared Euclidean distance of two float16 vectors
// stored as their raw bit patterns.
type DistanceFuncF16 func(v1, v2 []uint16) (float64, error)

var (
	squaredEuclideanF32 DistanceFuncF32 = squaredEuclideanGo
	squaredEuclideanF16 DistanceFuncF16 = squaredEuclideanGoFloat16
	kernelName                          = "pure go"
)

func init() {
	// Gonum's assembly kernels only pay off when wide SIMD is present.
	if cpuid.CPU.Has(cpuid.AVX2) {
		squaredEuclideanF32 = squaredEuclideanGonum
		kernelName = "gonum blas"
	}
	log.Printf("contigraph compute engine: squared euclidean (float32) using %s", kernelName)
}

// diffWorkspace pools scratch slices for the BLAS kernel so that the hot
// distance loop does not allocate.
var diffWorkspace = sync.Pool{
	New: func() interface{} {
		s := make([]float32, 128)
		return &s
	},
}

// squaredEuclideanGo is the reference implementation.
func squaredEuclideanGo(v1, v2 []float32) (float64, error) {
	if len(v1) != len(v2) {
		return 0, ErrLengthMismatch
	}
	var sum float32
	for i := range v1 {
		diff := v1[i] - v2[i]
		sum += diff * diff
	}
	return float64(sum), nil
}

var gonumEngine = gonum.Implementation{}

// squaredEuclideanGonum computes ||v1 - v2||^2 with Saxpy followed by Sdot.
func squaredEuclideanGonum(v1, v2 []float32) (float64, error) {
	n := len(v1)
	if n != len(v2) {
		return 0, ErrLengthMismatch
	}
	if n == 0 {
		return 0, nil
	}

	diffPtr := diffWorkspace.Get().(*[]float32)
	defer diffWorkspace.Put(diffPtr)
	if cap(*diffPtr) < n {
		*diffPtr = make([]float32, n)
	}
	diff := (*diffPtr)[:n]

	copy(diff, v1)
	gonumEngine.Saxpy(n, -1, v2, 1, diff, 1)
	return float64(gonumEngine.Sdot(n, diff, 1, diff, 1)), nil
}

// squaredEuclideanGoFloat16 widens each half-precision component before subtracting.
func squaredEuclideanGoFloat16(v1, v2 []uint16) (float64, error) {
	if len(v1) != len(v2) {
		return 0, ErrLengthMismatch
	}
	var sum float32
	for i := range v1 {
		diff := float16.Frombits(v1[i]).Float32() - float16.Frombits(v2[i]).Float32()
		sum += diff * diff
	}
	return float64(sum), nil
}

// SquaredEuclidean returns the active float32 kernel.
func SquaredEuclidean() DistanceFuncF32 {
	return squaredEuclideanF32
}

// SquaredEuclideanF16 returns the active float16 kernel.
func SquaredEuclideanF16() DistanceFuncF16 {
	return squaredEuclideanF16
}

// KernelName reports which float32 implementation was selected at init.
func KernelName() string {
	return kernelName
}

// ToFloat16 converts a float32 vector into its float16 bit representation.
func ToFloat16(v []float32) []uint16 {
	out := make([]uint16, len(v))
	for i, x := range v {
		out[i] = float16.Fromfloat32(x).Bits()
	}
	return out
}

// ParsePrecision validates a precision name coming from configuration.
func ParsePrecision(s string) (PrecisionType, error) {
	switch PrecisionType(s) {
	case Float32, "":
		return Float32, nil
	case Float16:
		return Float16, nil
	default:
		return "", fmt.Errorf("unsupported precision: %s", s)
	}
}
