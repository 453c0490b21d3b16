package affinity

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix is an immutable square matrix in compressed sparse row form.
//
// Only graph edges are stored. At reports the diagonal as 0 and every other
// missing entry as the matrix's fill value, which is +Inf for distance
// matrices ("no edge") and 0 for weight matrices.
type Matrix struct {
	n      int
	rowPtr []int
	colIdx []int
	values []float64
	fill   float64
}

var _ mat.Matrix = (*Matrix)(nil)

// Dims returns the dimensions of the matrix.
func (m *Matrix) Dims() (r, c int) {
	return m.n, m.n
}

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) float64 {
	if i < 0 || i >= m.n || j < 0 || j >= m.n {
		panic(mat.ErrIndexOutOfRange)
	}
	cols := m.colIdx[m.rowPtr[i]:m.rowPtr[i+1]]
	// Rows are sorted by column.
	lo, hi := 0, len(cols)
	for lo < hi {
		mid := (lo + hi) / 2
		if cols[mid] < j {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(cols) && cols[lo] == j {
		return m.values[m.rowPtr[i]+lo]
	}
	if i == j {
		return 0
	}
	return m.fill
}

// T returns the implicit transpose.
func (m *Matrix) T() mat.Matrix {
	return mat.Transpose{Matrix: m}
}

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int {
	return len(m.values)
}

// Fill returns the value reported for missing off-diagonal entries.
func (m *Matrix) Fill() float64 {
	return m.fill
}

// Row returns the stored column indices and values of row i. The slices
// alias the matrix storage and must not be modified.
func (m *Matrix) Row(i int) (cols []int, vals []float64) {
	lo, hi := m.rowPtr[i], m.rowPtr[i+1]
	return m.colIdx[lo:hi:hi], m.values[lo:hi:hi]
}

// DoRowNonZero calls fn for every stored entry of row i in column order.
func (m *Matrix) DoRowNonZero(i int, fn func(j int, v float64)) {
	for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
		fn(m.colIdx[p], m.values[p])
	}
}

// IsReachable reports whether (i, j) holds a finite stored value or is the diagonal.
func (m *Matrix) IsReachable(i, j int) bool {
	return !math.IsInf(m.At(i, j), 1)
}
