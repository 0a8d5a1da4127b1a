package distance

import (
	"gonum.org/v1/gonum/mat"
)

// Matrix is a symmetric n×n distance matrix stored in a single flat buffer
// (the upper triangle of a gonum SymDense). Diagonal entries are zero.
type Matrix struct {
	sym *mat.SymDense
}

// NewMatrix returns a zeroed n×n matrix.
func NewMatrix(n int) *Matrix {
	if n == 0 {
		return &Matrix{}
	}
	return &Matrix{sym: mat.NewSymDense(n, nil)}
}

// Pairwise computes all pairwise distances of vectors under m.
// Unknown metrics fall back to Euclidean.
func Pairwise(vectors [][]float64, m Metric) *Matrix {
	fn, err := Provider(m)
	if err != nil {
		fn = L2
	}
	return PairwiseFunc(vectors, fn)
}

// PairwiseFunc computes all pairwise distances of vectors with fn.
func PairwiseFunc(vectors [][]float64, fn Func) *Matrix {
	n := len(vectors)
	out := NewMatrix(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out.sym.SetSym(i, j, fn(vectors[i], vectors[j]))
		}
	}
	return out
}

// Len returns n.
func (m *Matrix) Len() int {
	if m.sym == nil {
		return 0
	}
	return m.sym.SymmetricDim()
}

// At returns the distance between i and j.
func (m *Matrix) At(i, j int) float64 {
	return m.sym.At(i, j)
}

// Set stores the distance between i and j (and j and i).
func (m *Matrix) Set(i, j int, v float64) {
	m.sym.SetSym(i, j, v)
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	if m.sym == nil {
		return &Matrix{}
	}
	c := mat.NewSymDense(m.Len(), nil)
	c.CopySym(m.sym)
	return &Matrix{sym: c}
}

// Neighbors returns the indices j (including i itself) with At(i, j) <= eps,
// in ascending order.
func (m *Matrix) Neighbors(i int, eps float64) []int {
	n := m.Len()
	out := make([]int, 0, 8)
	for j := 0; j < n; j++ {
		if j == i || m.sym.At(i, j) <= eps {
			out = append(out, j)
		}
	}
	return out
}

// Raw exposes the underlying gonum matrix for read-only use.
func (m *Matrix) Raw() mat.Symmetric {
	return m.sym
}
