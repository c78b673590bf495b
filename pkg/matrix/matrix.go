// Package matrix provides the dense, row-major real matrix shared by every
// stage of the reconstruction pipeline: density maps, sinograms and
// reconstructed images are all Matrix values.
package matrix

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidDimensions is returned when the number of values does not
	// match rows*columns or a dimension is not positive.
	ErrInvalidDimensions = errors.New("matrix: invalid dimensions")

	// ErrShapeMismatch is returned when two matrices (or a matrix and a
	// caller-supplied buffer) disagree on their dimensions.
	ErrShapeMismatch = errors.New("matrix: shape mismatch")

	// ErrIndexOutOfRange is returned for element access outside the matrix.
	ErrIndexOutOfRange = errors.New("matrix: index out of range")
)

// Matrix is a fixed-size dense matrix of float64 values stored in row-major
// order, element (r, c) living at Values()[r*Cols()+c].
//
// The storage is a gonum mat.Dense whose stride always equals the number of
// columns, so the raw slice can be indexed directly by the numeric packages.
type Matrix struct {
	dense *mat.Dense
	rows  int
	cols  int
}

// New creates a matrix that adopts values as its backing store.
func New(rows, cols int, values []float64) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, rows, cols)
	}
	if len(values) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for a %dx%d matrix", ErrInvalidDimensions, len(values), rows, cols)
	}
	return &Matrix{dense: mat.NewDense(rows, cols, values), rows: rows, cols: cols}, nil
}

// NewFilled creates a rows x cols matrix with every element set to v.
func NewFilled(rows, cols int, v float64) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, rows, cols)
	}
	values := make([]float64, rows*cols)
	if v != 0 {
		for i := range values {
			values[i] = v
		}
	}
	return New(rows, cols, values)
}

// Zeros creates a zero-filled rows x cols matrix.
func Zeros(rows, cols int) (*Matrix, error) {
	return NewFilled(rows, cols, 0)
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (rows, cols int) {
	return m.rows, m.cols
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// Values returns the row-major backing slice. Writes through it are visible
// in the matrix.
func (m *Matrix) Values() []float64 {
	return m.dense.RawMatrix().Data
}

// Dense exposes the gonum view of the matrix for use with gonum routines.
func (m *Matrix) Dense() *mat.Dense {
	return m.dense
}

func (m *Matrix) checkIndex(r, c int) error {
	if r < 0 || r >= m.rows || c < 0 || c >= m.cols {
		return fmt.Errorf("%w: (%d, %d) in %dx%d", ErrIndexOutOfRange, r, c, m.rows, m.cols)
	}
	return nil
}

// At returns element (r, c).
func (m *Matrix) At(r, c int) (float64, error) {
	if err := m.checkIndex(r, c); err != nil {
		return 0, err
	}
	return m.Values()[r*m.cols+c], nil
}

// Set assigns v to element (r, c).
func (m *Matrix) Set(r, c int, v float64) error {
	if err := m.checkIndex(r, c); err != nil {
		return err
	}
	m.Values()[r*m.cols+c] = v
	return nil
}

// Transpose returns a new matrix with rows and columns swapped.
func (m *Matrix) Transpose() *Matrix {
	out := mat.NewDense(m.cols, m.rows, nil)
	out.Copy(m.dense.T())
	return &Matrix{dense: out, rows: m.cols, cols: m.rows}
}

// Scale multiplies every element by k in place and returns m.
func (m *Matrix) Scale(k float64) *Matrix {
	m.dense.Scale(k, m.dense)
	return m
}

// Add adds other to m element-wise in place.
func (m *Matrix) Add(other *Matrix) error {
	if other.rows != m.rows || other.cols != m.cols {
		return fmt.Errorf("%w: cannot add %dx%d to %dx%d", ErrShapeMismatch, other.rows, other.cols, m.rows, m.cols)
	}
	m.dense.Add(m.dense, other.dense)
	return nil
}

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	values := make([]float64, len(m.Values()))
	copy(values, m.Values())
	return &Matrix{dense: mat.NewDense(m.rows, m.cols, values), rows: m.rows, cols: m.cols}
}

// Equal reports whether m and other have the same shape and every element
// pair differs by at most tol.
func (m *Matrix) Equal(other *Matrix, tol float64) bool {
	if other == nil || other.rows != m.rows || other.cols != m.cols {
		return false
	}
	return mat.EqualApprox(m.dense, other.dense, tol)
}

// Row returns a copy of row r.
func (m *Matrix) Row(r int) ([]float64, error) {
	if err := m.checkIndex(r, 0); err != nil {
		return nil, err
	}
	return mat.Row(nil, r, m.dense), nil
}

// Col returns a copy of column c.
func (m *Matrix) Col(c int) ([]float64, error) {
	if err := m.checkIndex(0, c); err != nil {
		return nil, err
	}
	return mat.Col(nil, c, m.dense), nil
}

// SetCol overwrites column c with v.
func (m *Matrix) SetCol(c int, v []float64) error {
	if err := m.checkIndex(0, c); err != nil {
		return err
	}
	if len(v) != m.rows {
		return fmt.Errorf("%w: column of length %d for %d rows", ErrShapeMismatch, len(v), m.rows)
	}
	m.dense.SetCol(c, v)
	return nil
}

// Max returns the largest element.
func (m *Matrix) Max() float64 { return floats.Max(m.Values()) }

// Min returns the smallest element.
func (m *Matrix) Min() float64 { return floats.Min(m.Values()) }

// ArgMax returns the position of the largest element. Ties resolve to the
// first occurrence in row-major order.
func (m *Matrix) ArgMax() (r, c int) {
	idx := floats.MaxIdx(m.Values())
	return idx / m.cols, idx % m.cols
}

// SameShape reports whether m has the given dimensions.
func (m *Matrix) SameShape(rows, cols int) bool {
	return m.rows == rows && m.cols == cols
}
