// Package backprojection reconstructs an image from a (filtered) sinogram.
//
// Every projection is smeared back across the image plane: each pixel looks
// up its detector coordinate for that angle, interpolates the projection
// linearly between the two neighbouring bins, and adds the value. Summing
// over all angles is a Riemann sum of the continuous backprojection
// integral.
//
// No angular step factor (such as pi/T) is applied, so reconstructed
// intensities grow linearly with the number of angles. Callers comparing
// reconstructions made with different angle counts must normalise
// themselves.
package backprojection

import (
	"fmt"
	"runtime"
	"sync"

	"xrayct/pkg/matrix"
)

func validate(sinogram *matrix.Matrix, angles []float64) error {
	if sinogram == nil {
		return fmt.Errorf("backprojection: nil sinogram: %w", matrix.ErrShapeMismatch)
	}
	if sinogram.Cols() != len(angles) {
		return fmt.Errorf("backprojection: sinogram has %d projections for %d angles: %w",
			sinogram.Cols(), len(angles), matrix.ErrShapeMismatch)
	}
	return nil
}

// Contribution returns the backprojection of the single projection at
// angles[t] as a new (rows/2) x (rows/2) matrix. It has no side effects, so
// contributions for different angles may be computed concurrently and summed
// in any order.
func Contribution(sinogram *matrix.Matrix, angles []float64, t int) (*matrix.Matrix, error) {
	if err := validate(sinogram, angles); err != nil {
		return nil, err
	}
	if t < 0 || t >= len(angles) {
		return nil, fmt.Errorf("backprojection: angle index %d of %d: %w", t, len(angles), matrix.ErrIndexOutOfRange)
	}
	g, column, err := single(sinogram, angles, t)
	if err != nil {
		return nil, err
	}
	out, err := matrix.Zeros(g.size, g.size)
	if err != nil {
		return nil, err
	}
	g.accumulate(column, 0, out.Values())
	return out, nil
}

// Accumulate adds the contribution of angles[t] into acc, which must be a
// square matrix of side sinogram.Rows()/2. acc is not modified if any
// argument is invalid.
func Accumulate(sinogram *matrix.Matrix, angles []float64, t int, acc *matrix.Matrix) error {
	if err := validate(sinogram, angles); err != nil {
		return err
	}
	if t < 0 || t >= len(angles) {
		return fmt.Errorf("backprojection: angle index %d of %d: %w", t, len(angles), matrix.ErrIndexOutOfRange)
	}
	g, column, err := single(sinogram, angles, t)
	if err != nil {
		return err
	}
	if err := checkAccumulator(g, acc); err != nil {
		return err
	}
	g.accumulate(column, 0, acc.Values())
	return nil
}

// single builds the geometry of angles[t] alone, together with the matching
// projection, so one angle costs O(size) table entries rather than a table
// for every angle.
func single(sinogram *matrix.Matrix, angles []float64, t int) (*Geometry, []float64, error) {
	g, err := NewGeometry(sinogram.Rows(), angles[t:t+1])
	if err != nil {
		return nil, nil, err
	}
	column, err := sinogram.Col(t)
	if err != nil {
		return nil, nil, err
	}
	return g, column, nil
}

func checkAccumulator(g *Geometry, acc *matrix.Matrix) error {
	if acc == nil || !acc.SameShape(g.size, g.size) {
		got := "nil"
		if acc != nil {
			got = fmt.Sprintf("%dx%d", acc.Rows(), acc.Cols())
		}
		return fmt.Errorf("backprojection: accumulator is %s, want %dx%d: %w", got, g.size, g.size, matrix.ErrShapeMismatch)
	}
	return nil
}

// BackProjector reconstructs images by summing per-angle contributions
// over several goroutines. Each goroutine owns a private partial sum over a
// contiguous block of angles; the partial sums are added once all of them
// are done, so no accumulator is ever shared.
type BackProjector struct {
	// Workers is the number of goroutines used. Values <= 0 use all CPUs.
	Workers int

	// OnAngle, if set, is called after each angle has been added to a
	// partial sum. It may be called concurrently.
	OnAngle func(t int)
}

// NewBackProjector creates a back projector using the given number of
// workers.
func NewBackProjector(workers int) *BackProjector {
	return &BackProjector{Workers: workers}
}

// BackProject reconstructs the image described by sinogram and angles.
func BackProject(sinogram *matrix.Matrix, angles []float64) (*matrix.Matrix, error) {
	return NewBackProjector(0).BackProject(sinogram, angles)
}

// BackProject reconstructs the image described by sinogram and angles.
func (bp *BackProjector) BackProject(sinogram *matrix.Matrix, angles []float64) (*matrix.Matrix, error) {
	indices := make([]int, len(angles))
	for i := range indices {
		indices[i] = i
	}
	return bp.Sum(sinogram, angles, indices)
}

// Sum returns the sum of the contributions of the angles listed in
// indices. Splitting the index set into batches and adding the returned
// matrices gives the same reconstruction as BackProject up to rounding.
func (bp *BackProjector) Sum(sinogram *matrix.Matrix, angles []float64, indices []int) (*matrix.Matrix, error) {
	if err := validate(sinogram, angles); err != nil {
		return nil, err
	}
	for _, t := range indices {
		if t < 0 || t >= len(angles) {
			return nil, fmt.Errorf("backprojection: angle index %d of %d: %w", t, len(angles), matrix.ErrIndexOutOfRange)
		}
	}
	g, err := NewGeometry(sinogram.Rows(), angles)
	if err != nil {
		return nil, err
	}

	result, err := matrix.Zeros(g.size, g.size)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return result, nil
	}

	workers := bp.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(indices))
	perWorker := (len(indices) + workers - 1) / workers

	partials := make([]*matrix.Matrix, workers)
	for w := range partials {
		if partials[w], err = matrix.Zeros(g.size, g.size); err != nil {
			return nil, err
		}
	}

	src := sinogram.Values()
	var wg sync.WaitGroup
	for w, partial := range partials {
		start := w * perWorker
		end := min(start+perWorker, len(indices))
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(block []int, dst []float64) {
			defer wg.Done()
			for _, t := range block {
				g.accumulate(src, t, dst)
				if bp.OnAngle != nil {
					bp.OnAngle(t)
				}
			}
		}(indices[start:end], partial.Values())
	}
	wg.Wait()

	for _, p := range partials {
		if err := result.Add(p); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Frames backprojects the angles one at a time in order, calling fn with
// the running reconstruction after each one. The matrix passed to fn is
// the live accumulator; clone it to keep a frame. A non-nil error from fn
// stops the reconstruction and is returned.
func Frames(sinogram *matrix.Matrix, angles []float64, fn func(t int, partial *matrix.Matrix) error) (*matrix.Matrix, error) {
	if err := validate(sinogram, angles); err != nil {
		return nil, err
	}
	g, err := NewGeometry(sinogram.Rows(), angles)
	if err != nil {
		return nil, err
	}
	acc, err := matrix.Zeros(g.size, g.size)
	if err != nil {
		return nil, err
	}
	src := sinogram.Values()
	for t := range angles {
		g.accumulate(src, t, acc.Values())
		if fn != nil {
			if err := fn(t, acc); err != nil {
				return nil, err
			}
		}
	}
	return acc, nil
}
