// Package filter applies a frequency-domain kernel to every projection of a
// sinogram ahead of backprojection.
//
// Each projection (one sinogram column) is treated as a centred signal:
// it is un-shifted, transformed, re-centred so that the zero-frequency bin
// sits in the middle, multiplied by the kernel, and taken back through the
// same steps in reverse. Only the real part of the result is kept.
package filter

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"xrayct/pkg/matrix"
)

// ErrUnsupportedTransformLength is returned when a sinogram's detector bin
// count is not a power of two.
var ErrUnsupportedTransformLength = errors.New("filter: transform length is not a power of two")

// Filter holds the settings for filtering a sinogram.
type Filter struct {
	Kind    Kind
	Backend Backend
	// Workers is the number of goroutines filtering projections
	// concurrently. Values <= 0 use all CPUs.
	Workers int
}

// New returns a filter of the given kind using the default backend.
func New(kind Kind) *Filter {
	return &Filter{Kind: kind, Backend: Gonum}
}

// Apply filters every projection of sinogram with the given kernel kind.
func Apply(sinogram *matrix.Matrix, kind Kind) (*matrix.Matrix, error) {
	return New(kind).Apply(sinogram)
}

// Apply filters every column of sinogram and returns a new matrix of the
// same shape. The input is not modified.
func (f *Filter) Apply(sinogram *matrix.Matrix) (*matrix.Matrix, error) {
	if sinogram == nil {
		return nil, fmt.Errorf("filter: nil sinogram: %w", matrix.ErrInvalidDimensions)
	}
	bins, count := sinogram.Dims()
	if !isPowerOfTwo(bins) {
		return nil, fmt.Errorf("filter: sinogram has %d detector bins: %w", bins, ErrUnsupportedTransformLength)
	}
	kernel, err := Kernel(f.Kind, bins)
	if err != nil {
		return nil, err
	}

	// One projection per row, contiguous in memory.
	projections := sinogram.Transpose()
	data := projections.Values()

	workers := f.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, count)

	plans := make([]Transform, workers)
	for w := range plans {
		if plans[w], err = NewTransform(f.Backend, bins); err != nil {
			return nil, err
		}
	}

	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(plan Transform) {
			defer wg.Done()
			buf := make([]complex128, bins)
			for i := range next {
				filterVector(data[i*bins:(i+1)*bins], buf, plan, kernel)
			}
		}(plans[w])
	}
	for i := 0; i < count; i++ {
		next <- i
	}
	close(next)
	wg.Wait()

	return projections.Transpose(), nil
}

// filterVector runs the shift/transform/multiply/inverse pipeline on one
// projection in place. buf is scratch space of the same length.
func filterVector(v []float64, buf []complex128, plan Transform, kernel []float64) {
	for i, x := range v {
		buf[i] = complex(x, 0)
	}

	Unshift(buf)
	plan.Forward(buf, buf)
	Shift(buf)

	if kernel != nil {
		for i, k := range kernel {
			buf[i] = complex(real(buf[i])*k, imag(buf[i])*k)
		}
	}

	Unshift(buf)
	plan.Inverse(buf, buf)
	Shift(buf)

	for i := range v {
		v[i] = real(buf[i])
	}
}
