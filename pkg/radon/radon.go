// Package radon implements the discrete forward projection (Radon transform)
// that turns a 2D density map into a sinogram.
//
// The sinogram has 2*max(M, N) detector bins (rows) and one column per
// projection angle. Each detector bin holds the line integral of the density
// along the ray perpendicular to the detector at that bin, sampled with
// nearest-neighbour lookup and normalised by the image diagonal.
package radon

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"xrayct/pkg/matrix"
)

const (
	// dX is the pixel pitch of the density map.
	dX = 1.0
	// dRho is the detector bin pitch.
	dRho = dX / math.Sqrt2
	// regimeThreshold separates row iteration from column iteration.
	regimeThreshold = 1 / math.Sqrt2
)

// regime selects which image axis the line integral walks along. Walking
// along the axis that is closer to perpendicular to the ray keeps the slope
// of the solved index below one, so no pixel on the ray is skipped.
type regime int

const (
	// walkRows iterates image rows m and solves for the column n.
	walkRows regime = iota
	// walkColumns iterates image columns n and solves for the row m.
	walkColumns
)

func regimeFor(sinTheta float64) regime {
	if math.Abs(sinTheta) > regimeThreshold {
		return walkRows
	}
	return walkColumns
}

// roundHalfAway rounds to the nearest integer, ties away from zero.
func roundHalfAway(x float64) float64 {
	if x < 0 {
		return math.Ceil(x - 0.5)
	}
	return math.Floor(x + 0.5)
}

// Radians converts a projection angle in degrees to the detector angle used
// by both projectors, which is rotated by 90 degrees so that the detector
// axis lines up with the image axes.
func Radians(degrees float64) float64 {
	return (degrees + 90) * math.Pi / 180
}

// rho returns the signed detector coordinate of bin r out of R bins.
func rho(r, R int) float64 {
	rhoMin := -(float64(R) - 1) / 2 * dRho
	return rhoMin + float64(r)*dRho
}

// Shape returns the sinogram dimensions for a density map and angle set.
func Shape(density *matrix.Matrix, angles []float64) (bins, count int) {
	m, n := density.Dims()
	return 2 * max(m, n), len(angles)
}

// ProjectAngle computes the projection of density at angles[t] and stores it
// in column t of out. out must already have the shape returned by Shape.
func ProjectAngle(density *matrix.Matrix, angles []float64, t int, out *matrix.Matrix) error {
	if err := checkOutput(density, angles, out); err != nil {
		return err
	}
	if t < 0 || t >= len(angles) {
		return fmt.Errorf("radon: angle index %d of %d: %w", t, len(angles), matrix.ErrIndexOutOfRange)
	}
	projectColumn(density, angles[t], t, out)
	return nil
}

func checkOutput(density *matrix.Matrix, angles []float64, out *matrix.Matrix) error {
	bins, count := Shape(density, angles)
	if out == nil || !out.SameShape(bins, count) {
		got := "nil"
		if out != nil {
			got = fmt.Sprintf("%dx%d", out.Rows(), out.Cols())
		}
		return fmt.Errorf("radon: sinogram buffer is %s, want %dx%d: %w", got, bins, count, matrix.ErrShapeMismatch)
	}
	return nil
}

// projectColumn does the work of ProjectAngle once the shapes are known to
// be consistent.
func projectColumn(density *matrix.Matrix, degrees float64, t int, out *matrix.Matrix) {
	M, N := density.Dims()
	R, T := out.Dims()
	src := density.Values()
	dst := out.Values()

	xMin := -(float64(M) - 1) / 2 * dX
	yMin := -(float64(N) - 1) / 2 * dX
	diagonal := math.Sqrt(float64(M*M + N*N))

	theta := Radians(degrees)
	cosTheta := math.Cos(theta)
	sinTheta := math.Sin(theta)
	rhoOffset := xMin*cosTheta + yMin*sinTheta

	switch regimeFor(sinTheta) {
	case walkRows:
		alpha := -cosTheta / sinTheta
		for r := 0; r < R; r++ {
			beta := (rho(r, R) - rhoOffset) / (dX * sinTheta)
			sum := 0.0
			for m := 0; m < M; m++ {
				n := int(roundHalfAway(alpha*float64(m) + beta))
				if n >= 0 && n < N {
					sum += src[m*N+n]
				}
			}
			dst[r*T+t] = dX * sum / math.Abs(sinTheta) / diagonal
		}
	case walkColumns:
		alpha := -sinTheta / cosTheta
		for r := 0; r < R; r++ {
			beta := (rho(r, R) - rhoOffset) / (dX * cosTheta)
			sum := 0.0
			for n := 0; n < N; n++ {
				m := int(roundHalfAway(alpha*float64(n) + beta))
				if m >= 0 && m < M {
					sum += src[m*N+n]
				}
			}
			dst[r*T+t] = dX * sum / math.Abs(cosTheta) / diagonal
		}
	}
}

// Projector computes whole sinograms, spreading the angles over a number of
// goroutines. Every angle writes its own output column, so the workers share
// the density map read-only and never touch the same element.
type Projector struct {
	// Workers is the number of goroutines used. Values <= 0 use all CPUs.
	Workers int

	// OnAngle, if set, is called after each projected angle. It may be called
	// concurrently from several workers.
	OnAngle func(t int)
}

// NewProjector creates a projector using the given number of workers.
func NewProjector(workers int) *Projector {
	return &Projector{Workers: workers}
}

// Project computes the sinogram of density for all angles.
func Project(density *matrix.Matrix, angles []float64) (*matrix.Matrix, error) {
	return NewProjector(0).Project(density, angles)
}

// Project computes the sinogram of density for all angles.
func (p *Projector) Project(density *matrix.Matrix, angles []float64) (*matrix.Matrix, error) {
	if density == nil {
		return nil, fmt.Errorf("radon: nil density map: %w", matrix.ErrInvalidDimensions)
	}
	bins, count := Shape(density, angles)
	if count == 0 {
		return nil, fmt.Errorf("radon: no projection angles: %w", matrix.ErrInvalidDimensions)
	}
	out, err := matrix.Zeros(bins, count)
	if err != nil {
		return nil, err
	}
	if err := p.ProjectInto(density, angles, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProjectInto computes the sinogram of density into a caller-supplied buffer
// of the shape returned by Shape.
func (p *Projector) ProjectInto(density *matrix.Matrix, angles []float64, out *matrix.Matrix) error {
	if err := checkOutput(density, angles, out); err != nil {
		return err
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(angles))

	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range next {
				projectColumn(density, angles[t], t, out)
				if p.OnAngle != nil {
					p.OnAngle(t)
				}
			}
		}()
	}
	for t := range angles {
		next <- t
	}
	close(next)
	wg.Wait()

	return nil
}
