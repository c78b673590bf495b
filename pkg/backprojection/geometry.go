package backprojection

import (
	"fmt"
	"math"

	"xrayct/pkg/matrix"
	"xrayct/pkg/radon"
)

const (
	dX   = 1.0
	dRho = dX / math.Sqrt2
)

// Geometry maps reconstruction pixels to detector coordinates for every
// projection angle. For pixel (m, n) at angle t the fractional detector bin
// is XC(m, t) + YS(n, t).
type Geometry struct {
	bins  int
	size  int
	count int
	xc    []float64 // size x count, row-major
	ys    []float64 // size x count, row-major
}

// NewGeometry precomputes the pixel-to-detector tables for a sinogram with
// the given number of detector bins and the given projection angles (in
// degrees). The reconstruction is square with side bins/2.
func NewGeometry(bins int, angles []float64) (*Geometry, error) {
	if bins < 2 || bins%2 != 0 {
		return nil, fmt.Errorf("backprojection: %d detector bins, want an even count >= 2: %w", bins, matrix.ErrShapeMismatch)
	}
	if len(angles) == 0 {
		return nil, fmt.Errorf("backprojection: no projection angles: %w", matrix.ErrShapeMismatch)
	}

	size := bins / 2
	count := len(angles)
	xMin := -(float64(size) - 1) / 2 * dX
	rhoMin := -(float64(bins) - 1) / 2 * dRho
	rhoOffset := rhoMin / dRho

	cosTheta := make([]float64, count)
	sinTheta := make([]float64, count)
	for t, a := range angles {
		sinTheta[t], cosTheta[t] = math.Sincos(radon.Radians(a))
	}

	g := &Geometry{
		bins:  bins,
		size:  size,
		count: count,
		xc:    make([]float64, size*count),
		ys:    make([]float64, size*count),
	}
	for m := 0; m < size; m++ {
		xRel := (xMin + float64(m)*dX) / dRho
		for t := 0; t < count; t++ {
			g.xc[m*count+t] = xRel * cosTheta[t]
			g.ys[m*count+t] = xRel*sinTheta[t] - rhoOffset
		}
	}
	return g, nil
}

// Size returns the side of the square reconstruction.
func (g *Geometry) Size() int { return g.size }

// Bins returns the number of detector bins.
func (g *Geometry) Bins() int { return g.bins }

// XC returns the row term of the detector coordinate of row m at angle t.
func (g *Geometry) XC(m, t int) float64 { return g.xc[m*g.count+t] }

// YS returns the column term, including the detector centring offset, of
// column n at angle t.
func (g *Geometry) YS(n, t int) float64 { return g.ys[n*g.count+t] }

// accumulate adds the linearly interpolated projection at angle t into dst,
// a size x size row-major buffer. Pixels whose detector coordinate falls
// outside [0, bins-1) are left alone.
func (g *Geometry) accumulate(sinogram []float64, t int, dst []float64) {
	last := g.bins - 1
	for m := 0; m < g.size; m++ {
		xc := g.xc[m*g.count+t]
		row := dst[m*g.size : (m+1)*g.size]
		for n := range row {
			rho := xc + g.ys[n*g.count+t]
			bin := math.Floor(rho)
			if bin < 0 || bin >= float64(last) {
				continue
			}
			b := int(bin)
			w := rho - bin
			row[n] += (1-w)*sinogram[b*g.count+t] + w*sinogram[(b+1)*g.count+t]
		}
	}
}
