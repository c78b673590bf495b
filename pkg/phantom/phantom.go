// Package phantom generates synthetic density maps used to exercise the
// reconstruction pipeline. All phantoms are square, centred on the same
// pixel-centre origin the projectors use ((size-1)/2 along each axis), and
// hold densities in [0, 1].
package phantom

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"xrayct/pkg/matrix"
)

// Ellipse describes one layer of an ellipse phantom. Positions and axes are
// fractions of the phantom size, with x pointing right, y pointing up and
// the origin in the centre of the image.
type Ellipse struct {
	CenterX, CenterY float64
	// Width and Height are the full extents of the ellipse before rotation.
	Width, Height float64
	// Rotation is counter-clockwise, in radians.
	Rotation float64
	// Value is the density painted inside the ellipse.
	Value float64
	// Alpha blends Value over what earlier layers painted. Zero means opaque.
	Alpha float64
}

func (e Ellipse) contains(x, y float64) bool {
	dx := x - e.CenterX
	dy := y - e.CenterY
	s, c := math.Sincos(-e.Rotation)
	u := dx*c - dy*s
	v := dx*s + dy*c
	a := e.Width / 2
	b := e.Height / 2
	return (u*u)/(a*a)+(v*v)/(b*b) <= 1
}

// Grey levels of the head phantom layers.
const (
	white     = 1.0
	lightGray = 2.0 / 3.0
	gray      = 0.5
	darkGray  = 1.0 / 3.0
	black     = 0.0
)

// HeadLayers is a ten-ellipse head phantom: skull, brain, two tilted
// ventricles, a bright upper region and a handful of small lesions.
var HeadLayers = []Ellipse{
	{CenterX: 0, CenterY: 0, Width: 0.69, Height: 0.92, Value: white},
	{CenterX: 0, CenterY: -0.0092, Width: 0.6224, Height: 0.874, Value: darkGray},
	{CenterX: 0.11, CenterY: 0, Width: 0.11, Height: 0.31, Rotation: -0.314159, Value: black, Alpha: 0.8},
	{CenterX: -0.11, CenterY: 0, Width: 0.16, Height: 0.41, Rotation: 0.314159, Value: black, Alpha: 0.8},
	{CenterX: 0, CenterY: 0.175, Width: 0.21, Height: 0.25, Value: white, Alpha: 0.4},
	{CenterX: 0, CenterY: 0.05, Width: 0.046, Height: 0.046, Value: lightGray, Alpha: 0.4},
	{CenterX: 0, CenterY: -0.05, Width: 0.046, Height: 0.046, Value: lightGray, Alpha: 0.4},
	{CenterX: -0.04, CenterY: -0.3025, Width: 0.046, Height: 0.023, Value: gray, Alpha: 0.6},
	{CenterX: 0, CenterY: -0.3025, Width: 0.023, Height: 0.023, Value: gray, Alpha: 0.6},
	{CenterX: 0.03, CenterY: -0.3025, Width: 0.023, Height: 0.046, Value: lightGray, Alpha: 0.4},
}

// Ellipses paints the layers in order onto a size x size black background.
func Ellipses(size int, layers []Ellipse) (*matrix.Matrix, error) {
	m, err := matrix.Zeros(size, size)
	if err != nil {
		return nil, fmt.Errorf("phantom: %w", err)
	}
	values := m.Values()
	c := (float64(size) - 1) / 2
	for row := 0; row < size; row++ {
		y := (c - float64(row)) / float64(size)
		for col := 0; col < size; col++ {
			x := (float64(col) - c) / float64(size)
			v := values[row*size+col]
			for _, e := range layers {
				if !e.contains(x, y) {
					continue
				}
				if e.Alpha <= 0 || e.Alpha >= 1 {
					v = e.Value
				} else {
					v = (1-e.Alpha)*v + e.Alpha*e.Value
				}
			}
			values[row*size+col] = v
		}
	}
	return m, nil
}

// HeadPhantom returns the head phantom at the given resolution.
func HeadPhantom(size int) (*matrix.Matrix, error) {
	return Ellipses(size, HeadLayers)
}

// Disk returns a uniform disk of the given radius (in pixels) centred in a
// size x size image.
func Disk(size int, radius, value float64) (*matrix.Matrix, error) {
	m, err := matrix.Zeros(size, size)
	if err != nil {
		return nil, fmt.Errorf("phantom: %w", err)
	}
	values := m.Values()
	c := (float64(size) - 1) / 2
	r2 := radius * radius
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			dy := float64(row) - c
			dx := float64(col) - c
			if dx*dx+dy*dy <= r2 {
				values[row*size+col] = value
			}
		}
	}
	return m, nil
}

// Square returns a centred square block of side pixels with the given value
// on a zero background. When size and side differ in parity the block sits
// half a pixel towards the origin.
func Square(size, side int, value float64) (*matrix.Matrix, error) {
	if side < 0 || side > size {
		return nil, fmt.Errorf("phantom: square side %d does not fit in %d: %w", side, size, matrix.ErrInvalidDimensions)
	}
	m, err := matrix.Zeros(size, size)
	if err != nil {
		return nil, fmt.Errorf("phantom: %w", err)
	}
	lo, hi := SquareBounds(size, side)
	values := m.Values()
	for row := lo; row < hi; row++ {
		for col := lo; col < hi; col++ {
			values[row*size+col] = value
		}
	}
	return m, nil
}

// SquareBounds returns the half-open index range [lo, hi) covered by a
// centred square of the given side along either axis.
func SquareBounds(size, side int) (lo, hi int) {
	lo = (size - side) / 2
	return lo, lo + side
}

var generators = map[string]func(size int) (*matrix.Matrix, error){
	"head": HeadPhantom,
	"disk": func(size int) (*matrix.Matrix, error) {
		return Disk(size, float64(size)/3, 1)
	},
	"square": func(size int) (*matrix.Matrix, error) {
		return Square(size, size/4, 1)
	},
}

// Names lists the phantoms known to ByName.
func Names() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByName builds one of the named phantoms.
func ByName(name string, size int) (*matrix.Matrix, error) {
	gen, ok := generators[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown phantom %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return gen(size)
}
