package models

import (
	"fmt"
	"math"

	"xrayct/pkg/matrix"
)

// Scan holds every stage of one simulated CT acquisition and reconstruction
type Scan struct {
	// Angles are the projection angles in degrees, one per sinogram column
	Angles []float64

	// Density is the input density map
	Density *matrix.Matrix

	// Sinogram is the raw forward projection of Density
	Sinogram *matrix.Matrix

	// Filtered is the sinogram after the spectral filter
	Filtered *matrix.Matrix

	// Reconstruction is the backprojection of Filtered
	Reconstruction *matrix.Matrix

	// Filter is the name of the spectral filter used
	Filter string
}

// MaxAngles is the largest number of projection angles AngleRange produces
const MaxAngles = 1 << 20

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// AngleRange returns start, start+step, ... up to but excluding stop.
// Values are computed as start+i*step so that rounding does not accumulate.
func AngleRange(start, stop, step float64) ([]float64, error) {
	if !finite(start) || !finite(stop) {
		return nil, fmt.Errorf("angle range [%v, %v) must be finite", start, stop)
	}
	if step <= 0 || !finite(step) {
		return nil, fmt.Errorf("angle step must be positive, got %v", step)
	}
	if stop <= start {
		return nil, fmt.Errorf("angle range [%v, %v) is empty", start, stop)
	}
	count := math.Ceil((stop - start) / step)
	if !finite(count) || count > MaxAngles {
		return nil, fmt.Errorf("angle range [%v, %v) step %v gives more than %d angles", start, stop, step, MaxAngles)
	}
	n := int(count)
	angles := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		a := start + float64(i)*step
		if a >= stop {
			break
		}
		angles = append(angles, a)
	}
	return angles, nil
}
