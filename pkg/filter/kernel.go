package filter

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// Kind selects the frequency-domain kernel applied to each projection.
type Kind int

const (
	// None leaves the spectrum untouched; filtering is then the identity.
	None Kind = iota
	// Ramp multiplies the centred spectrum by an inverted-V kernel.
	Ramp
	// Hamming multiplies the Ramp kernel by a Hamming window.
	Hamming
)

var kindNames = map[Kind]string{
	None:    "none",
	Ramp:    "ramp",
	Hamming: "hamming",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a filter name ("none", "ramp" or "hamming", any case)
// to a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown filter %q (want none, ramp or hamming)", s)
}

// RampKernel returns the length-n inverted-V kernel applied to a centred
// spectrum: 1.0 at both ends falling linearly to 0.0 at the centre. The
// kernel is symmetric, k[i] == k[n-1-i], so for even n the two middle
// samples n/2-1 and n/2 are both zero. Kernels shorter than 3 samples have
// no interior and are all ones.
//
// Note that the shape suppresses frequencies near the centre of the vector,
// which after centring is the zero-frequency bin. That is the reverse of the
// textbook ramp filter; it is the shape this pipeline has always used.
func RampKernel(n int) []float64 {
	k := make([]float64, n)
	if n < 3 {
		for i := range k {
			k[i] = 1
		}
		return k
	}
	last := (n - 1) / 2
	for i := 0; i <= last; i++ {
		v := 1 - float64(i)/float64(last)
		k[i] = v
		k[n-1-i] = v
	}
	return k
}

// HammingKernel returns RampKernel(n) multiplied element-wise by a symmetric
// Hamming window of the same length.
func HammingKernel(n int) []float64 {
	k := RampKernel(n)
	if n < 2 {
		return k
	}
	return window.Hamming(k)
}

// Kernel returns the kernel for kind, or nil for None.
func Kernel(kind Kind, n int) ([]float64, error) {
	switch kind {
	case None:
		return nil, nil
	case Ramp:
		return RampKernel(n), nil
	case Hamming:
		return HammingKernel(n), nil
	default:
		return nil, fmt.Errorf("filter: unsupported kind %v", kind)
	}
}
