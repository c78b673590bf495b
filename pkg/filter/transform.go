package filter

import (
	"fmt"
	"strings"

	godsp "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Backend selects the FFT implementation used by the filter.
type Backend int

const (
	// Gonum uses gonum's FFTPACK port. It is the default.
	Gonum Backend = iota
	// GoDSP uses github.com/mjibson/go-dsp.
	GoDSP
)

func (b Backend) String() string {
	switch b {
	case Gonum:
		return "gonum"
	case GoDSP:
		return "godsp"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// ParseBackend converts "gonum" or "godsp" to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gonum":
		return Gonum, nil
	case "godsp", "go-dsp":
		return GoDSP, nil
	default:
		return Gonum, fmt.Errorf("unknown FFT backend %q (want gonum or godsp)", s)
	}
}

// Transform is a complex discrete Fourier transform of a fixed length.
// Forward is unnormalised and Inverse scales by 1/n, so Inverse(Forward(x))
// returns x. Both may be called with dst and src aliased.
//
// A Transform may keep scratch space and is not safe for concurrent use;
// create one per goroutine.
type Transform interface {
	Len() int
	Forward(dst, src []complex128)
	Inverse(dst, src []complex128)
}

// NewTransform creates a transform of length n for the given backend.
func NewTransform(backend Backend, n int) (Transform, error) {
	if !isPowerOfTwo(n) {
		return nil, fmt.Errorf("filter: transform length %d: %w", n, ErrUnsupportedTransformLength)
	}
	switch backend {
	case Gonum:
		return &gonumTransform{fft: fourier.NewCmplxFFT(n), n: n}, nil
	case GoDSP:
		return goDSPTransform{n: n}, nil
	default:
		return nil, fmt.Errorf("filter: unsupported backend %v", backend)
	}
}

type gonumTransform struct {
	fft *fourier.CmplxFFT
	n   int
}

func (t *gonumTransform) Len() int { return t.n }

func (t *gonumTransform) Forward(dst, src []complex128) {
	t.fft.Coefficients(dst, src)
}

func (t *gonumTransform) Inverse(dst, src []complex128) {
	t.fft.Sequence(dst, src)
	scale := complex(1/float64(t.n), 0)
	for i := range dst {
		dst[i] *= scale
	}
}

// goDSPTransform allocates on every call; go-dsp keeps its twiddle factors
// in a shared, locked cache.
type goDSPTransform struct {
	n int
}

func (t goDSPTransform) Len() int { return t.n }

func (t goDSPTransform) Forward(dst, src []complex128) {
	copy(dst, godsp.FFT(src))
}

func (t goDSPTransform) Inverse(dst, src []complex128) {
	copy(dst, godsp.IFFT(src))
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// SupportedLength reports whether projections of n detector bins can be
// filtered
func SupportedLength(n int) bool {
	return isPowerOfTwo(n)
}
