package filter

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"xrayct/pkg/matrix"
)

const tolerance = 1e-9

func testSinogram(t *testing.T, rows, cols int) *matrix.Matrix {
	t.Helper()
	values := make([]float64, rows*cols)
	for i := range values {
		values[i] = math.Sin(float64(i)*0.37) + float64(i%5)*0.1
	}
	m, err := matrix.New(rows, cols, values)
	if err != nil {
		t.Fatalf("matrix.New failed: %v", err)
	}
	return m
}

// TestRampKernel checks the endpoints, the centre and the symmetry of the
// ramp kernel for a range of lengths
func TestRampKernel(t *testing.T) {
	for _, n := range []int{4, 8, 16, 64, 256, 7, 9} {
		k := RampKernel(n)
		if len(k) != n {
			t.Fatalf("Expected length %d, got %d", n, len(k))
		}
		if k[0] != 1 || k[n-1] != 1 {
			t.Errorf("n=%d: expected endpoints 1.0, got %v and %v", n, k[0], k[n-1])
		}
		if k[n/2] != 0 {
			t.Errorf("n=%d: expected midpoint 0.0, got %v", n, k[n/2])
		}
		for i := range k {
			if k[i] != k[n-1-i] {
				t.Errorf("n=%d: expected k[%d] == k[%d], got %v and %v", n, i, n-1-i, k[i], k[n-1-i])
			}
		}
		for i := 1; i <= n/2-1; i++ {
			if k[i] > k[i-1] {
				t.Errorf("n=%d: expected first half to be non-increasing at %d", n, i)
			}
		}
	}

	for _, v := range RampKernel(2) {
		if v != 1 {
			t.Errorf("Expected a two-sample kernel of ones, got %v", RampKernel(2))
		}
	}
}

func TestHammingKernel(t *testing.T) {
	n := 64
	ramp := RampKernel(n)
	k := HammingKernel(n)
	for i := range k {
		if math.Abs(k[i]-k[n-1-i]) > 1e-12 {
			t.Errorf("Expected symmetric kernel at %d, got %v and %v", i, k[i], k[n-1-i])
		}
		if k[i] > ramp[i]+1e-12 || k[i] < 0 {
			t.Errorf("Expected 0 <= hamming[%d] <= ramp[%d], got %v vs %v", i, i, k[i], ramp[i])
		}
	}
	if k[n/2] != 0 {
		t.Errorf("Expected zero at the centre, got %v", k[n/2])
	}
	// The window tapers the ends, so the kernel peaks somewhere inside.
	if k[0] >= k[n/4] {
		t.Errorf("Expected tapered endpoint, got k[0]=%v k[n/4]=%v", k[0], k[n/4])
	}
}

func TestKernelForNone(t *testing.T) {
	k, err := Kernel(None, 16)
	if err != nil || k != nil {
		t.Errorf("Expected nil kernel for None, got %v, %v", k, err)
	}
	if _, err := Kernel(Kind(42), 16); err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{None, Ramp, Hamming} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q): expected %v, got %v, %v", k.String(), k, got, err)
		}
	}
	if got, err := ParseKind(" HAMMING "); err != nil || got != Hamming {
		t.Errorf("Expected case-insensitive parse, got %v, %v", got, err)
	}
	if _, err := ParseKind("shepp-logan"); err == nil {
		t.Error("Expected error for unknown filter name")
	}
}

func TestShiftRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 5, 8, 9} {
		v := make([]complex128, n)
		for i := range v {
			v[i] = complex(float64(i), -float64(i))
		}
		Shift(v)
		if n > 1 && v[n/2] != 0 {
			t.Errorf("n=%d: expected element 0 at the centre, got %v", n, v)
		}
		Unshift(v)
		for i := range v {
			if v[i] != complex(float64(i), -float64(i)) {
				t.Fatalf("n=%d: expected round trip, got %v", n, v)
			}
		}
	}
}

func TestTransformRoundTrip(t *testing.T) {
	for _, backend := range []Backend{Gonum, GoDSP} {
		plan, err := NewTransform(backend, 16)
		if err != nil {
			t.Fatalf("%v: NewTransform failed: %v", backend, err)
		}
		src := make([]complex128, 16)
		for i := range src {
			src[i] = complex(math.Cos(float64(i)), float64(i%3))
		}
		buf := make([]complex128, 16)
		copy(buf, src)
		plan.Forward(buf, buf)
		// A unit impulse response is not expected; just check the DC bin.
		var sum complex128
		for _, v := range src {
			sum += v
		}
		if cmplx.Abs(buf[0]-sum) > tolerance {
			t.Errorf("%v: expected DC bin %v, got %v", backend, sum, buf[0])
		}
		plan.Inverse(buf, buf)
		for i := range src {
			if cmplx.Abs(buf[i]-src[i]) > tolerance {
				t.Errorf("%v: expected %v at %d after round trip, got %v", backend, src[i], i, buf[i])
			}
		}
	}
}

func TestNewTransformRejectsLength(t *testing.T) {
	if _, err := NewTransform(Gonum, 12); !errors.Is(err, ErrUnsupportedTransformLength) {
		t.Errorf("Expected ErrUnsupportedTransformLength, got %v", err)
	}
	if _, err := ParseBackend("fftw"); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

// TestApplyNoneIsIdentity checks that the unfiltered pipeline gives back its
// input on both backends
func TestApplyNoneIsIdentity(t *testing.T) {
	s := testSinogram(t, 32, 7)
	for _, backend := range []Backend{Gonum, GoDSP} {
		f := &Filter{Kind: None, Backend: backend, Workers: 3}
		out, err := f.Apply(s)
		if err != nil {
			t.Fatalf("%v: Apply failed: %v", backend, err)
		}
		if !out.Equal(s, tolerance) {
			t.Errorf("%v: expected identity for filter None", backend)
		}
	}
}

func TestApplyPreservesShapeAndInput(t *testing.T) {
	s := testSinogram(t, 16, 5)
	orig := s.Clone()
	out, err := Apply(s, Hamming)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !out.SameShape(16, 5) {
		t.Errorf("Expected 16x5 output, got %dx%d", out.Rows(), out.Cols())
	}
	if !s.Equal(orig, 0) {
		t.Error("Expected input sinogram to be left untouched")
	}
}

func TestApplyRejectsNonPowerOfTwo(t *testing.T) {
	s := testSinogram(t, 12, 3)
	if _, err := Apply(s, Ramp); !errors.Is(err, ErrUnsupportedTransformLength) {
		t.Errorf("Expected ErrUnsupportedTransformLength, got %v", err)
	}
}

// TestRampRemovesConstant checks that the zero-frequency bin, which the
// kernel maps to zero, carries all of a constant projection
func TestRampRemovesConstant(t *testing.T) {
	s, _ := matrix.NewFilled(16, 2, 3)
	for _, kind := range []Kind{Ramp, Hamming} {
		out, err := Apply(s, kind)
		if err != nil {
			t.Fatalf("%v: Apply failed: %v", kind, err)
		}
		for i, v := range out.Values() {
			if math.Abs(v) > tolerance {
				t.Errorf("%v: expected 0 at %d, got %v", kind, i, v)
			}
		}
	}
}

// TestRampKeepsNyquist checks that the highest frequency, which lands on
// the kernel's first sample, passes through the ramp unchanged
func TestRampKeepsNyquist(t *testing.T) {
	n := 8
	values := make([]float64, n)
	for i := range values {
		values[i] = 1 - 2*float64(i%2)
	}
	s, _ := matrix.New(n, 1, values)
	out, err := Apply(s, Ramp)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !out.Equal(s, tolerance) {
		t.Errorf("Expected alternating signal to pass unchanged, got %v", out.Values())
	}
}

func TestBackendsAgree(t *testing.T) {
	s := testSinogram(t, 64, 9)
	a, err := (&Filter{Kind: Ramp, Backend: Gonum}).Apply(s)
	if err != nil {
		t.Fatalf("gonum Apply failed: %v", err)
	}
	b, err := (&Filter{Kind: Ramp, Backend: GoDSP}).Apply(s)
	if err != nil {
		t.Fatalf("godsp Apply failed: %v", err)
	}
	if !a.Equal(b, 1e-9) {
		t.Error("Expected both FFT backends to produce the same filtered sinogram")
	}
}

func TestSupportedLength(t *testing.T) {
	for n, want := range map[int]bool{0: false, 1: true, 2: true, 64: true, 100: false, 200: false, -8: false} {
		if got := SupportedLength(n); got != want {
			t.Errorf("SupportedLength(%d): expected %v, got %v", n, want, got)
		}
	}
}
