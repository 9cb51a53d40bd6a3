// Package spectral wraps a fixed-size real FFT for frame processing.
package spectral

import (
	"fmt"

	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform is a forward/inverse real FFT of a fixed size N.
//
// Forward produces the N/2+1 non-negative frequency bins (gonum layout,
// bin 0 is DC and bin N/2 is Nyquist). gonum does not normalize in either
// direction; Inverse scales by 1/N so that Inverse(Forward(x)) == x within
// rounding and forward magnitudes stay unscaled.
//
// A Transform holds internal work buffers and must not be shared between
// goroutines.
type Transform struct {
	fft   *fourier.FFT
	n     int
	bins  int
	scale float64 // 1/n for IFFT normalization
}

// New creates a transform of size n. n must be a power of two >= 2;
// anything else is a programming error and panics.
func New(n int) *Transform {
	if n < minSize || n&(n-1) != 0 {
		panic(fmt.Sprintf("spectral: size %d is not a power of two >= %d", n, minSize))
	}
	return &Transform{
		fft:   fourier.NewFFT(n),
		n:     n,
		bins:  n/hermitianDivisor + 1,
		scale: 1.0 / float64(n),
	}
}

// Size returns the number of real samples per frame.
func (t *Transform) Size() int {
	return t.n
}

// Bins returns the number of complex bins produced by Forward.
func (t *Transform) Bins() int {
	return t.bins
}

// Forward computes the spectrum of src into dst and returns it.
// src must have length Size(); dst may be nil or must have length Bins().
func (t *Transform) Forward(dst []complex128, src []float64) []complex128 {
	if len(src) != t.n {
		panic(fmt.Sprintf("spectral: forward input length %d, want %d", len(src), t.n))
	}
	if dst != nil && len(dst) != t.bins {
		panic(fmt.Sprintf("spectral: forward output length %d, want %d", len(dst), t.bins))
	}
	return t.fft.Coefficients(dst, src)
}

// Inverse computes the real sequence for spectrum src into dst and returns
// it, scaled by 1/N. src must have length Bins(); dst may be nil or must
// have length Size().
func (t *Transform) Inverse(dst []float64, src []complex128) []float64 {
	if len(src) != t.bins {
		panic(fmt.Sprintf("spectral: inverse input length %d, want %d", len(src), t.bins))
	}
	if dst != nil && len(dst) != t.n {
		panic(fmt.Sprintf("spectral: inverse output length %d, want %d", len(dst), t.n))
	}
	dst = t.fft.Sequence(dst, src)

	// gonum's IFFT doesn't normalize
	f64.Scale(dst, dst, t.scale)
	return dst
}

// FrequencyOfBin returns the centre frequency of bin k at the given rate.
func (t *Transform) FrequencyOfBin(k int, sampleRate float64) float64 {
	return float64(k) * sampleRate / float64(t.n)
}
