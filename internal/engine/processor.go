package engine

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/tphakala/go-audio-stretch/internal/spectral"
	"github.com/tphakala/simd/c128"
)

// RandomSource supplies uniform random numbers in [0, 1).
// *math/rand/v2.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// FrameProcessor turns one source frame into one synthesis frame by keeping
// the magnitude spectrum and replacing every phase with a random one.
//
// Per frame:
//  1. windowed = frame * window
//  2. X = FFT(windowed)
//  3. |X[k]| is kept, arg X[k] is discarded
//  4. theta[k] is drawn uniformly from [0, 2*pi)
//  5. X'[k] = |X[k]| * e^(i*theta[k])
//  6. y = IFFT(X') (normalized by 1/N)
//  7. output = y * window
//
// The DC bin (0) and the Nyquist bin (N/2) are purely real in a real-input
// spectrum and are left untouched, sign included, so a DC offset in the
// source passes through unchanged. Only bins 1..N/2-1 draw a phase, one
// Float64 per bin in ascending order.
//
// A FrameProcessor owns its scratch buffers and random source; use one per
// channel.
type FrameProcessor struct {
	window []float64
	fft    *spectral.Transform
	rng    RandomSource

	// Working buffers (pre-allocated for zero allocation during processing)
	windowed   []float64
	spectrum   []complex128
	magnitudes []complex128
	phasors    []complex128
}

// NewFrameProcessor creates a processor for frames of len(win) samples.
// len(win) must be a power of two >= 2.
func NewFrameProcessor(win []float64, rng RandomSource) *FrameProcessor {
	if rng == nil {
		panic("engine: nil random source")
	}
	fft := spectral.New(len(win))
	bins := fft.Bins()

	p := &FrameProcessor{
		window:     win,
		fft:        fft,
		rng:        rng,
		windowed:   make([]float64, len(win)),
		spectrum:   make([]complex128, bins),
		magnitudes: make([]complex128, bins),
		phasors:    make([]complex128, bins),
	}
	// DC and Nyquist keep their value
	p.phasors[0] = 1
	p.phasors[bins-1] = 1
	return p
}

// Size returns the frame length.
func (p *FrameProcessor) Size() int {
	return len(p.window)
}

// Process transforms frame into dst and returns dst. dst may be nil.
// frame (and dst when non-nil) must have length Size(); anything else is a
// programming error and panics. frame is not modified.
func (p *FrameProcessor) Process(dst, frame []float64) []float64 {
	n := len(p.window)
	if len(frame) != n {
		panic(fmt.Sprintf("engine: frame length %d, want %d", len(frame), n))
	}
	if dst == nil {
		dst = make([]float64, n)
	} else if len(dst) != n {
		panic(fmt.Sprintf("engine: output length %d, want %d", len(dst), n))
	}

	for i, s := range frame {
		p.windowed[i] = s * p.window[i]
	}

	p.fft.Forward(p.spectrum, p.windowed)
	p.randomizePhases()
	p.fft.Inverse(dst, p.spectrum)

	for i := range dst {
		dst[i] *= p.window[i]
	}
	return dst
}

// randomizePhases rebuilds p.spectrum from its magnitudes and fresh
// uniform phases. Bins 0 and len-1 are left as they are.
func (p *FrameProcessor) randomizePhases() {
	last := len(p.spectrum) - 1

	p.magnitudes[0] = p.spectrum[0]
	p.magnitudes[last] = p.spectrum[last]
	for k := 1; k < last; k++ {
		p.magnitudes[k] = complex(cmplx.Abs(p.spectrum[k]), 0)

		sin, cos := math.Sincos(twoPi * p.rng.Float64())
		p.phasors[k] = complex(cos, sin)
	}

	c128.Mul(p.spectrum, p.magnitudes, p.phasors)
}
