package spectral

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-stretch/internal/testutil"
)

const roundTripTolerance = 1e-9

func TestTransform_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for _, n := range []int{2, 16, 1024, 16384} {
		tr := New(n)
		require.Equal(t, n, tr.Size())
		require.Equal(t, n/2+1, tr.Bins())

		x := make([]float64, n)
		for i := range x {
			x[i] = 2*rng.Float64() - 1
		}

		spectrum := tr.Forward(nil, x)
		y := tr.Inverse(nil, spectrum)
		testutil.AssertSliceInDelta(t, x, y, roundTripTolerance, "n=%d", n)
	}
}

func TestTransform_ForwardIsUnnormalized(t *testing.T) {
	const n = 64
	tr := New(n)

	// A DC signal of 1 puts n into bin 0
	dc := make([]float64, n)
	for i := range dc {
		dc[i] = 1
	}
	spectrum := tr.Forward(make([]complex128, tr.Bins()), dc)
	assert.InDelta(t, float64(n), real(spectrum[0]), testutil.DefaultTolerance)
	for k := 1; k < len(spectrum); k++ {
		assert.InDelta(t, 0, cmplx.Abs(spectrum[k]), 1e-9, "bin %d", k)
	}

	// A cosine on bin 4 puts n/2 into bin 4
	const bin = 4
	cos := make([]float64, n)
	for i := range cos {
		cos[i] = math.Cos(2 * math.Pi * bin * float64(i) / n)
	}
	spectrum = tr.Forward(spectrum, cos)
	assert.InDelta(t, float64(n)/2, cmplx.Abs(spectrum[bin]), 1e-9)
}

func TestTransform_DCAndNyquistAreReal(t *testing.T) {
	const n = 32
	tr := New(n)
	rng := rand.New(rand.NewPCG(3, 4))

	x := make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	spectrum := tr.Forward(nil, x)

	assert.InDelta(t, 0, imag(spectrum[0]), 1e-12)
	assert.InDelta(t, 0, imag(spectrum[n/2]), 1e-12)
}

func TestTransform_PanicsOnBadInput(t *testing.T) {
	assert.Panics(t, func() { New(0) })
	assert.Panics(t, func() { New(1) })
	assert.Panics(t, func() { New(24) })

	tr := New(16)
	assert.Panics(t, func() { tr.Forward(nil, make([]float64, 15)) })
	assert.Panics(t, func() { tr.Forward(make([]complex128, 8), make([]float64, 16)) })
	assert.Panics(t, func() { tr.Inverse(nil, make([]complex128, 8)) })
	assert.Panics(t, func() { tr.Inverse(make([]float64, 8), make([]complex128, 9)) })
}

func TestTransform_FrequencyOfBin(t *testing.T) {
	tr := New(1024)
	assert.InDelta(t, 0.0, tr.FrequencyOfBin(0, 48000), 1e-12)
	assert.InDelta(t, 46.875, tr.FrequencyOfBin(1, 48000), 1e-12)
	assert.InDelta(t, 24000.0, tr.FrequencyOfBin(512, 48000), 1e-12)
}

func BenchmarkTransform_RoundTrip16384(b *testing.B) {
	const n = 16384
	tr := New(n)
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(float64(i) * 0.01)
	}
	spectrum := make([]complex128, tr.Bins())
	y := make([]float64, n)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		tr.Forward(spectrum, x)
		tr.Inverse(y, spectrum)
	}
}
