// Package analysis measures stretched audio: dominant frequency, a
// short-time frequency track, and level statistics.
package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/r9y9/gossp/stft"
	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/floats"
)

// Report summarizes one channel.
type Report struct {
	Samples           int
	Duration          float64 // seconds
	RMS               float64
	Peak              float64
	DominantFrequency float64 // Hz, 0 for silence or too short input
}

// Summarize measures samples recorded at sampleRate.
func Summarize(samples []float64, sampleRate int) Report {
	r := Report{
		Samples: len(samples),
		RMS:     RMS(samples),
		Peak:    Peak(samples),
	}
	if sampleRate > 0 {
		r.Duration = float64(len(samples)) / float64(sampleRate)
		r.DominantFrequency = DominantFrequency(samples, sampleRate)
	}
	return r
}

// DominantFrequency returns the frequency of the strongest non-DC component
// of the whole signal, refined by parabolic interpolation between bins.
// It returns 0 for fewer than 4 samples or a silent signal.
func DominantFrequency(samples []float64, sampleRate int) float64 {
	if len(samples) < 4 {
		return 0
	}
	spectrum := fft.FFTReal(samples)
	return peakFrequency(spectrum, len(samples), sampleRate)
}

// FrequencyTrack returns the dominant frequency of each STFT frame of
// frameLen samples taken every hop samples. Input shorter than one frame
// yields no frames.
func FrequencyTrack(samples []float64, sampleRate, frameLen, hop int) []float64 {
	if frameLen < 4 || hop < 1 || len(samples) < frameLen {
		return nil
	}

	spectrogram := stft.New(hop, frameLen).STFT(samples)
	track := make([]float64, len(spectrogram))
	for i, spectrum := range spectrogram {
		track[i] = peakFrequency(spectrum, frameLen, sampleRate)
	}
	return track
}

// peakFrequency locates the largest magnitude among bins 1..n/2 of a full
// length-n spectrum.
func peakFrequency(spectrum []complex128, n, sampleRate int) float64 {
	half := n / spectrumDivisor
	mags := make([]float64, half+1)
	for k := 1; k <= half && k < len(spectrum); k++ {
		mags[k] = cmplx.Abs(spectrum[k])
	}

	peak := floats.MaxIdx(mags)
	if mags[peak] == 0 {
		return 0
	}

	bin := float64(peak)
	if peak > 1 && peak < half {
		a, b, c := mags[peak-1], mags[peak], mags[peak+1]
		if den := a - 2*b + c; math.Abs(den) > interpolationEpsilon {
			bin += 0.5 * (a - c) / den
		}
	}
	return bin * float64(sampleRate) / float64(n)
}

// RMS returns the root mean square of samples, 0 when empty.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	energy := f64.DotProduct(samples, samples)
	return math.Sqrt(energy / float64(len(samples)))
}

// Peak returns the largest absolute sample value, 0 when empty.
func Peak(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return math.Max(floats.Max(samples), -floats.Min(samples))
}

// Stability returns the fraction of track entries within tolerance Hz of
// want. An empty track has stability 0.
func Stability(track []float64, want, tolerance float64) float64 {
	if len(track) == 0 {
		return 0
	}
	hits := 0
	for _, f := range track {
		if math.Abs(f-want) <= tolerance {
			hits++
		}
	}
	return float64(hits) / float64(len(track))
}
