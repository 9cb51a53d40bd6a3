// Package pipeline holds the frame geometry of a stretch run and the sample
// buffers that sit between the source and the spectral engine: an input
// queue addressed by absolute sample index and the overlap-add accumulator
// on the output side.
package pipeline

import (
	"fmt"
	"math"
)

// Plan describes the frame geometry of one stretch run.
//
// Frames advance through the output by a fixed SynthesisHop of FrameSize/2.
// The analysis cursor advances through the source by AnalysisHop =
// SynthesisHop / StretchFactor, kept as a real number so that the ratio of
// the two hops equals the stretch factor exactly on average. Frame k starts
// at floor(k * AnalysisHop) in the source and at k * SynthesisHop in the
// output.
type Plan struct {
	SampleRate    int
	StretchFactor float64
	WindowSeconds float64

	FrameSize    int
	SynthesisHop int
	AnalysisHop  float64

	// FadeLength is the number of trailing source samples faded to zero
	// before analysis. Zero disables the fade.
	FadeLength int
}

// BuildPlan derives the frame geometry for the given parameters.
func BuildPlan(stretchFactor, windowSeconds float64, sampleRate int, fadeOut bool) (*Plan, error) {
	if math.IsNaN(stretchFactor) || math.IsInf(stretchFactor, 0) || stretchFactor <= 0 {
		return nil, fmt.Errorf("stretch factor must be positive and finite, got %v", stretchFactor)
	}
	if math.IsNaN(windowSeconds) || math.IsInf(windowSeconds, 0) || windowSeconds <= 0 {
		return nil, fmt.Errorf("window size must be positive and finite, got %v seconds", windowSeconds)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	rawSize := math.Ceil(windowSeconds * float64(sampleRate))
	if rawSize > maxFrameSize {
		return nil, fmt.Errorf("window of %v seconds at %d Hz exceeds the maximum frame size %d",
			windowSeconds, sampleRate, maxFrameSize)
	}

	frameSize := NextPowerOfTwo(int(rawSize))
	if frameSize < minFrameSize {
		frameSize = minFrameSize
	}
	synthesisHop := frameSize / hopDivisor

	p := &Plan{
		SampleRate:    sampleRate,
		StretchFactor: stretchFactor,
		WindowSeconds: windowSeconds,
		FrameSize:     frameSize,
		SynthesisHop:  synthesisHop,
		AnalysisHop:   float64(synthesisHop) / stretchFactor,
	}
	if fadeOut {
		p.FadeLength = max(minFadeLength, sampleRate/fadeRateDivisor)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the invariants the engine relies on.
func (p *Plan) Validate() error {
	if p.FrameSize < 2 || p.FrameSize&(p.FrameSize-1) != 0 {
		return fmt.Errorf("frame size must be a power of two >= 2, got %d", p.FrameSize)
	}
	if p.SynthesisHop < 1 || p.SynthesisHop != p.FrameSize/hopDivisor {
		return fmt.Errorf("synthesis hop must be half the frame size, got %d for frame size %d",
			p.SynthesisHop, p.FrameSize)
	}
	if math.IsNaN(p.AnalysisHop) || p.AnalysisHop < 1 {
		return fmt.Errorf("analysis hop must be at least one sample, got %v (stretch factor %v too large for frame size %d)",
			p.AnalysisHop, p.StretchFactor, p.FrameSize)
	}
	if p.FadeLength < 0 {
		return fmt.Errorf("fade length must not be negative, got %d", p.FadeLength)
	}
	return nil
}

// FrameStart returns the source offset of frame k.
func (p *Plan) FrameStart(k int) int {
	return int(math.Floor(float64(k) * p.AnalysisHop))
}

// SynthesisOffset returns the output offset of frame k.
func (p *Plan) SynthesisOffset(k int) int {
	return k * p.SynthesisHop
}

// FrameCount returns the number of frames analysed for a source of
// inputLen samples: every frame whose start lies inside the source.
func (p *Plan) FrameCount(inputLen int) int {
	if inputLen <= 0 {
		return 0
	}
	n := int(math.Ceil(float64(inputLen) / p.AnalysisHop))
	// Guard against float rounding at exact multiples.
	for n > 0 && p.FrameStart(n-1) >= inputLen {
		n--
	}
	for p.FrameStart(n) < inputLen {
		n++
	}
	return n
}

// OutputLength returns the number of samples produced for a source of
// inputLen samples. The last frame's tail adds one synthesis hop.
func (p *Plan) OutputLength(inputLen int) int {
	frames := p.FrameCount(inputLen)
	if frames == 0 {
		return 0
	}
	return frames*p.SynthesisHop + p.SynthesisHop
}

// NextPowerOfTwo returns the smallest power of two >= n (1 for n <= 1).
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
