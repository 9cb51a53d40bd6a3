package stretch

import (
	"context"
	"fmt"

	"github.com/tphakala/simd/f64"
)

// StretchMono is a convenience function for one-shot mono stretching.
// It creates a stretcher with the tail fade enabled, processes the input,
// flushes, and returns the result.
//
//	out, err := stretch.StretchMono(samples, 44100, 8, 0.25, stretch.NewRandomSource(1))
func StretchMono(input []float64, sampleRate int, stretchFactor, windowSeconds float64, rng RandomSource) ([]float64, error) {
	out, err := StretchMulti([][]float64{input}, sampleRate, stretchFactor, windowSeconds, rng)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// StretchStereo is a convenience function for one-shot stereo stretching.
// Both channels must have the same length.
func StretchStereo(left, right []float64, sampleRate int, stretchFactor, windowSeconds float64, rng RandomSource) (leftOut, rightOut []float64, err error) {
	out, err := StretchMulti([][]float64{left, right}, sampleRate, stretchFactor, windowSeconds, rng)
	if err != nil {
		return nil, nil, err
	}
	return out[0], out[1], nil
}

// StretchMulti is a convenience function for one-shot planar stretching of
// any number of equally long channels. Channels run in parallel.
func StretchMulti(input [][]float64, sampleRate int, stretchFactor, windowSeconds float64, rng RandomSource) ([][]float64, error) {
	config := Config{
		Params: Params{
			StretchFactor: stretchFactor,
			WindowSeconds: windowSeconds,
			SampleRate:    sampleRate,
			Channels:      len(input),
		},
		Parallel: true,
		FadeOut:  true,
	}

	s, err := New(&config, rng)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	output, err := s.ProcessMulti(ctx, input)
	if err != nil {
		return nil, err
	}

	flushed, err := s.Flush(ctx)
	if err != nil {
		return nil, err
	}

	for ch := range output {
		output[ch] = append(output[ch], flushed[ch]...)
	}
	return output, nil
}

// StretchMonoFloat32 stretches float32 audio.
// Internally converts to float64 for processing, then converts back.
func StretchMonoFloat32(input []float32, sampleRate int, stretchFactor, windowSeconds float64, rng RandomSource) ([]float32, error) {
	input64 := make([]float64, len(input))
	for i, v := range input {
		input64[i] = float64(v)
	}

	output64, err := StretchMono(input64, sampleRate, stretchFactor, windowSeconds, rng)
	if err != nil {
		return nil, err
	}

	output32 := make([]float32, len(output64))
	for i, v := range output64 {
		output32[i] = float32(v)
	}
	return output32, nil
}

// StretchInterleaved stretches interleaved audio, the sample layout most
// decoders and audio APIs use: [c0 c1 ... cN-1 c0 c1 ...]. The result uses
// the same layout. len(interleaved) must be a multiple of channels.
func StretchInterleaved(interleaved []float64, channels, sampleRate int, stretchFactor, windowSeconds float64, rng RandomSource) ([]float64, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: channel count must be positive, got %d", ErrInvalidParameters, channels)
	}
	if len(interleaved)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples do not divide into %d channels",
			ErrInvalidParameters, len(interleaved), channels)
	}

	out, err := StretchMulti(deinterleave(interleaved, channels), sampleRate, stretchFactor, windowSeconds, rng)
	if err != nil {
		return nil, err
	}
	return interleave(out), nil
}

// deinterleave splits interleaved samples into planar channels.
func deinterleave(interleaved []float64, channels int) [][]float64 {
	frames := len(interleaved) / channels
	planar := make([][]float64, channels)
	for ch := range planar {
		planar[ch] = make([]float64, frames)
		for i := range frames {
			planar[ch][i] = interleaved[i*channels+ch]
		}
	}
	return planar
}

// interleave merges equally long planar channels.
func interleave(planar [][]float64) []float64 {
	channels := len(planar)
	frames := len(planar[0])
	result := make([]float64, frames*channels)
	if channels == stereoChannels {
		f64.Interleave2(result, planar[0], planar[1])
		return result
	}
	for ch, samples := range planar {
		for i, v := range samples {
			result[i*channels+ch] = v
		}
	}
	return result
}
