// Package stretch provides extreme audio time-stretching in pure Go.
//
// The algorithm is paulstretch by Nasca Octavian Paul: the signal is cut
// into overlapping Hann-windowed frames, every frame is taken to the
// frequency domain, its phases are replaced with uniformly random ones,
// and the frames are resynthesized and overlap-added. Frames are read
// from the source at a small hop and written to the output at a large
// one, so the sound keeps its pitch and spectral color while its duration
// grows by the stretch factor. Stretching a few seconds of audio by 8x or
// more yields a smooth, evolving texture.
//
// # Features
//
//   - Arbitrary stretch factors, including factors below 1
//   - Window length chosen in seconds, rounded up to a power-of-two frame
//   - Deterministic output for a seeded random source
//   - Multi-channel support with optional parallel channel processing
//   - Streaming API that emits samples as soon as they are final
//   - Lazy iterator API over any [SampleProvider]
//   - SIMD accelerated inner loops via github.com/tphakala/simd
//   - Pure Go implementation with no CGO dependencies
//
// # Quick Start
//
// For simple one-shot stretching:
//
//	output, err := stretch.StretchMono(input, 44100, 8, 0.25, stretch.NewRandomSource(42))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For streaming with a reusable stretcher:
//
//	config := stretch.DefaultConfig(44100, 2)
//	s, err := stretch.New(&config, stretch.NewRandomSource(42))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Process planar audio chunks
//	for chunk := range audioChunks {
//	    output, err := s.ProcessMulti(ctx, chunk)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    writeOutput(output)
//	}
//
//	// Flush remaining samples
//	final, _ := s.Flush(ctx)
//
// Or pull everything from a decoder:
//
//	for block, err := range stretch.Run(ctx, decoder, config, rng) {
//	    if err != nil {
//	        return err
//	    }
//	    writeOutput(block)
//	}
//
// # Parameters
//
// The frame size N is the next power of two of WindowSeconds * SampleRate
// (at least 16). Frames are written every N/2 output samples and read
// every N/(2*StretchFactor) source samples, so the output is about
// StretchFactor times longer than the input, give or take one frame.
// Longer windows trade time resolution for frequency resolution: 0.25 s
// keeps rhythm recognizable at moderate factors, several seconds melt
// everything into drones.
//
// # Output Level
//
// Frames with random phases add as uncorrelated noise, so overlapping
// frames are normalized by the square root of their summed window energy.
// This keeps the output free of tremolo at the frame rate, and stationary
// input keeps its RMS level. The first and last half frame fade in and out
// with the window. The randomized phases spread transients, and short
// peaks are not preserved.
//
// # Thread Safety
//
// A [Stretcher] must not be used by several goroutines at once. With
// [Config].Parallel set, [Stretcher.ProcessMulti] processes channels
// concurrently on its own; results are identical to sequential
// processing because every channel draws its phases from its own random
// source seeded in channel order.
package stretch
