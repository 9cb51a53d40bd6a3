// Command analyze-stretch reports the level and pitch content of audio
// files, typically a source and its stretched rendering.
//
// Usage:
//
//	analyze-stretch input.wav input.stretched.wav
//	analyze-stretch -frame 8192 -hop 4096 -segments 20 drone.wav
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tphakala/go-audio-stretch/internal/analysis"
	"github.com/tphakala/go-audio-stretch/internal/audioio"
)

const (
	// Reading
	readChunk         = 8192 // Samples per channel per read
	defaultMaxSeconds = 120  // Seconds of channel 0 analysed per file

	// Display
	defaultSegments    = 10  // Rows in the frequency track table
	stabilityTolerance = 5.0 // Hz around the dominant frequency counted as stable
	minRequiredArgs    = 1
)

func main() {
	frame := flag.Int("frame", analysis.DefaultTrackFrame, "STFT frame length in samples")
	hop := flag.Int("hop", analysis.DefaultTrackHop, "STFT hop in samples")
	segments := flag.Int("segments", defaultSegments, "Number of track segments to print")
	maxSeconds := flag.Int("max-seconds", defaultMaxSeconds, "Seconds of audio analysed per file")
	flag.Parse()

	if flag.NArg() < minRequiredArgs {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] file...\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	failed := false
	for _, path := range flag.Args() {
		if err := analyzeFile(path, *frame, *hop, *segments, *maxSeconds); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func analyzeFile(path string, frame, hop, segments, maxSeconds int) error {
	src, err := audioio.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	samples, err := readChannel0(src, maxSeconds*src.SampleRate())
	if err != nil {
		return err
	}

	report := analysis.Summarize(samples, src.SampleRate())
	fmt.Printf("=== %s ===\n", path)
	fmt.Printf("  Format: %d Hz, %d channels, %d-bit\n", src.SampleRate(), src.Channels(), src.BitDepth())
	fmt.Printf("  Analysed: %d samples (%.2fs) of channel 0\n", report.Samples, report.Duration)
	fmt.Printf("  RMS: %.4f  Peak: %.4f\n", report.RMS, report.Peak)
	fmt.Printf("  Dominant frequency: %.1f Hz\n", report.DominantFrequency)

	track := analysis.FrequencyTrack(samples, src.SampleRate(), frame, hop)
	if len(track) == 0 {
		fmt.Printf("  Too short for a %d-sample frequency track\n\n", frame)
		return nil
	}
	stability := analysis.Stability(track, report.DominantFrequency, stabilityTolerance)
	fmt.Printf("  Track: %d frames, %.0f%% within %.0f Hz of dominant\n", len(track), stability*100, stabilityTolerance)

	// Average the track over equal segments
	segments = max(1, min(segments, len(track)))
	fmt.Printf("  %-8s %-10s %s\n", "Segment", "Start (s)", "Mean freq (Hz)")
	for seg := range segments {
		from := seg * len(track) / segments
		to := (seg + 1) * len(track) / segments
		var sum float64
		for _, f := range track[from:to] {
			sum += f
		}
		start := float64(from*hop) / float64(src.SampleRate())
		fmt.Printf("  %-8d %-10.2f %.1f\n", seg, start, sum/float64(to-from))
	}
	fmt.Println()
	return nil
}

// readChannel0 reads up to limit samples of the first channel.
func readChannel0(src audioio.Source, limit int) ([]float64, error) {
	buf := make([][]float64, src.Channels())
	for ch := range buf {
		buf[ch] = make([]float64, readChunk)
	}

	var samples []float64
	for len(samples) < limit {
		n, err := src.ReadSamples(buf)
		samples = append(samples, buf[0][:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read audio data: %w", err)
		}
	}
	if len(samples) > limit {
		samples = samples[:limit]
	}
	return samples, nil
}
