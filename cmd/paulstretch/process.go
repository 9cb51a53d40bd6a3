package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	stretch "github.com/tphakala/go-audio-stretch"
	"github.com/tphakala/go-audio-stretch/internal/analysis"
	"github.com/tphakala/go-audio-stretch/internal/audioio"
)

type stretchStats struct {
	sampleRate    int
	channels      int
	inputBits     int
	outputBits    int
	inputFormat   audioio.SampleFormat
	outputFormat  audioio.SampleFormat
	frameSize     int
	seed          uint64
	inputSamples  int64
	outputSamples int64
	clipped       int64
}

func (s *stretchStats) inputDuration() float64 {
	return float64(s.inputSamples) / float64(s.sampleRate)
}

func (s *stretchStats) outputDuration() float64 {
	return float64(s.outputSamples) / float64(s.sampleRate)
}

// stretchFile stretches opts.input into opts.output.
func stretchFile(ctx context.Context, opts *options, logger *slog.Logger) (stats *stretchStats, err error) {
	// 1. Open input
	src, err := audioio.Open(opts.input)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	logger.Debug("input format",
		"sample_rate", src.SampleRate(),
		"channels", src.Channels(),
		"bit_depth", src.BitDepth(),
		"sample_format", src.SampleFormat(),
		"frames", src.TotalFrames())

	// 2. Resolve settings
	config := stretch.Config{
		Params: stretch.Params{
			StretchFactor: opts.stretch,
			WindowSeconds: opts.window,
			SampleRate:    src.SampleRate(),
			Channels:      src.Channels(),
		},
		Parallel:  opts.parallel,
		FadeOut:   opts.fade,
		ChunkSize: opts.chunkSize,
	}
	frameSize, err := config.FrameSize()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	seed := opts.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	logger.Info("stretching", "factor", opts.stretch, "window", opts.window, "frame_size", frameSize, "seed", seed)

	outFormat, outputBits, err := outputFormat(opts, src.SampleFormat(), src.BitDepth())
	if err != nil {
		return nil, err
	}

	// 3. Create output
	out, err := audioio.CreateWAV(opts.output, src.SampleRate(), outputBits, src.Channels(), outFormat)
	if err != nil {
		return nil, err
	}
	// Close output, capturing close errors on success path (important for WAV header updates).
	// A failed or cancelled run removes the partial file.
	defer func() {
		if closeErr := out.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to finalize output file: %w", closeErr)
		}
		if err != nil {
			removePartial(opts.output, logger)
		}
	}()

	// 4. Process
	stats = &stretchStats{
		sampleRate:   src.SampleRate(),
		channels:     src.Channels(),
		inputBits:    src.BitDepth(),
		outputBits:   outputBits,
		inputFormat:  src.SampleFormat(),
		outputFormat: outFormat,
		frameSize:    frameSize,
		seed:         seed,
	}

	counter := newCountingSource(src, newProgressTracker(src.TotalFrames(), logger))
	var inputTap, outputTap *analysisTap
	if opts.analyze {
		limit := analyzeMaxSeconds * src.SampleRate()
		inputTap, outputTap = newAnalysisTap(limit), newAnalysisTap(limit)
		counter.tap = inputTap
	}

	for block, err := range stretch.Run(ctx, counter, config, stretch.NewRandomSource(seed)) {
		if err != nil {
			return nil, err
		}
		if err := out.WriteFrames(block); err != nil {
			return nil, err
		}
		outputTap.add(block)
	}

	stats.inputSamples = counter.samples
	stats.outputSamples = out.Frames()
	stats.clipped = out.Clipped()

	if stats.clipped > 0 {
		logger.Warn("output clipped", "samples", stats.clipped)
	}
	if opts.analyze {
		logAnalysis(logger, "input", inputTap.samples, src.SampleRate())
		logAnalysis(logger, "output", outputTap.samples, src.SampleRate())
	}
	return stats, nil
}

func removePartial(path string, logger *slog.Logger) {
	err := os.Remove(path)
	switch {
	case err == nil:
		logger.Debug("removed partial output", "path", path)
	case !errors.Is(err, fs.ErrNotExist):
		logger.Warn("failed to remove partial output", "path", path, "error", err)
	}
}

func logAnalysis(logger *slog.Logger, label string, samples []float64, sampleRate int) {
	r := analysis.Summarize(samples, sampleRate)
	logger.Info("analysis",
		"signal", label,
		"seconds", fmt.Sprintf("%.2f", r.Duration),
		"dominant_hz", fmt.Sprintf("%.1f", r.DominantFrequency),
		"rms", fmt.Sprintf("%.4f", r.RMS),
		"peak", fmt.Sprintf("%.4f", r.Peak))
}
