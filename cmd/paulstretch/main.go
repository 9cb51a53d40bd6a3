// Command paulstretch stretches an audio file to many times its length
// without changing its pitch.
//
// Usage:
//
//	paulstretch input.wav                          # 8x, 0.25 s window -> input.stretched.wav
//	paulstretch -s 50 -w 1 -o drone.wav input.flac # Extreme stretch with a long window
//	paulstretch -seed 42 input.mp3                 # Reproducible output
//	paulstretch -config preset.yaml input.ogg      # Settings from a YAML preset
//	paulstretch input.wav -format float            # Flags may follow the input
//
// WAV (8/16/24/32-bit PCM, 32/64-bit float), FLAC, MP3 and Ogg Vorbis
// inputs are read by file extension. Output is WAV in the input's sample
// format unless -format or -bits say otherwise. A failed or interrupted
// run deletes the partial output.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	stretch "github.com/tphakala/go-audio-stretch"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	switch {
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errVersion):
		fmt.Fprintf(stdout, "paulstretch %s\n", version)
		return exitOK
	case err != nil:
		fmt.Fprintf(stderr, "paulstretch: %v\n", err)
		return exitUsage
	}

	logger := newLogger(stderr, opts.verbose)
	logger.Debug("starting",
		"input", opts.input,
		"output", opts.output,
		"stretch", opts.stretch,
		"window", opts.window,
		"parallel", opts.parallel,
		"format", opts.format,
		"fade", opts.fade)

	start := time.Now()
	stats, err := stretchFile(ctx, opts, logger)
	if err != nil {
		logger.Error("stretch failed", "error", err)
		return exitCode(err)
	}
	elapsed := time.Since(start)

	// Print summary
	fmt.Fprintf(stdout, "Stretched %s -> %s\n", filepath.Base(opts.input), filepath.Base(opts.output))
	fmt.Fprintf(stdout, "  x%g, %.3f s window (%d-sample frames), seed %d\n",
		opts.stretch, opts.window, stats.frameSize, stats.seed)
	fmt.Fprintf(stdout, "  %d Hz, %d channels, %d-bit %s -> %d-bit %s\n",
		stats.sampleRate, stats.channels,
		stats.inputBits, stats.inputFormat, stats.outputBits, stats.outputFormat)
	fmt.Fprintf(stdout, "  %d samples -> %d samples (%.1fs -> %.1fs)\n",
		stats.inputSamples, stats.outputSamples,
		stats.inputDuration(), stats.outputDuration())
	fmt.Fprintf(stdout, "  Elapsed: %.2fs, Speed: %.1fx realtime\n",
		elapsed.Seconds(), stats.outputDuration()/elapsed.Seconds())
	if stats.clipped > 0 {
		fmt.Fprintf(stdout, "  Clipped: %d samples\n", stats.clipped)
	}

	return exitOK
}

// exitCode maps parameter errors to exitUsage and everything else to
// exitFailure.
func exitCode(err error) int {
	if errors.Is(err, stretch.ErrInvalidParameters) || errors.Is(err, errUsage) {
		return exitUsage
	}
	return exitFailure
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
