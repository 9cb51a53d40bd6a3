package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tphakala/go-audio-stretch/internal/audioio"
)

var (
	errUsage   = errors.New("usage error")
	errVersion = errors.New("version requested")
)

// options are the resolved command line settings.
type options struct {
	input      string
	output     string
	configPath string
	format     string

	stretch   float64
	window    float64
	seed      uint64
	bits      int
	chunkSize int

	parallel bool
	fade     bool
	verbose  bool
	analyze  bool
}

// parseArgs parses args into options. Preset values from -config fill in
// every setting not given explicitly on the command line.
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("paulstretch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.output, "o", "", "Output WAV file (default: <input>"+outputSuffix+")")
	fs.Float64Var(&opts.stretch, "s", defaultStretch, "Stretch factor (output/input duration)")
	fs.Float64Var(&opts.window, "w", defaultWindow, "Window size in seconds")
	fs.Uint64Var(&opts.seed, "seed", 0, "Random seed for reproducible output (0 = time based)")
	fs.StringVar(&opts.configPath, "config", "", "YAML preset file; explicit flags override it")
	fs.IntVar(&opts.bits, "bits", 0, "Output bit depth: 8, 16, 24 or 32 for int, 32 or 64 for float (default: input's)")
	fs.StringVar(&opts.format, "format", "", "Output sample format: int or float (default: input's)")
	fs.BoolVar(&opts.parallel, "parallel", true, "Stretch channels concurrently")
	fs.BoolVar(&opts.fade, "fade", true, "Fade out the end of the input to avoid a click")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose output (debug logging and progress)")
	fs.BoolVar(&opts.analyze, "analyze", false, "Log the dominant frequency of input and output")
	showVersion := fs.Bool("V", false, "Print version and exit")
	fs.BoolVar(showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: paulstretch [options] input [options]\n\n")
		fmt.Fprintf(stderr, "Options may come before or after the input; use -- to end them.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  paulstretch input.wav                       # 8x stretch, 0.25 s window\n")
		fmt.Fprintf(stderr, "  paulstretch -s 50 -w 2 -o out.wav in.flac   # Ambient drone\n")
		fmt.Fprintf(stderr, "  paulstretch -seed 7 -bits 24 song.mp3       # Reproducible 24-bit output\n")
		fmt.Fprintf(stderr, "  paulstretch in.wav -format float -o out.wav # 32-bit float output\n")
	}

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return nil, err
	}
	if *showVersion {
		return nil, errVersion
	}

	if len(positional) != 1 {
		fs.Usage()
		return nil, fmt.Errorf("%w: expected exactly one input file, got %d", errUsage, len(positional))
	}
	opts.input = positional[0]

	if opts.configPath != "" {
		p, err := loadPreset(opts.configPath)
		if err != nil {
			return nil, err
		}
		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		p.apply(opts, set)
	}

	if opts.output == "" {
		opts.output = defaultOutputPath(opts.input)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// parseInterspersed parses flags anywhere in args and returns the
// positional arguments in order. The flag package stops at the first
// non-flag, so parsing resumes after each one. Everything after "--" is
// positional.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// validate checks settings the stretcher does not check itself.
func (o *options) validate() error {
	if o.bits != 0 && !supportedBits(o.bits) {
		return fmt.Errorf("%w: -bits must be 8, 16, 24, 32 or 64, got %d", errUsage, o.bits)
	}
	format, explicit, err := parseFormat(o.format)
	if err != nil {
		return err
	}
	if explicit && o.bits != 0 && !audioio.SupportedDepth(format, o.bits) {
		return fmt.Errorf("%w: %d-bit %s output is not supported", errUsage, o.bits, format)
	}
	if filepath.Clean(o.output) == filepath.Clean(o.input) {
		return fmt.Errorf("%w: output would overwrite the input file", errUsage)
	}
	return nil
}

// defaultOutputPath derives <dir>/<base>.stretched.wav from the input path.
func defaultOutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + outputSuffix
}

// supportedBits reports whether some WAV sample format can carry bits.
func supportedBits(bits int) bool {
	return audioio.SupportedDepth(audioio.FormatInt, bits) || audioio.SupportedDepth(audioio.FormatFloat, bits)
}

// parseFormat maps a -format value to a sample format. An empty name
// means "follow the input" and reports explicit as false.
func parseFormat(name string) (format audioio.SampleFormat, explicit bool, err error) {
	switch strings.ToLower(name) {
	case "":
		return audioio.FormatInt, false, nil
	case "int", "pcm":
		return audioio.FormatInt, true, nil
	case "float":
		return audioio.FormatFloat, true, nil
	default:
		return 0, false, fmt.Errorf("%w: -format must be int or float, got %q", errUsage, name)
	}
}

// outputFormat picks the output sample format and bit depth. Unset values
// follow the input; an explicit depth the input's format cannot carry
// switches to the format that can.
func outputFormat(opts *options, inFormat audioio.SampleFormat, inBits int) (audioio.SampleFormat, int, error) {
	format, explicit, err := parseFormat(opts.format)
	if err != nil {
		return 0, 0, err
	}
	if !explicit {
		format = inFormat
		if opts.bits != 0 && !audioio.SupportedDepth(format, opts.bits) {
			format = audioio.FormatInt
			if !audioio.SupportedDepth(format, opts.bits) {
				format = audioio.FormatFloat
			}
		}
	}

	bits := opts.bits
	if bits == 0 {
		bits = defaultBits(format, inBits)
	}
	if !audioio.SupportedDepth(format, bits) {
		return 0, 0, fmt.Errorf("%w: %d-bit %s output is not supported", errUsage, bits, format)
	}
	return format, bits, nil
}

// defaultBits keeps the input bit depth when the output format can carry
// it. Otherwise float falls back to 32 bits and int to 32 or 16 bits,
// whichever is nearer.
func defaultBits(format audioio.SampleFormat, inputBits int) int {
	if audioio.SupportedDepth(format, inputBits) {
		return inputBits
	}
	if format == audioio.FormatFloat || inputBits > bitsPerSample32 {
		return bitsPerSample32
	}
	return bitsPerSample16
}
