package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-stretch/internal/audioio"
	"github.com/tphakala/go-audio-stretch/internal/testutil"
)

const testSampleRate = 8000

// writeTestWAV writes a short stereo integer PCM tone to dir and returns
// its path.
func writeTestWAV(t *testing.T, dir string, bits int) string {
	t.Helper()
	return writeToneWAV(t, dir, bits, audioio.FormatInt)
}

func writeToneWAV(t *testing.T, dir string, bits int, format audioio.SampleFormat) string {
	t.Helper()
	path := filepath.Join(dir, "tone.wav")
	w, err := audioio.CreateWAV(path, testSampleRate, bits, 2, format)
	require.NoError(t, err)
	require.NoError(t, w.WriteFrames([][]float64{
		testutil.SineWave(440, testSampleRate, testSampleRate/2, 0.5),
		testutil.SineWave(660, testSampleRate, testSampleRate/2, 0.5),
	}))
	require.NoError(t, w.Close())
	return path
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_StretchesWAV(t *testing.T) {
	dir := t.TempDir()
	input := writeTestWAV(t, dir, 16)

	code, stdout, stderr := runCLI(t, "-s", "4", "-w", "0.05", "-seed", "7", "-v", "-analyze", input)
	require.Equal(t, exitOK, code, stderr)

	output := filepath.Join(dir, "tone.stretched.wav")
	assert.Contains(t, stdout, "Stretched tone.wav -> tone.stretched.wav")
	assert.Contains(t, stdout, "seed 7")
	assert.Contains(t, stdout, "16-bit int -> 16-bit int")
	assert.Contains(t, stderr, "level=DEBUG")
	assert.Contains(t, stderr, "signal=output")

	src, err := audioio.OpenWAV(output)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	assert.Equal(t, testSampleRate, src.SampleRate())
	assert.Equal(t, 2, src.Channels())
	assert.Equal(t, 16, src.BitDepth())
	// 4000 samples stretched 4x, within one 512-sample frame
	assert.InDelta(t, 16000, src.TotalFrames(), 512+1)
}

func TestRun_Reproducible(t *testing.T) {
	dir := t.TempDir()
	input := writeTestWAV(t, dir, 24)
	first := filepath.Join(dir, "first.wav")
	second := filepath.Join(dir, "second.wav")

	code, _, stderr := runCLI(t, "-seed", "99", "-s", "3", "-w", "0.05", "-o", first, input)
	require.Equal(t, exitOK, code, stderr)
	code, _, stderr = runCLI(t, "-seed", "99", "-s", "3", "-w", "0.05", "-parallel=false", "-o", second, input)
	require.Equal(t, exitOK, code, stderr)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b), "same seed should give identical files")
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	input := writeTestWAV(t, dir, 16)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no input", nil, exitUsage},
		{"two inputs", []string{input, input}, exitUsage},
		{"unknown flag", []string{"-nope", input}, exitUsage},
		{"bad bits", []string{"-bits", "12", input}, exitUsage},
		{"bad format", []string{"-format", "dsd", input}, exitUsage},
		{"16-bit float", []string{"-format", "float", "-bits", "16", input}, exitUsage},
		{"64-bit int", []string{"-format", "int", "-bits", "64", input}, exitUsage},
		{"two inputs around flags", []string{input, "-s", "2", input}, exitUsage},
		{"zero stretch", []string{"-s", "0", input}, exitUsage},
		{"negative window", []string{"-w", "-1", input}, exitUsage},
		{"overwrite input", []string{"-o", input, input}, exitUsage},
		{"missing preset", []string{"-config", filepath.Join(dir, "none.yaml"), input}, exitUsage},
		{"missing input", []string{filepath.Join(dir, "missing.wav")}, exitFailure},
		{"unsupported format", []string{filepath.Join(dir, "song.aiff")}, exitFailure},
		{"unwritable output", []string{"-o", filepath.Join(dir, "no", "dir.wav"), input}, exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestRun_HelpAndVersion(t *testing.T) {
	code, _, stderr := runCLI(t, "-h")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "Usage: paulstretch")

	for _, flagName := range []string{"-V", "--version"} {
		code, stdout, _ := runCLI(t, flagName)
		assert.Equal(t, exitOK, code)
		assert.True(t, strings.HasPrefix(stdout, "paulstretch "), stdout)
	}
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	input := writeTestWAV(t, dir, 16)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out, errOut bytes.Buffer
	code := run(ctx, []string{"-w", "0.05", input}, &out, &errOut)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut.String(), "context canceled")
	assert.NoFileExists(t, filepath.Join(dir, "tone.stretched.wav"), "partial output is removed")
}

func TestRun_OutputFormat(t *testing.T) {
	tests := []struct {
		name       string
		inBits     int
		inFormat   audioio.SampleFormat
		args       []string
		wantBits   int
		wantFormat audioio.SampleFormat
		wantLine   string
	}{
		{"float input stays float", 32, audioio.FormatFloat, nil, 32, audioio.FormatFloat, "32-bit float -> 32-bit float"},
		{"float64 input", 64, audioio.FormatFloat, nil, 64, audioio.FormatFloat, "64-bit float -> 64-bit float"},
		{"8-bit output", 16, audioio.FormatInt, []string{"-bits", "8"}, 8, audioio.FormatInt, "16-bit int -> 8-bit int"},
		{"8-bit input", 8, audioio.FormatInt, nil, 8, audioio.FormatInt, "8-bit int -> 8-bit int"},
		{"float requested", 16, audioio.FormatInt, []string{"-format", "float"}, 32, audioio.FormatFloat, "-> 32-bit float"},
		{"64 bits implies float", 24, audioio.FormatInt, []string{"-bits", "64"}, 64, audioio.FormatFloat, "-> 64-bit float"},
		{"16 bits from float input", 32, audioio.FormatFloat, []string{"-bits", "16"}, 16, audioio.FormatInt, "-> 16-bit int"},
		{"int requested from float", 64, audioio.FormatFloat, []string{"-format", "int"}, 32, audioio.FormatInt, "-> 32-bit int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			input := writeToneWAV(t, dir, tt.inBits, tt.inFormat)
			output := filepath.Join(dir, "out.wav")

			args := append([]string{"-s", "2", "-w", "0.05", "-seed", "3", "-o", output}, tt.args...)
			code, stdout, stderr := runCLI(t, append(args, input)...)
			require.Equal(t, exitOK, code, stderr)
			assert.Contains(t, stdout, tt.wantLine)

			src, err := audioio.OpenWAV(output)
			require.NoError(t, err)
			defer func() { _ = src.Close() }()
			assert.Equal(t, tt.wantBits, src.BitDepth())
			assert.Equal(t, tt.wantFormat, src.SampleFormat())
		})
	}
}

func TestRun_FlagsAfterInput(t *testing.T) {
	dir := t.TempDir()
	input := writeTestWAV(t, dir, 16)
	output := filepath.Join(dir, "after.wav")

	code, stdout, stderr := runCLI(t, input, "-o", output, "-s", "2", "-w", "0.05", "-seed", "11")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "seed 11")
	assert.FileExists(t, output)
	assert.NoFileExists(t, filepath.Join(dir, "tone.stretched.wav"))
}

func TestParseArgs_PresetAndOverrides(t *testing.T) {
	dir := t.TempDir()
	presetPath := filepath.Join(dir, "preset.yaml")
	require.NoError(t, os.WriteFile(presetPath, []byte("stretch: 20\nwindow: 0.5\nseed: 5\nbits: 24\nformat: int\nfade: false\nchunk_size: 1024\n"), 0o600))

	var stderr bytes.Buffer
	opts, err := parseArgs([]string{"-config", presetPath, "-s", "3", "in.wav"}, &stderr)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, opts.stretch, 0, "explicit flag wins")
	assert.InDelta(t, 0.5, opts.window, 0)
	assert.Equal(t, uint64(5), opts.seed)
	assert.Equal(t, 24, opts.bits)
	assert.Equal(t, "int", opts.format)
	assert.False(t, opts.fade)
	assert.True(t, opts.parallel, "absent key keeps the flag default")
	assert.Equal(t, 1024, opts.chunkSize)
	assert.Equal(t, "in.stretched.wav", opts.output)
}

func TestParseArgs_Interspersed(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		input   string
		output  string
		stretch float64
	}{
		{"flags first", []string{"-s", "3", "-o", "x.wav", "in.wav"}, "in.wav", "x.wav", 3},
		{"flags last", []string{"in.wav", "-s", "3", "-o", "x.wav"}, "in.wav", "x.wav", 3},
		{"flags around", []string{"-s", "3", "in.wav", "-o", "x.wav"}, "in.wav", "x.wav", 3},
		{"dash input after terminator", []string{"-s", "3", "--", "-in.wav"}, "-in.wav", "-in.stretched.wav", 3},
		{"flag-like name after terminator", []string{"--", "-s"}, "-s", "-s.stretched.wav", defaultStretch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			opts, err := parseArgs(tt.args, &stderr)
			require.NoError(t, err, stderr.String())
			assert.Equal(t, tt.input, opts.input)
			assert.Equal(t, tt.output, opts.output)
			assert.InDelta(t, tt.stretch, opts.stretch, 0)
		})
	}
}

func TestParseArgs_Defaults(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseArgs([]string{"track.flac"}, &stderr)
	require.NoError(t, err)

	assert.Equal(t, "track.flac", opts.input)
	assert.Equal(t, "track.stretched.wav", opts.output)
	assert.InDelta(t, defaultStretch, opts.stretch, 0)
	assert.InDelta(t, defaultWindow, opts.window, 0)
	assert.Zero(t, opts.seed)
	assert.Zero(t, opts.bits)
	assert.Empty(t, opts.format)
	assert.True(t, opts.parallel)
	assert.True(t, opts.fade)
	assert.False(t, opts.verbose)
}
