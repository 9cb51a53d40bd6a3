package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePreset(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"full", "stretch: 8\nwindow: 0.25\nseed: 1\nbits: 16\nformat: int\nparallel: false\nfade: true\nchunk_size: 0\n", ""},
		{"float64", "bits: 64\nformat: float\n", ""},
		{"8-bit", "bits: 8\n", ""},
		{"empty", "", ""},
		{"unknown key", "stretch: 8\nspeed: 2\n", "field speed not found"},
		{"wrong type", "stretch: fast\n", "decode yaml"},
		{"zero stretch", "stretch: 0\n", "stretch 0 must be positive"},
		{"bad bits", "bits: 12\n", "bits 12 is invalid"},
		{"bad format", "format: alaw\n", `format "alaw" is invalid`},
		{"negative chunk", "chunk_size: -5\n", "chunk_size -5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := decodePreset(strings.NewReader(tt.yaml))
			if tt.wantErr != "" {
				require.ErrorIs(t, err, errUsage)
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

func TestDecodePreset_JoinsErrors(t *testing.T) {
	_, err := decodePreset(strings.NewReader("stretch: -1\nwindow: -2\nbits: 7\n"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "stretch -1")
	assert.ErrorContains(t, err, "window -2")
	assert.ErrorContains(t, err, "bits 7")
}

func TestPresetApply(t *testing.T) {
	stretchValue, window, parallel, format := 12.0, 0.75, false, "float"
	p := &preset{Stretch: &stretchValue, Window: &window, Parallel: &parallel, Format: &format}

	opts := &options{stretch: defaultStretch, window: defaultWindow, parallel: true}
	p.apply(opts, map[string]bool{"w": true})

	assert.InDelta(t, 12.0, opts.stretch, 0)
	assert.InDelta(t, defaultWindow, opts.window, 0, "explicit -w is kept")
	assert.False(t, opts.parallel)
	assert.Equal(t, "float", opts.format)

	opts = &options{format: "int"}
	p.apply(opts, map[string]bool{"format": true})
	assert.Equal(t, "int", opts.format, "explicit -format is kept")
}
