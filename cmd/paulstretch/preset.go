package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// preset is a YAML settings file. Absent keys leave the flag value alone.
//
//	stretch: 20
//	window: 0.5
//	seed: 1234
//	bits: 24
//	format: float
//	parallel: true
//	fade: true
//	chunk_size: 16384
type preset struct {
	Stretch   *float64 `yaml:"stretch"`
	Window    *float64 `yaml:"window"`
	Seed      *uint64  `yaml:"seed"`
	Bits      *int     `yaml:"bits"`
	Format    *string  `yaml:"format"`
	Parallel  *bool    `yaml:"parallel"`
	Fade      *bool    `yaml:"fade"`
	ChunkSize *int     `yaml:"chunk_size"`
}

// loadPreset reads and validates the preset file at path.
func loadPreset(path string) (*preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("preset: open %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	p, err := decodePreset(f)
	if err != nil {
		return nil, fmt.Errorf("preset: parse %q: %w", path, err)
	}
	return p, nil
}

// decodePreset decodes a preset from r, rejecting unknown keys.
func decodePreset(r io.Reader) (*preset, error) {
	p := &preset{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode yaml: %w", errUsage, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// validate returns a joined error listing every invalid value.
func (p *preset) validate() error {
	var errs []error

	if p.Stretch != nil && !positiveFinite(*p.Stretch) {
		errs = append(errs, fmt.Errorf("stretch %v must be positive and finite", *p.Stretch))
	}
	if p.Window != nil && !positiveFinite(*p.Window) {
		errs = append(errs, fmt.Errorf("window %v must be positive and finite", *p.Window))
	}
	if p.Bits != nil && !supportedBits(*p.Bits) {
		errs = append(errs, fmt.Errorf("bits %d is invalid; valid values: 8, 16, 24, 32, 64", *p.Bits))
	}
	if p.Format != nil {
		if _, _, err := parseFormat(*p.Format); err != nil {
			errs = append(errs, fmt.Errorf("format %q is invalid; valid values: int, float", *p.Format))
		}
	}
	if p.ChunkSize != nil && *p.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("chunk_size %d must not be negative", *p.ChunkSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: invalid preset: %w", errUsage, errors.Join(errs...))
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// apply copies preset values into opts for every flag not in set.
func (p *preset) apply(opts *options, set map[string]bool) {
	if p.Stretch != nil && !set["s"] {
		opts.stretch = *p.Stretch
	}
	if p.Window != nil && !set["w"] {
		opts.window = *p.Window
	}
	if p.Seed != nil && !set["seed"] {
		opts.seed = *p.Seed
	}
	if p.Bits != nil && !set["bits"] {
		opts.bits = *p.Bits
	}
	if p.Format != nil && !set["format"] {
		opts.format = *p.Format
	}
	if p.Parallel != nil && !set["parallel"] {
		opts.parallel = *p.Parallel
	}
	if p.Fade != nil && !set["fade"] {
		opts.fade = *p.Fade
	}
	if p.ChunkSize != nil {
		opts.chunkSize = *p.ChunkSize
	}
}
