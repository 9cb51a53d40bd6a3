package stretch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync/atomic"
)

// Run stretches everything src produces and returns the output as a lazy
// sequence of planar blocks ([channel][sample]).
//
// Nothing is read until the sequence is iterated. Blocks are yielded as
// soon as they are final; a block is never empty. The sequence ends after
// the flushed tail, or after yielding a non-nil error once. Breaking out
// of the loop stops reading.
//
// A zero SampleRate or Channels in config is taken from src; non-zero
// values must match src. Errors in config are yielded before any read.
//
// The sequence can be iterated once. Further iterations yield
// ErrAlreadyConsumed.
func Run(ctx context.Context, src SampleProvider, config Config, rng RandomSource) iter.Seq2[[][]float64, error] {
	var consumed atomic.Bool

	return func(yield func([][]float64, error) bool) {
		if consumed.Swap(true) {
			yield(nil, ErrAlreadyConsumed)
			return
		}

		s, err := newForSource(src, &config, rng)
		if err != nil {
			yield(nil, err)
			return
		}

		chunk := config.chunkSize()
		buf := make([][]float64, s.Channels())
		for ch := range buf {
			buf[ch] = make([]float64, chunk)
		}
		view := make([][]float64, len(buf))

		for {
			n, readErr := readFull(src, buf)
			if readErr != nil && !errors.Is(readErr, io.EOF) {
				yield(nil, fmt.Errorf("failed to read source: %w", readErr))
				return
			}

			if n > 0 {
				for ch := range buf {
					view[ch] = buf[ch][:n]
				}
				out, err := s.ProcessMulti(ctx, view)
				if !emit(yield, out, err) {
					return
				}
			}

			if readErr != nil {
				out, err := s.Flush(ctx)
				emit(yield, out, err)
				return
			}
		}
	}
}

// emit yields a block if it holds samples or comes with an error. It
// reports whether the sequence should continue.
func emit(yield func([][]float64, error) bool, out [][]float64, err error) bool {
	if err != nil {
		yield(out, err)
		return false
	}
	if len(out) == 0 || len(out[0]) == 0 {
		return true
	}
	return yield(out, nil)
}

func newForSource(src SampleProvider, config *Config, rng RandomSource) (*Stretcher, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source is nil", ErrInvalidParameters)
	}

	switch {
	case config.SampleRate == 0:
		config.SampleRate = src.SampleRate()
	case config.SampleRate != src.SampleRate():
		return nil, fmt.Errorf("%w: sample rate %d does not match source rate %d",
			ErrInvalidParameters, config.SampleRate, src.SampleRate())
	}

	switch {
	case config.Channels == 0:
		config.Channels = src.Channels()
	case config.Channels != src.Channels():
		return nil, fmt.Errorf("%w: expected %d channels, source has %d",
			ErrChannelMismatch, config.Channels, src.Channels())
	}

	return New(config, rng)
}
