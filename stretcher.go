package stretch

import (
	"context"
	"fmt"

	"github.com/tphakala/simd/cpu"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/go-audio-stretch/internal/engine"
	"github.com/tphakala/go-audio-stretch/internal/pipeline"
	"github.com/tphakala/go-audio-stretch/internal/window"
)

// Stretcher time-stretches planar multi-channel audio pushed in chunks.
//
// Every channel has its own engine, random source and buffers; the Hann
// window is built once and shared read only. Channels advance in lockstep:
// feeding the same number of samples to each channel yields the same
// number of output samples per channel.
//
// Calls on one Stretcher must be serialized. With Config.Parallel set,
// ProcessMulti and Flush fan out over the channels internally.
type Stretcher struct {
	config   Config
	plan     *pipeline.Plan
	channels []*engine.Stretcher
}

// Info describes a configured stretcher.
type Info struct {
	// Algorithm describes the stretch algorithm in use.
	Algorithm string

	// FrameSize is the analysis/synthesis frame length in samples.
	FrameSize int

	// AnalysisHop is the distance between analysed frames in the source.
	AnalysisHop float64

	// SynthesisHop is the distance between frames in the output.
	SynthesisHop int

	// FadeLength is the number of source samples faded out at the end,
	// 0 when the tail fade is off.
	FadeLength int

	// Latency is the number of output samples written but not yet final.
	Latency int

	// SIMDType describes the SIMD instruction set in use.
	SIMDType string
}

// New creates a multi-channel stretcher. rng is the only source of
// randomness; with a seeded source the output is reproducible, whether or
// not channels run in parallel.
func New(config *Config, rng RandomSource) (*Stretcher, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidParameters)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is nil", ErrInvalidParameters)
	}

	plan, err := config.plan(config.FadeOut)
	if err != nil {
		return nil, err
	}

	win := window.Hann(plan.FrameSize)
	sources := channelSources(rng, config.Channels)

	s := &Stretcher{
		config:   *config,
		plan:     plan,
		channels: make([]*engine.Stretcher, config.Channels),
	}
	for ch := range s.channels {
		st, err := engine.NewStretcher(plan, win, sources[ch])
		if err != nil {
			return nil, fmt.Errorf("failed to create channel %d: %w", ch, err)
		}
		s.channels[ch] = st
	}

	return s, nil
}

// Process stretches a chunk of mono audio. It requires a single-channel
// configuration.
func (s *Stretcher) Process(ctx context.Context, input []float64) ([]float64, error) {
	if len(s.channels) != 1 {
		return nil, fmt.Errorf("%w: Process needs 1 channel, stretcher has %d", ErrChannelMismatch, len(s.channels))
	}
	return s.channels[0].Process(ctx, input)
}

// ProcessMulti stretches one planar chunk, input[ch] holding the samples
// of channel ch. All channels must carry the same number of samples.
//
// On cancellation the samples finalized so far are returned with
// ctx.Err(). Channels may then differ in length; they line up again once
// processing is resumed.
func (s *Stretcher) ProcessMulti(ctx context.Context, input [][]float64) ([][]float64, error) {
	if len(input) != len(s.channels) {
		return nil, fmt.Errorf("%w: expected %d channels, got %d", ErrChannelMismatch, len(s.channels), len(input))
	}
	for ch := 1; ch < len(input); ch++ {
		if len(input[ch]) != len(input[0]) {
			return nil, fmt.Errorf("%w: channel %d has %d samples, channel 0 has %d",
				ErrChannelMismatch, ch, len(input[ch]), len(input[0]))
		}
	}

	return s.forEachChannel(func(ch int, st *engine.Stretcher) ([]float64, error) {
		return st.Process(ctx, input[ch])
	})
}

// Flush ends the stream and returns the remaining samples of every
// channel. The stretcher is Done afterwards.
func (s *Stretcher) Flush(ctx context.Context) ([][]float64, error) {
	return s.forEachChannel(func(_ int, st *engine.Stretcher) ([]float64, error) {
		return st.Flush(ctx)
	})
}

// forEachChannel runs fn for every channel, concurrently when the config
// asks for it. Outputs are collected by channel index, so the result does
// not depend on scheduling.
func (s *Stretcher) forEachChannel(fn func(ch int, st *engine.Stretcher) ([]float64, error)) ([][]float64, error) {
	output := make([][]float64, len(s.channels))

	// Sequential processing (single channel or when parallel disabled)
	if !s.config.Parallel || len(s.channels) <= 1 {
		var firstErr error
		for ch, st := range s.channels {
			result, err := fn(ch, st)
			output[ch] = result
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("channel %d: %w", ch, err)
			}
		}
		return output, firstErr
	}

	// Every channel runs to completion even if another fails, so a
	// cancelled call leaves each engine in a resumable state.
	var g errgroup.Group
	for ch, st := range s.channels {
		g.Go(func() error {
			result, err := fn(ch, st)
			output[ch] = result
			if err != nil {
				return fmt.Errorf("channel %d: %w", ch, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return output, err
}

// Reset returns every channel to Idle. Random sources keep their
// position, so a reset stretcher does not repeat its earlier output.
func (s *Stretcher) Reset() {
	for _, st := range s.channels {
		st.Reset()
	}
}

// State returns the lifecycle state. All channels move through the states
// together.
func (s *Stretcher) State() State {
	return s.channels[0].State()
}

// Channels returns the number of channels.
func (s *Stretcher) Channels() int {
	return len(s.channels)
}

// FrameSize returns the frame length in samples.
func (s *Stretcher) FrameSize() int {
	return s.plan.FrameSize
}

// AnalysisHop returns the source distance between consecutive frames.
func (s *Stretcher) AnalysisHop() float64 {
	return s.plan.AnalysisHop
}

// SynthesisHop returns the output distance between consecutive frames.
func (s *Stretcher) SynthesisHop() int {
	return s.plan.SynthesisHop
}

// ExpectedLength returns the number of output samples per channel for an
// input of inputLen samples per channel.
func (s *Stretcher) ExpectedLength(inputLen int) int {
	return s.plan.OutputLength(inputLen)
}

// FramesProcessed returns the number of frames analysed per channel.
func (s *Stretcher) FramesProcessed() int {
	return s.channels[0].FramesProcessed()
}

// Info returns information about the stretcher.
func (s *Stretcher) Info() Info {
	return Info{
		Algorithm:    "paulstretch",
		FrameSize:    s.plan.FrameSize,
		AnalysisHop:  s.plan.AnalysisHop,
		SynthesisHop: s.plan.SynthesisHop,
		FadeLength:   s.plan.FadeLength,
		Latency:      s.channels[0].Latency(),
		SIMDType:     cpu.Info(),
	}
}
