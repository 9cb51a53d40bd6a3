package stretch

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"github.com/tphakala/go-audio-stretch/internal/engine"
	"github.com/tphakala/go-audio-stretch/internal/pipeline"
)

// RandomSource supplies uniform random numbers in [0, 1). Phases are drawn
// from it, so a seeded source makes a run reproducible.
// *math/rand/v2.Rand satisfies it; see [NewRandomSource].
type RandomSource = engine.RandomSource

// SampleProvider is a pull-based decoded audio source.
type SampleProvider interface {
	// SampleRate returns the source sample rate in Hz.
	SampleRate() int

	// Channels returns the number of channels.
	Channels() int

	// ReadSamples fills dst (one slice per channel, all the same length)
	// with up to len(dst[0]) samples per channel and returns how many
	// were read. At end of stream it returns io.EOF, possibly together
	// with a final n > 0.
	ReadSamples(dst [][]float64) (int, error)
}

// State is the lifecycle state of a stretcher.
type State = engine.State

// Lifecycle states.
const (
	StateIdle     = engine.StateIdle
	StateRunning  = engine.StateRunning
	StateDraining = engine.StateDraining
	StateDone     = engine.StateDone
)

// Params are the stretch parameters of a run.
type Params struct {
	// StretchFactor is the output/input duration ratio. 8 turns one second
	// into about eight. Values below 1 shorten the signal.
	StretchFactor float64

	// WindowSeconds is the analysis window length. The frame size is the
	// next power of two of WindowSeconds * SampleRate. 0.25 s suits most
	// music; longer windows smear the sound into a texture.
	WindowSeconds float64

	// SampleRate of the audio in Hz.
	SampleRate int

	// Channels is the number of audio channels. Each channel is stretched
	// by an independent pipeline.
	Channels int
}

// Config holds stretch configuration.
type Config struct {
	Params

	// Parallel stretches channels concurrently, one goroutine per channel.
	// Output is identical to sequential processing.
	Parallel bool

	// FadeOut fades the last 50 ms of the source to silence before
	// analysis so the stretched tail does not end on a click.
	FadeOut bool

	// ChunkSize is the number of samples per channel Run reads from the
	// source at a time. Zero selects a default.
	ChunkSize int
}

// Common errors returned by the stretcher.
var (
	// ErrInvalidParameters indicates invalid stretch parameters.
	ErrInvalidParameters = errors.New("invalid stretch parameters")

	// ErrChannelMismatch indicates input with the wrong number of channels.
	ErrChannelMismatch = errors.New("channel count mismatch")

	// ErrAlreadyConsumed is yielded when a Run sequence is iterated twice.
	ErrAlreadyConsumed = errors.New("stretch sequence already consumed")

	// ErrDone is returned when a stretcher is used after Flush completed.
	ErrDone = engine.ErrDone
)

// DefaultConfig returns the classic paulstretch settings (stretch 8,
// 0.25 s window) for the given format, with parallel channels and tail
// fade enabled.
func DefaultConfig(sampleRate, channels int) Config {
	return Config{
		Params: Params{
			StretchFactor: DefaultStretchFactor,
			WindowSeconds: DefaultWindowSeconds,
			SampleRate:    sampleRate,
			Channels:      channels,
		},
		Parallel: true,
		FadeOut:  true,
	}
}

// Validate checks if the parameters are valid.
func (p *Params) Validate() error {
	_, err := p.plan(false)
	return err
}

// FrameSize returns the frame size in samples the parameters select.
func (p *Params) FrameSize() (int, error) {
	plan, err := p.plan(false)
	if err != nil {
		return 0, err
	}
	return plan.FrameSize, nil
}

func (p *Params) plan(fadeOut bool) (*pipeline.Plan, error) {
	if p.Channels < 1 {
		return nil, fmt.Errorf("%w: channels must be at least 1", ErrInvalidParameters)
	}
	if p.Channels > maxChannels {
		return nil, fmt.Errorf("%w: too many channels (max %d)", ErrInvalidParameters, maxChannels)
	}

	plan, err := pipeline.BuildPlan(p.StretchFactor, p.WindowSeconds, p.SampleRate, fadeOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return plan, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ChunkSize < 0 {
		return fmt.Errorf("%w: chunk size must not be negative", ErrInvalidParameters)
	}
	return c.Params.Validate()
}

func (c *Config) chunkSize() int {
	if c.ChunkSize > 0 {
		return c.ChunkSize
	}
	return defaultChunkSize
}

// NewRandomSource returns a deterministic random source for seed.
func NewRandomSource(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seedStream))
}

// channelSources gives every channel its own random source. A mono run
// uses rng directly; otherwise one seed per channel is drawn from rng in
// channel order, so results do not depend on goroutine scheduling.
func channelSources(rng RandomSource, channels int) []RandomSource {
	sources := make([]RandomSource, channels)
	if channels == 1 {
		sources[0] = rng
		return sources
	}
	for ch := range sources {
		seed := math.Float64bits(rng.Float64())
		sources[ch] = rand.New(rand.NewPCG(seed, uint64(ch)))
	}
	return sources
}

// readFull is io.ReadFull for a SampleProvider: it keeps reading until dst
// is full or the source ends. It returns io.EOF only once nothing more can
// be read.
func readFull(src SampleProvider, dst [][]float64) (int, error) {
	want := len(dst[0])
	views := make([][]float64, len(dst))
	n, empty := 0, 0
	for n < want {
		for ch := range dst {
			views[ch] = dst[ch][n:]
		}
		m, err := src.ReadSamples(views)
		n += m
		if err != nil {
			if errors.Is(err, io.EOF) && n > 0 {
				return n, io.EOF
			}
			return n, err
		}
		if m == 0 {
			empty++
			if empty >= maxEmptyReads {
				return n, io.ErrNoProgress
			}
			continue
		}
		empty = 0
	}
	return n, nil
}
