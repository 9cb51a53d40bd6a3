package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/tphakala/go-audio-stretch/internal/pipeline"
	"github.com/tphakala/go-audio-stretch/internal/window"
)

// ErrDone is returned when a Stretcher is used after it finished.
var ErrDone = errors.New("stretcher already finished")

// State is the lifecycle state of a Stretcher.
type State int

const (
	// StateIdle means no input has been seen yet.
	StateIdle State = iota

	// StateRunning means frames are being pulled as input arrives.
	StateRunning

	// StateDraining means the source is exhausted; remaining frames are
	// zero padded and the accumulator is flushed.
	StateDraining

	// StateDone is terminal.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stretcher runs the paulstretch pipeline for a single channel.
//
// Input is pushed with Process as it is decoded and Flush is called once the
// source is exhausted. Frame k is read from the source at floor(k *
// AnalysisHop), processed by a FrameProcessor and accumulated at k *
// SynthesisHop. After frame k is added, every output position below (k+1) *
// SynthesisHop is final and returned.
//
// When the plan has a tail fade, a frame is only analysed once FadeLength
// samples beyond its end have arrived, so the fade can still be applied to
// the last samples of the stream when Flush learns where the stream ends.
//
// A Stretcher is not safe for concurrent use. Independent channels use
// independent Stretchers and may run in parallel; the window may be shared.
type Stretcher struct {
	plan  *pipeline.Plan
	proc  *FrameProcessor
	input *pipeline.SampleQueue
	acc   *pipeline.OverlapAdd

	// Working buffers
	frame     []float64
	processed []float64

	state    State
	next     int  // index of the next frame to analyse
	received int  // source samples received so far
	faded    bool // tail fade applied

	// Statistics
	samplesOut int64
}

// NewStretcher creates a single-channel stretcher.
//
// win must have plan.FrameSize coefficients and must overlap-add to a
// constant at plan.SynthesisHop; this is verified numerically.
func NewStretcher(plan *pipeline.Plan, win []float64, rng RandomSource) (*Stretcher, error) {
	if plan == nil {
		return nil, errors.New("nil plan")
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if len(win) != plan.FrameSize {
		return nil, fmt.Errorf("window length %d does not match frame size %d", len(win), plan.FrameSize)
	}
	if err := window.VerifyConstantOverlap(win, plan.SynthesisHop, window.Tolerance(len(win))); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("nil random source")
	}

	return &Stretcher{
		plan:      plan,
		proc:      NewFrameProcessor(win, rng),
		input:     pipeline.NewSampleQueue(queueFrames * plan.FrameSize),
		acc:       pipeline.NewOverlapAdd(win, plan.SynthesisHop),
		frame:     make([]float64, plan.FrameSize),
		processed: make([]float64, plan.FrameSize),
	}, nil
}

// Process feeds source samples and returns every output sample that became
// final. The first call moves the stretcher from Idle to Running.
//
// ctx is checked once per frame. On cancellation Process returns the
// samples finalized so far together with ctx.Err(); no partially added
// frame is left behind and a later call resumes where this one stopped.
func (s *Stretcher) Process(ctx context.Context, input []float64) ([]float64, error) {
	switch s.state {
	case StateIdle:
		s.state = StateRunning
	case StateRunning:
	default:
		return nil, ErrDone
	}

	s.input.Write(input)
	s.received += len(input)

	var out []float64
	lookahead := s.plan.FrameSize + s.plan.FadeLength
	for s.plan.FrameStart(s.next)+lookahead <= s.received {
		if err := ctx.Err(); err != nil {
			s.samplesOut += int64(len(out))
			return out, err
		}
		out = s.step(out)
	}

	s.samplesOut += int64(len(out))
	return out, nil
}

// Flush signals the end of the source. Remaining frames are analysed with
// zero padding past the last sample, every written output position is
// emitted, and the stretcher ends in Done.
//
// Cancellation behaves as in Process; the stretcher stays in Draining and
// Flush may be called again to finish.
func (s *Stretcher) Flush(ctx context.Context) ([]float64, error) {
	switch s.state {
	case StateIdle, StateRunning:
		s.state = StateDraining
	case StateDraining:
	default:
		return nil, ErrDone
	}

	if !s.faded {
		s.applyTailFade()
		s.faded = true
	}

	var out []float64
	for s.plan.FrameStart(s.next) < s.received {
		if err := ctx.Err(); err != nil {
			s.samplesOut += int64(len(out))
			return out, err
		}
		out = s.step(out)
	}

	out = s.acc.DrainInto(out, s.acc.Written())
	s.samplesOut += int64(len(out))
	s.state = StateDone
	return out, nil
}

// step analyses frame s.next and appends the samples it finalizes.
func (s *Stretcher) step(out []float64) []float64 {
	s.input.CopyFrom(s.frame, s.plan.FrameStart(s.next))
	s.proc.Process(s.processed, s.frame)
	s.acc.Add(s.processed, s.plan.SynthesisOffset(s.next))
	s.next++

	s.input.DiscardBefore(s.plan.FrameStart(s.next))
	return s.acc.DrainInto(out, s.plan.SynthesisOffset(s.next))
}

// applyTailFade ramps the last FadeLength source samples linearly down to
// zero, the final sample being exactly zero.
func (s *Stretcher) applyTailFade() {
	fade := s.plan.FadeLength
	if fade < 2 || s.received == 0 {
		return
	}

	from := s.received - fade
	tail := s.input.View(from, s.received)
	if len(tail) == 0 {
		return
	}
	first := s.received - len(tail) // absolute index of tail[0]
	for i := range tail {
		remaining := s.received - 1 - (first + i)
		tail[i] *= float64(remaining) / float64(fade-1)
	}
}

// Reset returns the stretcher to Idle with empty buffers. The random source
// keeps its position.
func (s *Stretcher) Reset() {
	s.input.Reset()
	s.acc.Reset()
	s.state = StateIdle
	s.next = 0
	s.received = 0
	s.faded = false
	s.samplesOut = 0
}

// State returns the current lifecycle state.
func (s *Stretcher) State() State {
	return s.state
}

// Plan returns the frame geometry in use.
func (s *Stretcher) Plan() *pipeline.Plan {
	return s.plan
}

// FramesProcessed returns the number of frames analysed so far.
func (s *Stretcher) FramesProcessed() int {
	return s.next
}

// SamplesIn returns the number of source samples received.
func (s *Stretcher) SamplesIn() int64 {
	return int64(s.received)
}

// SamplesOut returns the number of output samples returned.
func (s *Stretcher) SamplesOut() int64 {
	return s.samplesOut
}

// Latency returns the number of output samples written to the accumulator
// but not yet final.
func (s *Stretcher) Latency() int {
	return s.acc.Pending()
}
