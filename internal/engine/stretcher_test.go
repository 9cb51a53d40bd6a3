package engine

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-stretch/internal/pipeline"
	"github.com/tphakala/go-audio-stretch/internal/testutil"
	"github.com/tphakala/go-audio-stretch/internal/window"
)

func newTestStretcher(t *testing.T, stretch, windowSeconds float64, fade bool, seed uint64) *Stretcher {
	t.Helper()
	plan, err := pipeline.BuildPlan(stretch, windowSeconds, testSampleRate, fade)
	require.NoError(t, err)
	s, err := NewStretcher(plan, window.Hann(plan.FrameSize), newTestRNG(seed))
	require.NoError(t, err)
	return s
}

// stretchAll feeds input in chunks of chunk samples and flushes.
func stretchAll(t *testing.T, s *Stretcher, input []float64, chunk int) []float64 {
	t.Helper()
	ctx := context.Background()
	var out []float64
	for start := 0; start < len(input); start += chunk {
		end := min(start+chunk, len(input))
		got, err := s.Process(ctx, input[start:end])
		require.NoError(t, err)
		out = append(out, got...)
	}
	tail, err := s.Flush(ctx)
	require.NoError(t, err)
	return append(out, tail...)
}

func TestStretcher_EmptyInput(t *testing.T) {
	s := newTestStretcher(t, 8, 0.25, true, 1)
	assert.Equal(t, StateIdle, s.State())

	out, err := s.Flush(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, StateDone, s.State())
	assert.Zero(t, s.FramesProcessed())
	assert.Zero(t, s.SamplesOut())
}

func TestStretcher_UseAfterDone(t *testing.T) {
	s := newTestStretcher(t, 2, 0.01, false, 1)
	stretchAll(t, s, testutil.SineWave(440, testSampleRate, 1000, 0.5), 1000)

	_, err := s.Process(context.Background(), []float64{1})
	assert.ErrorIs(t, err, ErrDone)
	_, err = s.Flush(context.Background())
	assert.ErrorIs(t, err, ErrDone)
}

func TestStretcher_StateTransitions(t *testing.T) {
	s := newTestStretcher(t, 4, 0.05, false, 1)
	ctx := context.Background()

	_, err := s.Process(ctx, make([]float64, 10))
	require.NoError(t, err)
	assert.Equal(t, StateRunning, s.State())

	_, err = s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateDone, s.State())

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestStretcher_OutputLength(t *testing.T) {
	tests := []struct {
		name     string
		stretch  float64
		window   float64
		fade     bool
		inputLen int
		chunk    int
	}{
		{"stretch_8_one_second", 8, 0.25, true, testSampleRate, 4096},
		{"stretch_8_no_fade", 8, 0.25, false, testSampleRate, testSampleRate},
		{"stretch_1", 1, 0.1, true, testSampleRate / 2, 1000},
		{"fractional_stretch", 2.7, 0.05, false, 10000, 333},
		{"compression", 0.25, 0.05, false, 20000, 1500},
		{"shorter_than_frame", 10, 0.25, true, 100, 100},
		{"single_sample", 3, 0.05, false, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStretcher(t, tt.stretch, tt.window, tt.fade, 3)
			input := testutil.SineWave(440, testSampleRate, tt.inputLen, 0.5)

			out := stretchAll(t, s, input, tt.chunk)

			plan := s.Plan()
			testutil.AssertLengthEquals(t, out, plan.OutputLength(tt.inputLen))
			assert.Equal(t, plan.FrameCount(tt.inputLen), s.FramesProcessed())
			assert.Equal(t, int64(len(out)), s.SamplesOut())
			assert.Equal(t, int64(tt.inputLen), s.SamplesIn())
			assert.InDelta(t, float64(tt.inputLen)*tt.stretch, float64(len(out)), float64(plan.FrameSize))
			assert.Zero(t, s.Latency())
			testutil.AssertNoNaNOrInf(t, out)
		})
	}
}

func TestStretcher_ChunkingDoesNotChangeOutput(t *testing.T) {
	input := testutil.SineWave(330, testSampleRate, 30000, 0.7)

	whole := stretchAll(t, newTestStretcher(t, 5, 0.05, true, 9), input, len(input))
	chunked := stretchAll(t, newTestStretcher(t, 5, 0.05, true, 9), input, 777)
	tiny := stretchAll(t, newTestStretcher(t, 5, 0.05, true, 9), input, 1)

	assert.Equal(t, whole, chunked)
	assert.Equal(t, whole, tiny)
}

func TestStretcher_Determinism(t *testing.T) {
	input := testutil.SineWave(440, testSampleRate, 20000, 0.5)

	a := stretchAll(t, newTestStretcher(t, 4, 0.05, true, 100), input, 4096)
	b := stretchAll(t, newTestStretcher(t, 4, 0.05, true, 100), input, 4096)
	c := stretchAll(t, newTestStretcher(t, 4, 0.05, true, 101), input, 4096)

	assert.Equal(t, a, b)
	require.Len(t, c, len(a))
	assert.NotEqual(t, a, c)
}

func TestStretcher_SteadyToneKeepsLevel(t *testing.T) {
	const amplitude = 0.5
	input := testutil.SineWave(1000, testSampleRate, testSampleRate, amplitude)

	out := stretchAll(t, newTestStretcher(t, 4, 0.1, true, 5), input, 8192)

	// RMS of the middle section stays within 3 dB of the input's
	mid := out[len(out)/4 : 3*len(out)/4]
	var energy float64
	for _, v := range mid {
		energy += v * v
	}
	rms := math.Sqrt(energy / float64(len(mid)))
	want := amplitude / math.Sqrt2
	testutil.AssertInRange(t, rms, want/math.Sqrt2, want*math.Sqrt2)
}

func TestStretcher_NoAmplitudeModulation(t *testing.T) {
	const (
		sampleRate = 8000
		frames     = 16000
	)
	plan, err := pipeline.BuildPlan(1, 0.0075, sampleRate, false)
	require.NoError(t, err)
	require.Equal(t, 64, plan.FrameSize)
	hop := plan.SynthesisHop

	s, err := NewStretcher(plan, window.Hann(plan.FrameSize), newTestRNG(12))
	require.NoError(t, err)

	noise := rand.New(rand.NewPCG(3, 5))
	input := make([]float64, frames*hop)
	for i := range input {
		input[i] = 2*noise.Float64() - 1 // variance 1/3
	}
	out := stretchAll(t, s, input, 4096)

	// Average power at each phase of the synthesis hop, away from the edges
	power := make([]float64, hop)
	body := out[plan.FrameSize : len(out)-2*plan.FrameSize]
	for i, v := range body {
		power[i%hop] += v * v
	}
	lo, hi, mean := math.Inf(1), 0.0, 0.0
	for j := range power {
		power[j] /= float64(len(body) / hop)
		lo, hi = min(lo, power[j]), max(hi, power[j])
		mean += power[j] / float64(hop)
	}

	assert.Greater(t, lo/hi, 0.85, "power ripple across the hop: min %.4f max %.4f", lo, hi)
	testutil.AssertRelativeError(t, 1.0/3, mean, 0.1, "stationary input keeps its level")
}

func TestStretcher_CancelAndResume(t *testing.T) {
	input := testutil.SineWave(440, testSampleRate, 20000, 0.5)
	want := stretchAll(t, newTestStretcher(t, 4, 0.05, false, 21), input, len(input))

	s := newTestStretcher(t, 4, 0.05, false, 21)
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := s.Process(cancelled, input)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out)
	assert.Zero(t, s.FramesProcessed())
	assert.Equal(t, StateRunning, s.State())

	// Resume with an empty push, then flush with a cancelled context
	resumed, err := s.Process(context.Background(), nil)
	require.NoError(t, err)
	tail, err := s.Flush(cancelled)
	require.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StateDraining, s.State())
	resumed = append(resumed, tail...)

	tail, err = s.Flush(context.Background())
	require.NoError(t, err)
	resumed = append(resumed, tail...)

	assert.Equal(t, want, resumed)
	assert.Equal(t, StateDone, s.State())
}

func TestStretcher_TailFade(t *testing.T) {
	const sampleRate = 320 // fade = max(16, 320/20) = 16
	plan, err := pipeline.BuildPlan(1, 0.04, sampleRate, true)
	require.NoError(t, err)
	require.Equal(t, 16, plan.FadeLength)
	require.Equal(t, 16, plan.FrameSize)

	s, err := NewStretcher(plan, window.Hann(plan.FrameSize), newTestRNG(1))
	require.NoError(t, err)

	ones := make([]float64, 100)
	for i := range ones {
		ones[i] = 1
	}
	_, err = s.Process(context.Background(), ones)
	require.NoError(t, err)

	// Lookahead keeps every sample of the fade region buffered
	s.applyTailFade()
	tail := s.input.View(100-plan.FadeLength, 100)
	require.Len(t, tail, plan.FadeLength)
	for i, v := range tail {
		want := float64(plan.FadeLength-1-i) / float64(plan.FadeLength-1)
		assert.InDelta(t, want, v, testutil.DefaultTolerance, "tail[%d]", i)
	}
	assert.Zero(t, tail[len(tail)-1])
}

func TestStretcher_Reset(t *testing.T) {
	input := testutil.SineWave(440, testSampleRate, 5000, 0.5)
	s := newTestStretcher(t, 3, 0.05, false, 4)

	first := stretchAll(t, s, input, 1000)
	s.Reset()
	assert.Equal(t, StateIdle, s.State())
	assert.Zero(t, s.FramesProcessed())

	second := stretchAll(t, s, input, 1000)
	assert.Len(t, second, len(first))
	// The random source moved on, so the texture differs
	assert.NotEqual(t, first, second)
}

func TestNewStretcher_Errors(t *testing.T) {
	plan, err := pipeline.BuildPlan(2, 0.01, testSampleRate, false)
	require.NoError(t, err)
	win := window.Hann(plan.FrameSize)

	_, err = NewStretcher(nil, win, newTestRNG(1))
	assert.Error(t, err)

	_, err = NewStretcher(plan, win[:len(win)-1], newTestRNG(1))
	assert.ErrorContains(t, err, "does not match frame size")

	bumpy := append([]float64(nil), win...)
	bumpy[len(bumpy)/3] += 0.5
	_, err = NewStretcher(plan, bumpy, newTestRNG(1))
	assert.ErrorContains(t, err, "not constant")

	_, err = NewStretcher(plan, win, nil)
	assert.ErrorContains(t, err, "random source")

	bad := *plan
	bad.AnalysisHop = 0.5
	_, err = NewStretcher(&bad, win, newTestRNG(1))
	assert.ErrorContains(t, err, "analysis hop")
}
