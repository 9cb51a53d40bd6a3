package pipeline

import (
	"fmt"
	"iter"
	"math"

	"github.com/tphakala/go-audio-stretch/internal/window"
)

// OverlapAdd accumulates processed frames at their synthesis offsets and
// emits normalized output samples once no later frame can reach them.
//
// Two parallel ring buffers hold, per absolute output position, the sum of
// frame samples and the window energy written there: window[i]^2 for frame
// sample i. Frames carry random phases, so overlapping frames add as
// uncorrelated noise and the output power at a position follows its
// accumulated energy, which dips to about half between frame centres.
// Emission divides by the square root of that energy, which removes the
// resulting amplitude modulation.
//
// The divisor never drops below the steady-state energy of the position's
// phase within the hop. At the first and last hop of a stream only one
// frame reaches a position; the floor keeps that frame's window taper
// instead of dividing it back out. A constant factor, the mean square of
// the window, compensates the analysis windowing so a stationary input
// keeps its level.
//
// Storage is a power-of-two ring (index & mask) covering every position
// that has been written but not yet emitted.
//
// An OverlapAdd is owned by a single channel pipeline and is not safe for
// concurrent use.
type OverlapAdd struct {
	window  []float64
	hop     int
	floor   []float64 // steady-state window energy per hop phase
	scale   float64   // mean square of the window
	sums    []float64
	weights []float64
	mask    int

	emitted int // absolute position of the next sample to emit
	written int // one past the highest position written
}

// NewOverlapAdd creates an accumulator for frames shaped by win and placed
// at multiples of hop. Every hop phase must be covered by a non-zero window
// coefficient.
func NewOverlapAdd(win []float64, hop int) *OverlapAdd {
	if len(win) == 0 {
		panic("pipeline: empty window")
	}
	floor := window.OverlapProfileSquared(win, hop)
	for j, e := range floor {
		if e <= 0 {
			panic(fmt.Sprintf("pipeline: hop phase %d has no window energy", j))
		}
	}
	var energy float64
	for _, v := range win {
		energy += v * v
	}

	capacity := NextPowerOfTwo(accumulatorFrames * len(win))
	return &OverlapAdd{
		window:  win,
		hop:     hop,
		floor:   floor,
		scale:   energy / float64(len(win)),
		sums:    make([]float64, capacity),
		weights: make([]float64, capacity),
		mask:    capacity - 1,
	}
}

// Add accumulates frame at output positions [offset, offset+len(frame)).
//
// The frame must have the window's length, offset must be a multiple of the
// hop, and offset must not precede the emission cursor: writing into an
// already emitted position is a logic bug and panics.
func (a *OverlapAdd) Add(frame []float64, offset int) {
	n := len(a.window)
	if len(frame) != n {
		panic(fmt.Sprintf("pipeline: frame length %d does not match window length %d", len(frame), n))
	}
	if offset%a.hop != 0 {
		panic(fmt.Sprintf("pipeline: frame offset %d is not a multiple of hop %d", offset, a.hop))
	}
	if offset < a.emitted {
		panic(fmt.Sprintf("pipeline: frame offset %d precedes emitted position %d", offset, a.emitted))
	}

	end := offset + n
	if end-a.emitted > len(a.sums) {
		a.grow(end - a.emitted)
	}

	for i, s := range frame {
		slot := (offset + i) & a.mask
		a.sums[slot] += s
		a.weights[slot] += a.window[i] * a.window[i]
	}
	a.written = max(a.written, end)
}

// DrainReady returns a lazy sequence of the normalized samples at every
// position in [Emitted(), before), clamped to positions already written.
// Each position is emitted once, in order, and its storage is released as
// it is yielded. Stopping the iteration early leaves the remaining
// positions pending.
//
// A position no frame has reached emits 0.
func (a *OverlapAdd) DrainReady(before int) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		limit := min(before, a.written)
		for a.emitted < limit {
			v := a.take(a.emitted)
			a.emitted++
			if !yield(v) {
				return
			}
		}
	}
}

// DrainInto appends the samples DrainReady(before) would yield to dst.
func (a *OverlapAdd) DrainInto(dst []float64, before int) []float64 {
	limit := min(before, a.written)
	for ; a.emitted < limit; a.emitted++ {
		dst = append(dst, a.take(a.emitted))
	}
	return dst
}

// Emitted returns the absolute position of the next sample to emit.
func (a *OverlapAdd) Emitted() int {
	return a.emitted
}

// Written returns one past the highest position any frame has reached.
func (a *OverlapAdd) Written() int {
	return a.written
}

// Pending returns the number of written positions not yet emitted.
func (a *OverlapAdd) Pending() int {
	return a.written - a.emitted
}

// Capacity returns the current ring capacity in samples.
func (a *OverlapAdd) Capacity() int {
	return len(a.sums)
}

// Reset clears all accumulated data and rewinds to position zero.
func (a *OverlapAdd) Reset() {
	clear(a.sums)
	clear(a.weights)
	a.emitted = 0
	a.written = 0
}

// take returns the normalized sample at pos and clears its slot.
func (a *OverlapAdd) take(pos int) float64 {
	slot := pos & a.mask
	sum, weight := a.sums[slot], a.weights[slot]
	a.sums[slot] = 0
	a.weights[slot] = 0
	if weight == 0 {
		return 0
	}
	energy := max(weight, a.floor[pos%a.hop])
	return sum / math.Sqrt(energy*a.scale)
}

// grow enlarges the ring so that minCapacity positions past the emission
// cursor fit, relocating pending positions to their new slots.
func (a *OverlapAdd) grow(minCapacity int) {
	newCapacity := len(a.sums)
	for newCapacity < minCapacity {
		newCapacity *= bufferGrowthFactor
	}
	newMask := newCapacity - 1

	sums := make([]float64, newCapacity)
	weights := make([]float64, newCapacity)
	for pos := a.emitted; pos < a.written; pos++ {
		sums[pos&newMask] = a.sums[pos&a.mask]
		weights[pos&newMask] = a.weights[pos&a.mask]
	}

	a.sums = sums
	a.weights = weights
	a.mask = newMask
}
