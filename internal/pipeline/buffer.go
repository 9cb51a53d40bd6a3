package pipeline

// SampleQueue buffers source samples for one channel between the provider
// and the frame extractor. Samples are addressed by their absolute index in
// the source stream, so the engine can read frames at the analysis cursor
// without tracking how much has already been released.
//
// A SampleQueue is owned by a single channel pipeline and is not safe for
// concurrent use.
type SampleQueue struct {
	data  []float64
	start int // index in data of the oldest retained sample
	base  int // absolute source index of data[start]
	skip  int // incoming samples still to drop after a discard past End
}

// NewSampleQueue creates a queue with the given initial capacity.
func NewSampleQueue(capacity int) *SampleQueue {
	if capacity < 1 {
		capacity = defaultQueueSize
	}
	return &SampleQueue{
		data: make([]float64, 0, capacity),
	}
}

// Write appends samples to the end of the queue.
// Retained samples are compacted to the front before the backing array grows.
func (q *SampleQueue) Write(samples []float64) {
	if q.skip > 0 {
		n := min(q.skip, len(samples))
		samples = samples[n:]
		q.skip -= n
	}
	if len(samples) == 0 {
		return
	}

	if len(q.data)+len(samples) > cap(q.data) && q.start > 0 {
		q.compact()
	}
	if len(q.data)+len(samples) > cap(q.data) {
		q.grow(len(q.data) + len(samples))
	}
	q.data = append(q.data, samples...)
}

// Len returns the number of retained samples.
func (q *SampleQueue) Len() int {
	return len(q.data) - q.start
}

// Base returns the absolute index of the oldest retained sample.
func (q *SampleQueue) Base() int {
	return q.base
}

// End returns the absolute index one past the newest sample. While a
// discard past the newest sample is pending, End is the discard position.
func (q *SampleQueue) End() int {
	return q.base + q.Len()
}

// CopyFrom copies len(dst) samples starting at absolute index pos into dst.
// Positions past End are zero filled. Returns the number of real samples
// copied. Reading before Base is a programming error.
func (q *SampleQueue) CopyFrom(dst []float64, pos int) int {
	if pos < q.base {
		panic("pipeline: read before released position")
	}

	n := 0
	if offset := pos - q.base; offset < q.Len() {
		n = copy(dst, q.data[q.start+offset:])
	}
	clear(dst[n:])
	return n
}

// View returns a mutable slice over the retained samples in [from, to),
// clipped to the retained range.
func (q *SampleQueue) View(from, to int) []float64 {
	from = max(from, q.base)
	to = min(to, q.End())
	if from >= to {
		return nil
	}
	return q.data[q.start+from-q.base : q.start+to-q.base]
}

// DiscardBefore releases every sample with absolute index < pos.
// Releasing past End is allowed; later writes then start at pos.
func (q *SampleQueue) DiscardBefore(pos int) {
	if pos <= q.base {
		return
	}
	n := pos - q.base
	if n >= q.Len() {
		// Everything retained is released. Samples between End and pos
		// have not arrived yet and are dropped as they are written.
		q.skip += n - q.Len()
		q.data = q.data[:0]
		q.start = 0
		q.base = pos
		return
	}
	q.start += n
	q.base = pos
}

// Reset drops all samples and rewinds the absolute index to zero.
func (q *SampleQueue) Reset() {
	q.data = q.data[:0]
	q.start = 0
	q.base = 0
	q.skip = 0
}

// compact moves retained samples to the front of the backing array.
func (q *SampleQueue) compact() {
	n := copy(q.data, q.data[q.start:])
	q.data = q.data[:n]
	q.start = 0
}

// grow increases the backing capacity to at least minCapacity.
func (q *SampleQueue) grow(minCapacity int) {
	newCapacity := max(cap(q.data), 1)
	for newCapacity < minCapacity {
		newCapacity *= bufferGrowthFactor
	}

	newData := make([]float64, len(q.data)-q.start, newCapacity)
	copy(newData, q.data[q.start:])
	q.data = newData
	q.start = 0
}
