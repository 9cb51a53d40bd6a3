package pipeline

// Frame geometry constants
const (
	// Smallest frame the engine will run (matches the 16-sample floor of
	// the classic paulstretch implementations).
	minFrameSize = 16

	// Largest frame; keeps ring buffers and FFT plans within sane memory.
	maxFrameSize = 1 << 24

	// Synthesis hop is frame size / hopDivisor (50% overlap).
	hopDivisor = 2
)

// Tail fade constants
const (
	minFadeLength   = 16 // Minimum tail fade in samples
	fadeRateDivisor = 20 // Fade covers sampleRate/20 samples (50 ms)
)

// Buffer constants
const (
	bufferGrowthFactor = 2 // Factor for buffer growth
	accumulatorFrames  = 2 // Accumulator capacity in frames
	defaultQueueSize   = 4096
)
