package stretch

// Channel constants
const (
	stereoChannels = 2   // Stereo channel count (SIMD interleave fast path)
	maxChannels    = 256 // Maximum supported channel count
)

// Defaults of the classic paulstretch command line.
const (
	DefaultStretchFactor = 8.0
	DefaultWindowSeconds = 0.25
)

// Streaming constants
const (
	defaultChunkSize = 8192 // Samples per channel read from a SampleProvider at a time
	maxEmptyReads    = 100  // Consecutive (0, nil) reads before io.ErrNoProgress
)

// seedStream is the PCG stream selector used by NewRandomSource.
const seedStream = 0x9e3779b97f4a7c15
