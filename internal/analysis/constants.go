package analysis

const (
	// Default STFT geometry for frequency tracks.
	DefaultTrackFrame = 4096
	DefaultTrackHop   = 2048

	// Bins closer than this to a parabola vertex denominator are not
	// interpolated.
	interpolationEpsilon = 1e-12

	// Half of a real spectrum plus the Nyquist bin.
	spectrumDivisor = 2
)
