package main

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1 // I/O or processing failure
	exitUsage   = 2 // Bad arguments or parameters
)

// CLI defaults
const (
	defaultStretch = 8.0
	defaultWindow  = 0.25
	outputSuffix   = ".stretched.wav"
)

// Progress reporting
const (
	progressInterval = 10 // Log progress every N%
	percentScale     = 100
)

// Analysis limits
const (
	analyzeMaxSeconds = 30 // Seconds of channel 0 kept for -analyze
)

// Output bit depths
const (
	bitsPerSample16 = 16
	bitsPerSample24 = 24
	bitsPerSample32 = 32
)
