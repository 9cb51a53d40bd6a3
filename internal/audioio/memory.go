package audioio

import "io"

// MemorySource serves planar samples held in memory.
type MemorySource struct {
	data [][]float64
	rate int
	pos  int
}

// NewMemorySource wraps data, one equally long slice per channel. The
// slices are not copied.
func NewMemorySource(data [][]float64, sampleRate int) *MemorySource {
	return &MemorySource{data: data, rate: sampleRate}
}

// SampleRate returns the sample rate in Hz.
func (s *MemorySource) SampleRate() int { return s.rate }

// Channels returns the channel count.
func (s *MemorySource) Channels() int { return len(s.data) }

// BitDepth reports 64 for float64 samples.
func (s *MemorySource) BitDepth() int { return bitsPerSample64 }

// SampleFormat reports FormatFloat.
func (s *MemorySource) SampleFormat() SampleFormat { return FormatFloat }

// TotalFrames returns the length in samples per channel.
func (s *MemorySource) TotalFrames() int64 { return int64(s.length()) }

// ReadSamples copies up to len(dst[0]) samples per channel into dst.
func (s *MemorySource) ReadSamples(dst [][]float64) (int, error) {
	if err := checkDst(dst, len(s.data)); err != nil {
		return 0, err
	}
	remaining := s.length() - s.pos
	if remaining <= 0 {
		return 0, io.EOF
	}

	n := min(len(dst[0]), remaining)
	for ch := range dst {
		copy(dst[ch][:n], s.data[ch][s.pos:s.pos+n])
	}
	s.pos += n
	return n, nil
}

// Close is a no-op.
func (s *MemorySource) Close() error { return nil }

func (s *MemorySource) length() int {
	if len(s.data) == 0 {
		return 0
	}
	return len(s.data[0])
}
