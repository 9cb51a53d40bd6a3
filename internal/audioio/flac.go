package audioio

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// FLACSource decodes FLAC files frame by frame.
type FLACSource struct {
	stream   *flac.Stream
	rate     int
	channels int
	bitDepth int
	frames   int64

	// Decoded samples of the current FLAC frame not yet handed out
	pending [][]int32
	offset  int

	invMaxVal float64
}

// OpenFLAC opens a FLAC file and reads its stream info.
func OpenFLAC(path string) (*FLACSource, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	info := stream.Info
	bitDepth := int(info.BitsPerSample)
	if info.NChannels < 1 || info.SampleRate < 1 {
		_ = stream.Close()
		return nil, fmt.Errorf("invalid FLAC stream info: %d channels at %d Hz", info.NChannels, info.SampleRate)
	}
	if bitDepth < 1 || bitDepth > bitsPerSample32 {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: %d-bit FLAC", ErrUnsupportedFormat, bitDepth)
	}

	return &FLACSource{
		stream:    stream,
		rate:      int(info.SampleRate),
		channels:  int(info.NChannels),
		bitDepth:  bitDepth,
		frames:    int64(info.NSamples),
		invMaxVal: 1.0 / float64(int64(1)<<(bitDepth-1)),
	}, nil
}

// SampleRate returns the sample rate in Hz.
func (s *FLACSource) SampleRate() int { return s.rate }

// Channels returns the channel count.
func (s *FLACSource) Channels() int { return s.channels }

// SampleFormat reports FormatInt; FLAC is integer only.
func (s *FLACSource) SampleFormat() SampleFormat { return FormatInt }

// BitDepth returns the encoded bit depth.
func (s *FLACSource) BitDepth() int { return s.bitDepth }

// TotalFrames returns the length in samples per channel, 0 if the stream
// info does not record it.
func (s *FLACSource) TotalFrames() int64 { return s.frames }

// ReadSamples decodes up to len(dst[0]) samples per channel into dst,
// normalized to [-1, 1).
func (s *FLACSource) ReadSamples(dst [][]float64) (int, error) {
	if err := checkDst(dst, s.channels); err != nil {
		return 0, err
	}

	n := 0
	for n < len(dst[0]) {
		if s.pending == nil || s.offset >= len(s.pending[0]) {
			if err := s.nextFrame(); err != nil {
				if errors.Is(err, io.EOF) && n > 0 {
					return n, nil
				}
				return n, err
			}
			continue
		}

		m := min(len(dst[0])-n, len(s.pending[0])-s.offset)
		for ch := range dst {
			src := s.pending[ch][s.offset : s.offset+m]
			out := dst[ch][n : n+m]
			for i, v := range src {
				out[i] = float64(v) * s.invMaxVal
			}
		}
		s.offset += m
		n += m
	}
	return n, nil
}

// nextFrame decodes the next FLAC frame into pending.
func (s *FLACSource) nextFrame() error {
	frame, err := s.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("failed to decode FLAC frame: %w", err)
	}
	if len(frame.Subframes) != s.channels {
		return fmt.Errorf("FLAC frame has %d subframes, stream has %d channels", len(frame.Subframes), s.channels)
	}

	if s.pending == nil {
		s.pending = make([][]int32, s.channels)
	}
	for ch, sub := range frame.Subframes {
		s.pending[ch] = sub.Samples
	}
	s.offset = 0
	return nil
}

// Close closes the underlying file.
func (s *FLACSource) Close() error {
	return s.stream.Close()
}
