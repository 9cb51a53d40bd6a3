package audioio

import (
	"fmt"
	"io"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
)

// beepDecoder is the signature shared by beep's format decoders.
type beepDecoder func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

// BeepSource adapts a beep stream (MP3 or Ogg Vorbis) to planar samples.
// beep always streams stereo frames; mono files duplicate the channel and
// only the first is returned.
type BeepSource struct {
	stream   beep.StreamSeekCloser
	format   beep.Format
	channels int

	// Working buffer
	frames [][2]float64
}

// OpenMP3 opens an MP3 file.
func OpenMP3(path string) (*BeepSource, error) {
	return openBeep(path, mp3.Decode, "MP3")
}

// OpenVorbis opens an Ogg Vorbis file.
func OpenVorbis(path string) (*BeepSource, error) {
	return openBeep(path, vorbis.Decode, "Ogg Vorbis")
}

func openBeep(path string, decode beepDecoder, name string) (*BeepSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	// The decoder owns the file from here on
	stream, format, err := decode(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("invalid %s file: %w", name, err)
	}

	channels := min(max(format.NumChannels, monoChannels), stereoChannels)
	return &BeepSource{
		stream:   stream,
		format:   format,
		channels: channels,
	}, nil
}

// SampleRate returns the sample rate in Hz.
func (s *BeepSource) SampleRate() int { return int(s.format.SampleRate) }

// Channels returns 1 or 2.
func (s *BeepSource) Channels() int { return s.channels }

// BitDepth returns the decoder precision in bits.
func (s *BeepSource) BitDepth() int { return s.format.Precision * bitsPerByte }

// SampleFormat reports FormatInt; beep describes its decoders by integer
// precision.
func (s *BeepSource) SampleFormat() SampleFormat { return FormatInt }

// TotalFrames returns the stream length in samples per channel.
func (s *BeepSource) TotalFrames() int64 { return int64(s.stream.Len()) }

// ReadSamples decodes up to len(dst[0]) samples per channel into dst.
func (s *BeepSource) ReadSamples(dst [][]float64) (int, error) {
	if err := checkDst(dst, s.channels); err != nil {
		return 0, err
	}
	want := len(dst[0])
	if want == 0 {
		return 0, nil
	}
	if cap(s.frames) < want {
		s.frames = make([][2]float64, want)
	}

	n, ok := s.stream.Stream(s.frames[:want])
	for i := range n {
		for ch := range dst {
			dst[ch][i] = s.frames[i][ch]
		}
	}
	if !ok {
		if err := s.stream.Err(); err != nil {
			return n, fmt.Errorf("failed to decode audio: %w", err)
		}
		return n, io.EOF
	}
	return n, nil
}

// Close closes the stream and its file.
func (s *BeepSource) Close() error {
	return s.stream.Close()
}
