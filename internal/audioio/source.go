// Package audioio decodes audio files into planar float64 samples and
// encodes stretched output as integer or floating point WAV.
//
// Every decoder implements the pull interface the stretch package consumes:
// SampleRate, Channels and ReadSamples(dst [][]float64) returning io.EOF at
// the end of the stream.
package audioio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for files this package cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// SampleFormat is the encoding of the samples in an audio file.
type SampleFormat int

const (
	// FormatInt is integer PCM: unsigned at 8 bits, signed above.
	FormatInt SampleFormat = iota

	// FormatFloat is IEEE 754 floating point.
	FormatFloat
)

func (f SampleFormat) String() string {
	switch f {
	case FormatInt:
		return "int"
	case FormatFloat:
		return "float"
	default:
		return fmt.Sprintf("SampleFormat(%d)", int(f))
	}
}

// SupportedDepth reports whether WAV files with the given sample format
// and bit depth can be read and written: 8, 16, 24 or 32 bit integer, or
// 32 or 64 bit float.
func SupportedDepth(format SampleFormat, bitDepth int) bool {
	switch format {
	case FormatInt:
		switch bitDepth {
		case bitsPerSample8, bitsPerSample16, bitsPerSample24, bitsPerSample32:
			return true
		}
	case FormatFloat:
		switch bitDepth {
		case bitsPerSample32, bitsPerSample64:
			return true
		}
	}
	return false
}

// Source is a decoded audio file.
type Source interface {
	SampleRate() int
	Channels() int
	ReadSamples(dst [][]float64) (int, error)

	// BitDepth is the bit depth of the encoded samples.
	BitDepth() int

	// SampleFormat is the encoding of the samples.
	SampleFormat() SampleFormat

	// TotalFrames is the stream length in samples per channel, 0 if unknown.
	TotalFrames() int64

	Close() error
}

// Open opens a WAV, FLAC, MP3 or Ogg Vorbis file, chosen by extension.
func Open(path string) (Source, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		return opened(OpenWAV(path))
	case ".flac":
		return opened(OpenFLAC(path))
	case ".mp3":
		return opened(OpenMP3(path))
	case ".ogg", ".oga":
		return opened(OpenVorbis(path))
	default:
		return nil, fmt.Errorf("%w: %q (want .wav, .flac, .mp3 or .ogg)", ErrUnsupportedFormat, ext)
	}
}

// opened keeps a failed open from returning a typed nil Source.
func opened[S Source](src S, err error) (Source, error) {
	if err != nil {
		return nil, err
	}
	return src, nil
}

// fullScale returns the magnitude of the largest integer sample at bitDepth.
func fullScale(bitDepth int) float64 {
	switch bitDepth {
	case bitsPerSample8:
		return maxInt8
	case bitsPerSample16:
		return maxInt16
	case bitsPerSample24:
		return maxInt24
	case bitsPerSample32:
		return maxInt32
	default:
		return maxInt16
	}
}

// deinterleaveInto converts interleaved int samples into planar buffers,
// scaling by invMaxVal.
func deinterleaveInto(data []int, channelBufs [][]float64, numChannels, samplesPerChannel int, invMaxVal float64) {
	// Fast path for mono
	if numChannels == monoChannels {
		buf := channelBufs[0]
		for i := range samplesPerChannel {
			buf[i] = float64(data[i]) * invMaxVal
		}
		return
	}

	// Fast path for stereo
	if numChannels == stereoChannels {
		buf0, buf1 := channelBufs[0], channelBufs[1]
		for i := range samplesPerChannel {
			idx := i * stereoChannels
			buf0[i] = float64(data[idx]) * invMaxVal
			buf1[i] = float64(data[idx+1]) * invMaxVal
		}
		return
	}

	for i := range samplesPerChannel {
		base := i * numChannels
		for ch := range numChannels {
			channelBufs[ch][i] = float64(data[base+ch]) * invMaxVal
		}
	}
}

func checkDst(dst [][]float64, channels int) error {
	if len(dst) != channels {
		return fmt.Errorf("expected %d channel buffers, got %d", channels, len(dst))
	}
	for ch := 1; ch < len(dst); ch++ {
		if len(dst[ch]) != len(dst[0]) {
			return fmt.Errorf("channel buffer %d has length %d, want %d", ch, len(dst[ch]), len(dst[0]))
		}
	}
	return nil
}
