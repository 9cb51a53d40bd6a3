package audioio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

// wavSubFormatSuffix is the fixed tail of the KSDATAFORMAT_SUBTYPE GUIDs
// (00000000-0010-0080-00AA00389B71) following the 16-bit format code.
var wavSubFormatSuffix = []byte{
	0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00,
	0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71,
}

// WAVSource decodes WAV files: 8, 16, 24 or 32 bit integer PCM and 32 or
// 64 bit IEEE float, plain or WAVE_FORMAT_EXTENSIBLE.
type WAVSource struct {
	file     *os.File
	decoder  *wav.Decoder
	rate     int
	channels int
	bitDepth int
	format   SampleFormat
	frames   int64

	intBuffer *audio.IntBuffer
	invMaxVal float64

	// Float files bypass the integer decoder and read the data chunk
	pcm     io.Reader
	byteBuf []byte
}

// OpenWAV opens and validates a WAV file.
func OpenWAV(path string) (*WAVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	src, err := newWAVSource(file, path)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return src, nil
}

func newWAVSource(file *os.File, path string) (*WAVSource, error) {
	tag, err := wavFormatTag(file)
	if err != nil {
		return nil, fmt.Errorf("invalid WAV file %s: %w", path, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind input file: %w", err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}

	var sampleFormat SampleFormat
	switch tag {
	case wavFormatPCM:
		sampleFormat = FormatInt
	case wavFormatFloat:
		sampleFormat = FormatFloat
	default:
		return nil, fmt.Errorf("%w: WAV format code %#x (want integer PCM or IEEE float)", ErrUnsupportedFormat, tag)
	}

	format := decoder.Format()
	bitDepth := int(decoder.BitDepth)
	if !SupportedDepth(sampleFormat, bitDepth) {
		return nil, fmt.Errorf("%w: %d-bit %s WAV", ErrUnsupportedFormat, bitDepth, sampleFormat)
	}
	if format.NumChannels < 1 || format.SampleRate < 1 {
		return nil, fmt.Errorf("invalid WAV header: %d channels at %d Hz", format.NumChannels, format.SampleRate)
	}

	// Total length for progress reporting
	var frames int64
	if duration, err := decoder.Duration(); err == nil {
		frames = int64(duration.Seconds()*float64(format.SampleRate) + 0.5)
	}

	src := &WAVSource{
		file:     file,
		decoder:  decoder,
		rate:     format.SampleRate,
		channels: format.NumChannels,
		bitDepth: bitDepth,
		format:   sampleFormat,
		frames:   frames,
	}
	if sampleFormat == FormatFloat {
		if err := decoder.FwdToPCM(); err != nil {
			return nil, fmt.Errorf("failed to locate WAV data: %w", err)
		}
		src.pcm = decoder.PCMChunk.R
		return src, nil
	}

	src.intBuffer = &audio.IntBuffer{Format: format}
	src.invMaxVal = 1.0 / fullScale(bitDepth)
	return src, nil
}

// wavFormatTag reads the format code from the fmt chunk of a RIFF/WAVE
// stream. For WAVE_FORMAT_EXTENSIBLE it returns the code carried in the
// sub-format GUID instead.
func wavFormatTag(r io.Reader) (uint16, error) {
	parser := riff.New(r)
	if err := parser.ParseHeaders(); err != nil {
		return 0, err
	}

	for {
		chunk, err := parser.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("no fmt chunk: %w", err)
		}
		if chunk.ID != riff.FmtID {
			chunk.Drain()
			continue
		}

		buf := make([]byte, min(chunk.Size, wavExtensibleFmtSize))
		if _, err := io.ReadFull(chunk.R, buf); err != nil || len(buf) < 2 {
			return 0, fmt.Errorf("truncated fmt chunk: %w", err)
		}
		tag := binary.LittleEndian.Uint16(buf)
		if tag != wavFormatExtensible {
			return tag, nil
		}
		if len(buf) < wavExtensibleFmtSize {
			return 0, fmt.Errorf("extensible fmt chunk of %d bytes, want %d", len(buf), wavExtensibleFmtSize)
		}
		guid := buf[wavSubFormatOffset:]
		if !bytes.Equal(guid[2:], wavSubFormatSuffix) {
			return 0, fmt.Errorf("%w: unknown WAVE_FORMAT_EXTENSIBLE sub-format %x", ErrUnsupportedFormat, guid)
		}
		return binary.LittleEndian.Uint16(guid), nil
	}
}

// SampleRate returns the sample rate in Hz.
func (s *WAVSource) SampleRate() int { return s.rate }

// Channels returns the channel count.
func (s *WAVSource) Channels() int { return s.channels }

// BitDepth returns the bit depth of the encoded samples.
func (s *WAVSource) BitDepth() int { return s.bitDepth }

// SampleFormat returns the sample encoding.
func (s *WAVSource) SampleFormat() SampleFormat { return s.format }

// TotalFrames returns the length in samples per channel.
func (s *WAVSource) TotalFrames() int64 { return s.frames }

// ReadSamples decodes up to len(dst[0]) samples per channel into dst.
// Integer samples are normalized to [-1, 1); float samples are passed
// through as stored.
func (s *WAVSource) ReadSamples(dst [][]float64) (int, error) {
	if err := checkDst(dst, s.channels); err != nil {
		return 0, err
	}
	want := len(dst[0]) * s.channels
	if want == 0 {
		return 0, nil
	}
	if s.format == FormatFloat {
		return s.readFloat(dst)
	}

	if cap(s.intBuffer.Data) < want {
		s.intBuffer.Data = make([]int, want)
	}
	s.intBuffer.Data = s.intBuffer.Data[:want]

	// n counts interleaved samples, not frames
	n, err := s.decoder.PCMBuffer(s.intBuffer)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("failed to read audio data: %w", err)
	}
	frames := n / s.channels
	if frames == 0 {
		return 0, io.EOF
	}

	data := s.intBuffer.Data[:frames*s.channels]
	if s.bitDepth == bitsPerSample8 {
		for i := range data {
			data[i] -= wav8BitOffset
		}
	}
	deinterleaveInto(data, dst, s.channels, frames, s.invMaxVal)
	return frames, nil
}

// readFloat reads IEEE float frames straight from the data chunk.
func (s *WAVSource) readFloat(dst [][]float64) (int, error) {
	bytesPerSample := s.bitDepth / bitsPerByte
	frameBytes := bytesPerSample * s.channels
	want := len(dst[0]) * frameBytes
	if len(s.byteBuf) < want {
		s.byteBuf = make([]byte, want)
	}

	n, err := io.ReadFull(s.pcm, s.byteBuf[:want])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("failed to read audio data: %w", err)
	}
	frames := n / frameBytes
	if frames == 0 {
		return 0, io.EOF
	}

	decodeFloatsInto(s.byteBuf[:frames*frameBytes], dst, s.channels, frames, bytesPerSample)
	return frames, nil
}

// decodeFloatsInto converts interleaved little-endian float32 or float64
// samples into planar buffers.
func decodeFloatsInto(data []byte, channelBufs [][]float64, numChannels, samplesPerChannel, bytesPerSample int) {
	for i := range samplesPerChannel {
		for ch := range numChannels {
			b := data[(i*numChannels+ch)*bytesPerSample:]
			if bytesPerSample == bytesPerSample32 {
				channelBufs[ch][i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
			} else {
				channelBufs[ch][i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
			}
		}
	}
}

// Close closes the input file.
func (s *WAVSource) Close() error {
	return s.file.Close()
}
