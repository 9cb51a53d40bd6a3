package audioio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ErrWAVTooLarge is returned when output would overflow the 32-bit RIFF sizes.
var ErrWAVTooLarge = errors.New("WAV data exceeds 4 GiB")

// WAVWriter writes planar float64 samples as integer PCM or IEEE float WAV
// without per-sample allocations. Samples outside [-1, 1] are clipped and
// counted in either format.
type WAVWriter struct {
	w          *bufio.Writer
	f          *os.File
	sampleRate int
	bitDepth   int
	channels   int
	format     SampleFormat
	dataSize   uint32
	frames     int64
	clipped    int64
	maxVal     float64

	// Working buffers
	intBuf   []int
	floatBuf []float64
	byteBuf  []byte
}

// CreateWAV creates path and writes a WAV header with placeholder sizes.
// The sizes are fixed up by Close. format and bitDepth must satisfy
// SupportedDepth.
func CreateWAV(path string, sampleRate, bitDepth, channels int, format SampleFormat) (*WAVWriter, error) {
	if !SupportedDepth(format, bitDepth) {
		return nil, fmt.Errorf("%w: %d-bit %s output (want 8, 16, 24 or 32 bit int, 32 or 64 bit float)",
			ErrUnsupportedFormat, bitDepth, format)
	}
	if channels < 1 || sampleRate < 1 {
		return nil, fmt.Errorf("invalid output format: %d channels at %d Hz", channels, sampleRate)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	w := &WAVWriter{
		w:          bufio.NewWriterSize(f, wavWriterBufferSize),
		f:          f,
		sampleRate: sampleRate,
		bitDepth:   bitDepth,
		channels:   channels,
		format:     format,
		maxVal:     fullScale(bitDepth),
	}
	if err := w.writeHeader(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	return w, nil
}

func (w *WAVWriter) writeHeader() error {
	byteRate := w.sampleRate * w.channels * (w.bitDepth / bitsPerByte)
	blockAlign := w.channels * (w.bitDepth / bitsPerByte)

	header := make([]byte, wavHeaderSize)

	// RIFF header
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 0) // Placeholder for file size - 8
	copy(header[8:12], "WAVE")

	// fmt subchunk
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], wavPCMSubchunkSize)
	tag := uint16(wavFormatPCM)
	if w.format == FormatFloat {
		tag = wavFormatFloat
	}
	binary.LittleEndian.PutUint16(header[20:22], tag)
	binary.LittleEndian.PutUint16(header[22:24], uint16(w.channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(w.bitDepth))

	// data subchunk
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], 0) // Placeholder for data size

	_, err := w.w.Write(header)
	return err
}

// WriteFrames appends one planar block, planar[ch] holding the samples of
// channel ch. All channels must have the same length.
func (w *WAVWriter) WriteFrames(planar [][]float64) error {
	if len(planar) != w.channels {
		return fmt.Errorf("expected %d channels, got %d", w.channels, len(planar))
	}
	frames := len(planar[0])
	for ch := 1; ch < len(planar); ch++ {
		if len(planar[ch]) != frames {
			return fmt.Errorf("channel %d has %d samples, channel 0 has %d", ch, len(planar[ch]), frames)
		}
	}
	if frames == 0 {
		return nil
	}

	total := frames * w.channels
	bytesPerSample := w.bitDepth / bitsPerByte
	if uint64(w.dataSize)+uint64(total*bytesPerSample) > math.MaxUint32-wavRiffHeaderSize {
		return ErrWAVTooLarge
	}

	var err error
	if w.format == FormatFloat {
		if cap(w.floatBuf) < total {
			w.floatBuf = make([]float64, total)
		}
		samples := w.floatBuf[:total]
		w.clipped += int64(interleaveFloatInto(planar, samples))
		err = w.writeFloats(samples)
	} else {
		if cap(w.intBuf) < total {
			w.intBuf = make([]int, total)
		}
		samples := w.intBuf[:total]
		w.clipped += int64(interleaveInto(planar, samples, w.maxVal))
		err = w.writeSamples(samples)
	}
	if err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	w.frames += int64(frames)
	return nil
}

// writeFloats encodes samples as little-endian float32 or float64.
func (w *WAVWriter) writeFloats(samples []float64) error {
	buf := w.buffer(len(samples) * (w.bitDepth / bitsPerByte))
	if w.bitDepth == bitsPerSample32 {
		for i, s := range samples {
			binary.LittleEndian.PutUint32(buf[i*bytesPerSample32:], math.Float32bits(float32(s)))
		}
	} else {
		for i, s := range samples {
			binary.LittleEndian.PutUint64(buf[i*bytesPerSample64:], math.Float64bits(s))
		}
	}
	return w.write(buf)
}

// buffer returns the byte buffer resized to n.
func (w *WAVWriter) buffer(n int) []byte {
	if len(w.byteBuf) < n {
		w.byteBuf = make([]byte, n)
	}
	return w.byteBuf[:n]
}

func (w *WAVWriter) write(buf []byte) error {
	written, err := w.w.Write(buf)
	w.dataSize += uint32(written)
	return err
}

// writeSamples encodes integer samples at the writer's bit depth.
func (w *WAVWriter) writeSamples(samples []int) error {
	buf := w.buffer(len(samples) * (w.bitDepth / bitsPerByte))

	switch w.bitDepth {
	case bitsPerSample8:
		for i, s := range samples {
			buf[i] = byte(s + wav8BitOffset)
		}
	case bitsPerSample16:
		for i, s := range samples {
			binary.LittleEndian.PutUint16(buf[i*bytesPerSample16:], uint16(int16(s)))
		}
	case bitsPerSample24:
		for i, s := range samples {
			buf[i*bytesPerSample24] = byte(s)
			buf[i*bytesPerSample24+1] = byte(s >> bitShift8)
			buf[i*bytesPerSample24+2] = byte(s >> bitShift16)
		}
	default:
		for i, s := range samples {
			binary.LittleEndian.PutUint32(buf[i*bytesPerSample32:], uint32(int32(s)))
		}
	}

	return w.write(buf)
}

// Frames returns the number of samples per channel written so far.
func (w *WAVWriter) Frames() int64 { return w.frames }

// Clipped returns the number of samples clipped to full scale.
func (w *WAVWriter) Clipped() int64 { return w.clipped }

// Close flushes buffered data, fixes up the header sizes and closes the
// file.
func (w *WAVWriter) Close() error {
	if err := w.finish(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

func (w *WAVWriter) finish() error {
	if err := w.w.Flush(); err != nil {
		return err
	}

	// File size at offset 4: total file size - 8
	fileSize := wavRiffHeaderSize + w.dataSize
	sizeBytes := make([]byte, uint32Size)

	binary.LittleEndian.PutUint32(sizeBytes, fileSize)
	if _, err := w.f.WriteAt(sizeBytes, wavFileSizeOffset); err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(sizeBytes, w.dataSize)
	if _, err := w.f.WriteAt(sizeBytes, wavDataSizeOffset); err != nil {
		return err
	}

	_, err := w.f.Seek(0, io.SeekEnd)
	return err
}

// interleaveInto converts planar samples into dst, clamping to [-1, 1]
// and scaling by maxVal. It returns the number of clamped samples.
func interleaveInto(channels [][]float64, dst []int, maxVal float64) int {
	numChannels := len(channels)
	clipped := 0

	for ch, samples := range channels {
		for i, sample := range samples {
			if sample > 1.0 {
				sample = 1.0
				clipped++
			} else if sample < -1.0 {
				sample = -1.0
				clipped++
			}
			dst[i*numChannels+ch] = int(sample * maxVal)
		}
	}
	return clipped
}

// interleaveFloatInto interleaves planar samples into dst, clamping to
// [-1, 1]. It returns the number of clamped samples.
func interleaveFloatInto(channels [][]float64, dst []float64) int {
	numChannels := len(channels)
	clipped := 0

	for ch, samples := range channels {
		for i, sample := range samples {
			if clamped := max(-1, min(1, sample)); clamped != sample {
				sample = clamped
				clipped++
			}
			dst[i*numChannels+ch] = sample
		}
	}
	return clipped
}
