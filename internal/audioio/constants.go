package audioio

const (
	// Sample format constants
	bitsPerSample8  = 8
	bitsPerSample16 = 16
	bitsPerSample24 = 24
	bitsPerSample32 = 32
	bitsPerSample64 = 64

	// Full-scale values per bit depth
	maxInt8  = 127.0
	maxInt16 = 32767.0
	maxInt24 = 8388607.0
	maxInt32 = 2147483647.0

	// Channel count constants for fast paths
	monoChannels   = 1
	stereoChannels = 2

	// 8-bit WAV samples are unsigned around this midpoint
	wav8BitOffset = 128

	// WAV format codes
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE

	// WAVE_FORMAT_EXTENSIBLE fmt chunk layout: the sub-format GUID starts
	// with the real format code
	wavExtensibleFmtSize = 40
	wavSubFormatOffset   = 24

	// WAV header layout
	wavHeaderSize      = 44 // Total WAV header size in bytes
	wavRiffHeaderSize  = 36 // RIFF header size (file size - 8 = riffHeaderSize + dataSize)
	wavPCMSubchunkSize = 16 // fmt subchunk size for PCM format
	wavFileSizeOffset  = 4  // Byte offset for file size field in header
	wavDataSizeOffset  = 40 // Byte offset for data size field in header

	// Byte sizes for PCM sample formats
	bytesPerSample16 = 2
	bytesPerSample24 = 3
	bytesPerSample32 = 4
	bytesPerSample64 = 8
	bitsPerByte      = 8

	// Bit shift amounts for 24-bit sample encoding
	bitShift8  = 8
	bitShift16 = 16

	// I/O buffer sizes
	wavWriterBufferSize = 256 * 1024 // 256KB write buffer
	uint32Size          = 4
)
