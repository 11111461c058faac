// Package audio encodes raw PCM sample data into WAV containers.
package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

// wavHeader is the fixed 44-byte RIFF/WAVE header that precedes the sample data.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for linear PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // number of sample bytes
}

// EncodeWAV wraps raw interleaved PCM bytes in a WAV container. The input is
// taken as-is; no resampling or validation happens here, so the function never
// fails for well-formed numeric parameters.
func EncodeWAV(data []byte, sampleRate, channels, bitDepth int) []byte {
	dataSize := uint32(len(data))
	bytesPerSample := uint32(bitDepth / 8)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(channels) * bytesPerSample,
		BlockAlign:    uint16(channels) * uint16(bytesPerSample),
		BitsPerSample: uint16(bitDepth),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(data)))
	// bytes.Buffer writes cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, header)
	buf.Write(data)

	return buf.Bytes()
}

// DurationSeconds reports the playback duration of a raw PCM byte count,
// rounded to whole seconds.
func DurationSeconds(byteCount int, sampleRate, channels, bitDepth int) int {
	bytesPerSecond := sampleRate * channels * (bitDepth / 8)
	if bytesPerSecond <= 0 {
		return 0
	}
	return int(math.Round(float64(byteCount) / float64(bytesPerSecond)))
}
