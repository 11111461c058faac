package relay

import (
	"sort"
	"time"
)

// audioChunk is one captured PCM fragment with its capture time, used to merge
// the two directions chronologically at drain.
type audioChunk struct {
	capturedAt time.Time
	data       []byte
}

// AudioBuffer is a bounded append-only sequence of PCM chunks for one
// direction of a session. When the byte cap is reached new chunks are refused
// rather than evicting captured audio; a stuck or very long call degrades to a
// truncated recording instead of unbounded memory growth.
type AudioBuffer struct {
	chunks   []audioChunk
	size     int
	maxBytes int
	refused  int
}

func NewAudioBuffer(maxBytes int) *AudioBuffer {
	return &AudioBuffer{
		maxBytes: maxBytes,
	}
}

// Append copies data into the buffer. Returns false when the cap refused it.
func (b *AudioBuffer) Append(data []byte, capturedAt time.Time) bool {
	if len(data) == 0 {
		return true
	}
	if b.maxBytes > 0 && b.size+len(data) > b.maxBytes {
		b.refused++
		return false
	}

	chunk := make([]byte, len(data))
	copy(chunk, data)
	b.chunks = append(b.chunks, audioChunk{capturedAt: capturedAt, data: chunk})
	b.size += len(data)
	return true
}

func (b *AudioBuffer) Size() int {
	return b.size
}

func (b *AudioBuffer) Refused() int {
	return b.refused
}

// MergeBuffers interleaves the chunks of both directions by capture time into
// one continuous PCM stream for the encoder.
func MergeBuffers(inbound, outbound *AudioBuffer) []byte {
	merged := make([]audioChunk, 0, len(inbound.chunks)+len(outbound.chunks))
	merged = append(merged, inbound.chunks...)
	merged = append(merged, outbound.chunks...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].capturedAt.Before(merged[j].capturedAt)
	})

	out := make([]byte, 0, inbound.size+outbound.size)
	for _, chunk := range merged {
		out = append(out, chunk.data...)
	}
	return out
}
