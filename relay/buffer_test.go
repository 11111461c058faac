package relay

import (
	"bytes"
	"testing"
	"time"
)

func TestAudioBufferAppend(t *testing.T) {
	buf := NewAudioBuffer(100)

	if !buf.Append([]byte("abcd"), time.Now()) {
		t.Fatal("append under cap should succeed")
	}
	if buf.Size() != 4 {
		t.Errorf("expected size 4, got %d", buf.Size())
	}
}

func TestAudioBufferCopiesData(t *testing.T) {
	buf := NewAudioBuffer(0)
	data := []byte{1, 2, 3}
	buf.Append(data, time.Now())
	data[0] = 99

	merged := MergeBuffers(buf, NewAudioBuffer(0))
	if merged[0] != 1 {
		t.Error("buffer must copy chunk data, not alias it")
	}
}

func TestAudioBufferRefusesOverflow(t *testing.T) {
	buf := NewAudioBuffer(10)

	if !buf.Append(make([]byte, 8), time.Now()) {
		t.Fatal("first append should fit")
	}
	if buf.Append(make([]byte, 8), time.Now()) {
		t.Fatal("second append should be refused")
	}
	if buf.Size() != 8 {
		t.Errorf("refused chunk must not change size, got %d", buf.Size())
	}
	if buf.Refused() != 1 {
		t.Errorf("expected 1 refused chunk, got %d", buf.Refused())
	}
}

func TestAudioBufferEmptyChunk(t *testing.T) {
	buf := NewAudioBuffer(4)
	if !buf.Append(nil, time.Now()) {
		t.Error("empty chunk should be a no-op, not a refusal")
	}
}

func TestMergeBuffersChronological(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	inbound := NewAudioBuffer(0)
	outbound := NewAudioBuffer(0)

	inbound.Append([]byte("AA"), base)
	outbound.Append([]byte("BB"), base.Add(time.Second))
	inbound.Append([]byte("CC"), base.Add(2*time.Second))
	outbound.Append([]byte("DD"), base.Add(3*time.Second))

	merged := MergeBuffers(inbound, outbound)
	if !bytes.Equal(merged, []byte("AABBCCDD")) {
		t.Errorf("expected chronological interleave AABBCCDD, got %s", merged)
	}
}
