package audio

import (
	"testing"
	"time"
)

func TestPCMBufferFramesAndTruncate(t *testing.T) {
	buf := &PCMBuffer{Samples: []int16{1, 2, 3, 4, 5, 6}, Format: Format{SampleRate: 8000, Channels: 2}}
	if got := buf.Frames(); got != 3 {
		t.Fatalf("expected 3 frames, got %d", got)
	}
	buf.Truncate(2)
	if len(buf.Samples) != 4 {
		t.Errorf("expected 4 samples after truncate, got %d", len(buf.Samples))
	}
	buf.Truncate(10)
	if len(buf.Samples) != 4 {
		t.Errorf("truncate past the end must be a no-op, got %d samples", len(buf.Samples))
	}
}

func TestPCMBufferBytesLittleEndian(t *testing.T) {
	buf := &PCMBuffer{Samples: []int16{0x0102, -2}, Format: Target}
	got := buf.Bytes(nil)
	want := []byte{0x02, 0x01, 0xfe, 0xff}
	if string(got) != string(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFormatDurations(t *testing.T) {
	if d := Target.FrameDuration(44100 * 5); d != 5*time.Second {
		t.Errorf("expected 5s, got %s", d)
	}
	if n := Target.FramesFor(2 * time.Second); n != 88200 {
		t.Errorf("expected 88200 frames, got %d", n)
	}
	if err := (Format{}).Validate(); err == nil {
		t.Error("expected zero format to be invalid")
	}
}

func TestAlgorithmValid(t *testing.T) {
	if !AlgorithmDefault.Valid() || AlgorithmDefault != 2 {
		t.Errorf("default algorithm must be variant 2, got %d", AlgorithmDefault)
	}
	if Algorithm(0).Valid() || Algorithm(6).Valid() {
		t.Error("out of range algorithms must be invalid")
	}
}
