package audio

import (
	"fmt"
	"time"
)

// Format describes interleaved signed 16-bit PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// Target is the format every decoder hands to the fingerprint engine.
var Target = Format{SampleRate: 44100, Channels: 1}

// Validate checks that the format can describe a real stream.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	return nil
}

// FrameDuration converts a frame count into wall-clock audio time.
func (f Format) FrameDuration(frames int64) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// FramesFor returns how many frames of this format cover d.
func (f Format) FramesFor(d time.Duration) int64 {
	return int64(d) * int64(f.SampleRate) / int64(time.Second)
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
}

// PCMBuffer is one decode step worth of interleaved samples. It belongs to the
// stream that produced it and is only valid until the next call to Next.
type PCMBuffer struct {
	Samples []int16
	Format  Format
}

// Frames returns the number of sample frames (samples per channel) in the buffer.
func (b *PCMBuffer) Frames() int {
	if b == nil || b.Format.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// Truncate keeps at most frames sample frames.
func (b *PCMBuffer) Truncate(frames int) {
	if frames < 0 {
		frames = 0
	}
	if n := frames * b.Format.Channels; n < len(b.Samples) {
		b.Samples = b.Samples[:n]
	}
}

// Bytes encodes the samples as little-endian s16le into dst, growing it if needed.
func (b *PCMBuffer) Bytes(dst []byte) []byte {
	n := len(b.Samples) * 2
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i, s := range b.Samples {
		dst[i*2] = byte(s)
		dst[i*2+1] = byte(s >> 8)
	}
	return dst
}
