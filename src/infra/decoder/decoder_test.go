package decoder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/contre95/fpbridge/src/audio"
	"github.com/contre95/fpbridge/src/features/config"
)

// writeWAV writes a 16-bit PCM sine wave to a temp file.
func writeWAV(t *testing.T, name string, rate, channels int, seconds float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	frames := int(float64(rate) * seconds)
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		v := int(12000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		for c := 0; c < channels; c++ {
			data[i*channels+c] = v
		}
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func countFrames(t *testing.T, stream audio.Stream) int {
	t.Helper()
	defer stream.Close()
	total := 0
	for {
		buf, err := stream.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return total
		}
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		if buf.Format != audio.Target {
			t.Fatalf("expected target format, got %s", buf.Format)
		}
		total += buf.Frames()
	}
}

func TestNative_WAVTargetFormat(t *testing.T) {
	path := writeWAV(t, "mono.wav", 44100, 1, 5)

	stream, err := NewNative(4096).Open(context.Background(), path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stream.Format() != audio.Target {
		t.Errorf("expected %s, got %s", audio.Target, stream.Format())
	}
	if got := countFrames(t, stream); got != 5*44100 {
		t.Errorf("expected %d frames, got %d", 5*44100, got)
	}
}

func TestNative_WAVStereoResampled(t *testing.T) {
	path := writeWAV(t, "stereo48k.wav", 48000, 2, 2)

	stream, err := NewNative(4096).Open(context.Background(), path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got, want := countFrames(t, stream), 2*44100; got != want {
		t.Errorf("expected %d frames after resampling, got %d", want, got)
	}
}

func TestNative_ResampledLengthKeepsTail(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    int
	}{
		{"shorter than the filter", 0.05, 2205},
		{"one buffer", 0.08, 3528},
		{"five seconds", 5, 220500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeWAV(t, "mono48k.wav", 48000, 1, tt.seconds)
			stream, err := NewNative(4096).Open(context.Background(), path)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := countFrames(t, stream); got != tt.want {
				t.Errorf("expected %d frames, got %d", tt.want, got)
			}
		})
	}
}

func TestNative_Rejections(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.wav")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	garbage := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(garbage, []byte("definitely not a riff header"), 0644); err != nil {
		t.Fatal(err)
	}
	ogg := filepath.Join(dir, "song.ogg")
	if err := os.WriteFile(ogg, []byte("OggS"), 0644); err != nil {
		t.Fatal(err)
	}

	native := NewNative(1024)
	ctx := context.Background()

	if _, err := native.Open(ctx, filepath.Join(dir, "missing.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	if _, err := native.Open(ctx, empty); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expected empty file error, got %v", err)
	}
	if _, err := native.Open(ctx, garbage); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected unsupported format for garbage WAV, got %v", err)
	}
	if _, err := native.Open(ctx, ogg); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected unsupported format for ogg, got %v", err)
	}
}

func TestPCMReader_DropsPartialFrame(t *testing.T) {
	raw := []byte{0x01, 0x00, 0xff, 0xff, 0x10, 0x00, 0x7f}
	r := newPCMReader(bytes.NewReader(raw), audio.Target, 2)

	buf, err := r.next()
	if err != nil {
		t.Fatal(err)
	}
	if len(buf.Samples) != 2 || buf.Samples[0] != 1 || buf.Samples[1] != -1 {
		t.Errorf("unexpected first buffer %v", buf.Samples)
	}
	buf, err = r.next()
	if err != nil {
		t.Fatal(err)
	}
	if len(buf.Samples) != 1 || buf.Samples[0] != 16 {
		t.Errorf("unexpected second buffer %v", buf.Samples)
	}
	if _, err := r.next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestDownmix(t *testing.T) {
	got := downmix([]int16{16384, 0, -16384, -16384}, 2, make([]float64, 2))
	if got[0] != 0.25 || got[1] != -0.5 {
		t.Errorf("unexpected downmix %v", got)
	}
	pcm := toPCM([]float64{0.25, -0.5, 2, -2}, nil)
	want := []int16{8192, -16384, 32767, -32768}
	for i := range want {
		if pcm[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], pcm[i])
		}
	}
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
}

func TestFFmpeg_DecodesWAV(t *testing.T) {
	requireFFmpeg(t)
	path := writeWAV(t, "mono.wav", 44100, 1, 5)

	stream, err := NewFFmpeg("ffmpeg", 4096).Open(context.Background(), path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := countFrames(t, stream); got != 5*44100 {
		t.Errorf("expected %d frames, got %d", 5*44100, got)
	}
}

func TestFFmpeg_FailsOnGarbage(t *testing.T) {
	requireFFmpeg(t)
	path := filepath.Join(t.TempDir(), "broken.flac")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, 512), 0644); err != nil {
		t.Fatal(err)
	}

	stream, err := NewFFmpeg("ffmpeg", 1024).Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open should start ffmpeg, got %v", err)
	}
	defer stream.Close()
	for {
		_, err := stream.Next(context.Background())
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			t.Fatal("expected a decode error, got clean EOF")
		}
		return
	}
}

func TestFFmpeg_MissingBinary(t *testing.T) {
	path := writeWAV(t, "mono.wav", 44100, 1, 0.1)
	dec := NewFFmpeg(filepath.Join(t.TempDir(), "no-such-ffmpeg"), 1024)
	if err := dec.Available(); err == nil {
		t.Error("expected missing binary to be reported")
	}
	if _, err := dec.Open(context.Background(), path); err == nil {
		t.Error("expected open to fail without ffmpeg")
	}
}

func TestSelector_AutoFallsBackToFFmpeg(t *testing.T) {
	requireFFmpeg(t)
	path := writeWAV(t, "tone.wav", 22050, 1, 1)
	renamed := filepath.Join(filepath.Dir(path), "tone.aiffish")
	if err := os.Rename(path, renamed); err != nil {
		t.Fatal(err)
	}

	sel := New(config.Decoder{Backend: "auto", FFmpegPath: "ffmpeg", BufferFrames: 2048})
	stream, err := sel.Open(context.Background(), renamed)
	if err != nil {
		t.Fatalf("expected ffmpeg fallback, got %v", err)
	}
	if got := countFrames(t, stream); got < 44000 || got > 44200 {
		t.Errorf("expected about one second of audio, got %d frames", got)
	}
}

func TestSelector_NativeOnly(t *testing.T) {
	path := writeWAV(t, "mono.wav", 44100, 1, 1)
	sel := New(config.Decoder{Backend: "native", BufferFrames: 1024})
	stream, err := sel.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := countFrames(t, stream); got != 44100 {
		t.Errorf("expected 44100 frames, got %d", got)
	}
}
