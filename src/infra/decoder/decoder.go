// Package decoder turns encoded audio files into the PCM stream the
// fingerprint engines expect: signed 16-bit, mono, 44.1 kHz.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/contre95/fpbridge/src/audio"
	"github.com/contre95/fpbridge/src/features/config"
)

var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// checkFile rejects paths that no decoder could open.
func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	return nil
}

// Selector picks a decoder per file according to the configured backend.
type Selector struct {
	backend string
	ffmpeg  *FFmpeg
	native  *Native
}

// New builds the decoder described by cfg.
func New(cfg config.Decoder) *Selector {
	return &Selector{
		backend: cfg.Backend,
		ffmpeg:  NewFFmpeg(cfg.FFmpegPath, cfg.BufferFrames),
		native:  NewNative(cfg.BufferFrames),
	}
}

func (s *Selector) Name() string {
	return s.backend
}

// Open decodes path with the configured backend. In auto mode native decoding
// is tried first and ffmpeg takes over for formats the native decoders reject.
func (s *Selector) Open(ctx context.Context, path string) (audio.Stream, error) {
	switch s.backend {
	case "ffmpeg":
		return s.ffmpeg.Open(ctx, path)
	case "native":
		return s.native.Open(ctx, path)
	}

	stream, err := s.native.Open(ctx, path)
	if err == nil || !errors.Is(err, ErrUnsupportedFormat) {
		return stream, err
	}
	slog.Debug("Native decoder cannot handle file, using ffmpeg", "path", path, "reason", err)
	return s.ffmpeg.Open(ctx, path)
}

func extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// pcmReader cuts an s16le byte stream into fixed-size PCM buffers.
type pcmReader struct {
	r       io.Reader
	format  audio.Format
	raw     []byte
	samples []int16
	buf     audio.PCMBuffer
	err     error
}

func newPCMReader(r io.Reader, format audio.Format, frames int) *pcmReader {
	return &pcmReader{
		r:       r,
		format:  format,
		raw:     make([]byte, frames*format.Channels*2),
		samples: make([]int16, frames*format.Channels),
	}
}

func (p *pcmReader) next() (*audio.PCMBuffer, error) {
	if p.err != nil {
		return nil, p.err
	}
	n, err := io.ReadFull(p.r, p.raw)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		p.err = io.EOF
	case err != nil:
		p.err = err
	}
	// drop a trailing partial frame
	frameBytes := 2 * p.format.Channels
	n -= n % frameBytes
	if n == 0 {
		return nil, p.err
	}
	count := n / 2
	for i := 0; i < count; i++ {
		p.samples[i] = int16(p.raw[i*2]) | int16(p.raw[i*2+1])<<8
	}
	p.buf.Samples = p.samples[:count]
	p.buf.Format = p.format
	return &p.buf, nil
}
