package decoder

import (
	"context"
	"fmt"
	"os"

	"github.com/contre95/fpbridge/src/audio"
)

// source yields interleaved samples in the file's own format.
type source interface {
	format() audio.Format
	// read fills dst with whole frames and returns the number of samples written.
	read(dst []int16) (int, error)
	close() error
}

// Native decodes WAV and MP3 in-process, then converts to the target format.
type Native struct {
	frames int
	target audio.Format
}

// NewNative creates a pure Go decoder with the given buffer size in frames.
func NewNative(frames int) *Native {
	return &Native{frames: frames, target: audio.Target}
}

func (n *Native) Name() string { return "native" }

// Supports reports whether path has an extension the native decoders handle.
func (n *Native) Supports(path string) bool {
	switch extension(path) {
	case ".wav", ".wave", ".mp3":
		return true
	}
	return false
}

func (n *Native) Open(ctx context.Context, path string) (audio.Stream, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}
	if !n.Supports(path) {
		return nil, fmt.Errorf("%s: %w", extension(path), ErrUnsupportedFormat)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	var src source
	switch extension(path) {
	case ".mp3":
		src, err = newMP3Source(f)
	default:
		src, err = newWAVSource(f)
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	stream, err := newConvertStream(src, n.target, n.frames)
	if err != nil {
		src.close()
		return nil, err
	}
	return stream, nil
}
