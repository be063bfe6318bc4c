package audio

import (
	"context"
	"fmt"
)

// Algorithm selects a chromaprint algorithm variant. Values follow fpcalc's
// numbering, where 2 is the library default.
type Algorithm int

const (
	AlgorithmTest1 Algorithm = iota + 1
	AlgorithmTest2
	AlgorithmTest3
	AlgorithmTest4
	AlgorithmTest5

	AlgorithmDefault = AlgorithmTest2
)

// Valid reports whether a is a known variant.
func (a Algorithm) Valid() bool {
	return a >= AlgorithmTest1 && a <= AlgorithmTest5
}

func (a Algorithm) String() string {
	return fmt.Sprintf("chromaprint-%d", int(a))
}

// Decoder opens encoded audio files as PCM streams.
type Decoder interface {
	Name() string
	// Open starts decoding path. The returned stream must be closed.
	Open(ctx context.Context, path string) (Stream, error)
}

// Stream is a lazy, finite sequence of PCM buffers.
type Stream interface {
	Format() Format
	// Next returns the next buffer, or io.EOF once the stream is exhausted.
	// A nil buffer with a nil error carries no audio and is skipped.
	Next(ctx context.Context) (*PCMBuffer, error)
	Close() error
}

// Engine creates fingerprint contexts.
type Engine interface {
	Name() string
	Version() string
	// Available is the liveness check run before each fingerprint.
	Available(ctx context.Context) error
	NewContext(algorithm Algorithm) (Context, error)
}

// Context accumulates fed audio for one fingerprint. It is owned by a single
// caller and must be released exactly once.
type Context interface {
	Start(format Format) error
	Feed(buf *PCMBuffer) error
	Finish() error
	Fingerprint() (string, error)
	Release()
}
