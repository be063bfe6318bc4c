//go:build !chromaprint || !cgo

package chroma

import (
	"context"
	"errors"

	"github.com/contre95/fpbridge/src/audio"
)

// ErrLibChromaprintUnavailable is returned when the binary was built without
// the chromaprint tag.
var ErrLibChromaprintUnavailable = errors.New("libchromaprint support not compiled in (build with -tags chromaprint)")

// LibChromaprint is unavailable in this build.
type LibChromaprint struct{}

func NewLibChromaprint() *LibChromaprint { return &LibChromaprint{} }

func (l *LibChromaprint) Name() string    { return "libchromaprint" }
func (l *LibChromaprint) Version() string { return "" }

func (l *LibChromaprint) Available(ctx context.Context) error {
	return ErrLibChromaprintUnavailable
}

func (l *LibChromaprint) NewContext(audio.Algorithm) (audio.Context, error) {
	return nil, ErrLibChromaprintUnavailable
}
