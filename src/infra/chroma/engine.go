// Package chroma provides the chromaprint fingerprint engines.
package chroma

import (
	"fmt"

	"github.com/contre95/fpbridge/src/audio"
	"github.com/contre95/fpbridge/src/features/config"
)

// NewEngine returns the engine named in the fingerprint config.
func NewEngine(cfg config.Fingerprint) (audio.Engine, error) {
	switch cfg.Engine {
	case "", "fpcalc":
		return NewFpcalc(cfg.FpcalcPath), nil
	case "libchromaprint":
		return NewLibChromaprint(), nil
	default:
		return nil, fmt.Errorf("unknown fingerprint engine %q", cfg.Engine)
	}
}
