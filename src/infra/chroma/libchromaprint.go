//go:build chromaprint && cgo

package chroma

// #cgo LDFLAGS: -lchromaprint
// #include <stdlib.h>
// #include <chromaprint.h>
import "C"

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/contre95/fpbridge/src/audio"
)

var (
	errStart  = errors.New("chromaprint: failed to restart chromaprint")
	errFeed   = errors.New("chromaprint: failed to send data to the fingerprint calculator")
	errFinish = errors.New("chromaprint: failed to process buffered audio data")
	errFprint = errors.New("chromaprint: failed to calculate compressed fingerprint")
)

// LibChromaprint binds libchromaprint directly.
type LibChromaprint struct {
	// chromaprint_new is not thread safe when the library is built with FFTW.
	newMu sync.Mutex
}

func NewLibChromaprint() *LibChromaprint {
	return &LibChromaprint{}
}

func (l *LibChromaprint) Name() string { return "libchromaprint" }

func (l *LibChromaprint) Version() string {
	return C.GoString(C.chromaprint_get_version())
}

func (l *LibChromaprint) Available(ctx context.Context) error {
	if C.chromaprint_get_version() == nil {
		return errors.New("libchromaprint reported no version")
	}
	return nil
}

func (l *LibChromaprint) NewContext(algorithm audio.Algorithm) (audio.Context, error) {
	if !algorithm.Valid() {
		return nil, fmt.Errorf("unknown algorithm %d", algorithm)
	}
	l.newMu.Lock()
	defer l.newMu.Unlock()
	// libchromaprint numbers algorithms from zero.
	ctx := C.chromaprint_new(C.int(int(algorithm) - 1))
	if ctx == nil {
		return nil, errors.New("chromaprint_new returned NULL")
	}
	return &chromaprintContext{ctx: ctx}, nil
}

type chromaprintContext struct {
	ctx *C.ChromaprintContext
}

func (c *chromaprintContext) Start(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return err
	}
	if C.chromaprint_start(c.ctx, C.int(format.SampleRate), C.int(format.Channels)) < 1 {
		return errStart
	}
	return nil
}

func (c *chromaprintContext) Feed(buf *audio.PCMBuffer) error {
	if len(buf.Samples) == 0 {
		return nil
	}
	data := (*C.int16_t)(unsafe.Pointer(&buf.Samples[0]))
	if C.chromaprint_feed(c.ctx, data, C.int(len(buf.Samples))) < 1 {
		return errFeed
	}
	return nil
}

func (c *chromaprintContext) Finish() error {
	if C.chromaprint_finish(c.ctx) < 1 {
		return errFinish
	}
	return nil
}

func (c *chromaprintContext) Fingerprint() (string, error) {
	var fp *C.char
	if C.chromaprint_get_fingerprint(c.ctx, &fp) < 1 || fp == nil {
		return "", errFprint
	}
	defer C.chromaprint_dealloc(unsafe.Pointer(fp))
	return C.GoString(fp), nil
}

func (c *chromaprintContext) Release() {
	if c.ctx == nil {
		return
	}
	C.chromaprint_free(c.ctx)
	c.ctx = nil
}
