package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/contre95/fpbridge/src/audio"
)

// convertStream downmixes a source to mono and resamples it to the target rate.
type convertStream struct {
	src    source
	in     audio.Format
	out    audio.Format
	inBuf  []int16
	mono   []float64
	outBuf []int16
	buf    audio.PCMBuffer

	resampler resampling.Resampler
	done      bool
	// frames read from the source and frames emitted, for sizing the flushed tail
	inFrames  int64
	outFrames int64
}

func newConvertStream(src source, out audio.Format, frames int) (*convertStream, error) {
	if out.Channels != 1 {
		return nil, fmt.Errorf("conversion to %d channels is not supported", out.Channels)
	}
	in := src.format()
	s := &convertStream{
		src:   src,
		in:    in,
		out:   out,
		inBuf: make([]int16, frames*in.Channels),
		mono:  make([]float64, frames),
	}
	if in.SampleRate != out.SampleRate {
		r, err := resampling.New(&resampling.Config{
			InputRate:  float64(in.SampleRate),
			OutputRate: float64(out.SampleRate),
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create resampler: %w", err)
		}
		s.resampler = r
	}
	return s, nil
}

func (s *convertStream) Format() audio.Format { return s.out }

func (s *convertStream) Next(ctx context.Context) (*audio.PCMBuffer, error) {
	for !s.done {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := s.src.read(s.inBuf)
		if errors.Is(err, io.EOF) {
			s.done = true
		} else if err != nil {
			return nil, err
		}

		var out []float64
		if n > 0 {
			frames := n / s.in.Channels
			s.inFrames += int64(frames)
			mono := downmix(s.inBuf[:n], s.in.Channels, s.mono[:frames])
			if s.resampler == nil {
				out = mono
			} else if out, err = s.resampler.Process(mono); err != nil {
				return nil, fmt.Errorf("resample error: %w", err)
			}
		}
		if s.done && s.resampler != nil {
			tail, err := s.flush(int64(len(out)))
			if err != nil {
				return nil, err
			}
			out = append(out[:len(out):len(out)], tail...)
		}
		if len(out) == 0 {
			continue
		}
		s.outBuf = toPCM(out, s.outBuf)
		s.outFrames += int64(len(s.outBuf))
		s.buf.Samples = s.outBuf
		s.buf.Format = s.out
		return &s.buf, nil
	}
	return nil, io.EOF
}

// flush drains the resampler's delay line. The tail is cut or zero padded so
// the stream holds exactly inFrames*outRate/inRate frames; pending frames have
// been produced but not yet counted in outFrames.
func (s *convertStream) flush(pending int64) ([]float64, error) {
	tail, err := s.resampler.Flush()
	if err != nil {
		return nil, fmt.Errorf("resample flush error: %w", err)
	}
	want := (s.inFrames*int64(s.out.SampleRate) + int64(s.in.SampleRate)/2) / int64(s.in.SampleRate)
	missing := want - s.outFrames - pending
	switch {
	case missing <= 0:
		return nil, nil
	case int64(len(tail)) >= missing:
		return tail[:missing], nil
	default:
		return append(tail, make([]float64, missing-int64(len(tail)))...), nil
	}
}

func (s *convertStream) Close() error {
	s.resampler = nil
	return s.src.close()
}

// downmix averages interleaved channels into dst, normalised to [-1, 1].
func downmix(samples []int16, channels int, dst []float64) []float64 {
	frames := len(samples) / channels
	dst = dst[:frames]
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(samples[i*channels+c])
		}
		dst[i] = float64(sum) / float64(channels) / 32768.0
	}
	return dst
}

// toPCM converts normalised floats back to clamped int16, reusing dst.
func toPCM(samples []float64, dst []int16) []int16 {
	if cap(dst) < len(samples) {
		dst = make([]int16, len(samples))
	}
	dst = dst[:len(samples)]
	for i, v := range samples {
		switch {
		case v >= 1.0:
			dst[i] = 32767
		case v <= -1.0:
			dst[i] = -32768
		default:
			dst[i] = int16(v * 32768.0)
		}
	}
	return dst
}
