package decoder

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/contre95/fpbridge/src/audio"
)

const wavFormatPCM = 1

type wavSource struct {
	file     *os.File
	dec      *wav.Decoder
	fmt      audio.Format
	bitDepth int
	buf      *goaudio.IntBuffer
}

func newWAVSource(f *os.File) (*wavSource, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %w", ErrUnsupportedFormat)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("WAV audio format %d: %w", dec.WavAudioFormat, ErrUnsupportedFormat)
	}
	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("WAV bit depth %d: %w", dec.BitDepth, ErrUnsupportedFormat)
	}
	format := audio.Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid WAV header: %w", err)
	}
	return &wavSource{
		file:     f,
		dec:      dec,
		fmt:      format,
		bitDepth: int(dec.BitDepth),
	}, nil
}

func (s *wavSource) format() audio.Format { return s.fmt }

func (s *wavSource) read(dst []int16) (int, error) {
	want := len(dst) - len(dst)%s.fmt.Channels
	if s.buf == nil || len(s.buf.Data) != want {
		s.buf = &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: s.fmt.Channels, SampleRate: s.fmt.SampleRate},
			Data:           make([]int, want),
			SourceBitDepth: s.bitDepth,
		}
	}
	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("failed to read WAV samples: %w", err)
	}
	n -= n % s.fmt.Channels
	if n == 0 {
		return 0, io.EOF
	}
	for i := 0; i < n; i++ {
		dst[i] = toInt16(s.buf.Data[i], s.bitDepth)
	}
	return n, nil
}

func (s *wavSource) close() error {
	return s.file.Close()
}

// toInt16 scales a sample of the given bit depth to 16 bits. 8-bit WAV is unsigned.
func toInt16(v, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}
