package decoder

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"

	"github.com/contre95/fpbridge/src/audio"
)

// go-mp3 always produces 16-bit little-endian stereo.
const mp3Channels = 2

type mp3Source struct {
	file *os.File
	dec  *mp3.Decoder
	fmt  audio.Format
	raw  []byte
}

func newMP3Source(f *os.File) (*mp3Source, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("invalid MP3 stream: %w", err)
	}
	return &mp3Source{
		file: f,
		dec:  dec,
		fmt:  audio.Format{SampleRate: dec.SampleRate(), Channels: mp3Channels},
	}, nil
}

func (s *mp3Source) format() audio.Format { return s.fmt }

func (s *mp3Source) read(dst []int16) (int, error) {
	want := (len(dst) - len(dst)%mp3Channels) * 2
	if cap(s.raw) < want {
		s.raw = make([]byte, want)
	}
	raw := s.raw[:want]
	n, err := io.ReadFull(s.dec, raw)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("failed to decode MP3 frame: %w", err)
	}
	n -= n % (2 * mp3Channels)
	if n == 0 {
		return 0, io.EOF
	}
	count := n / 2
	for i := 0; i < count; i++ {
		dst[i] = int16(raw[i*2]) | int16(raw[i*2+1])<<8
	}
	return count, nil
}

func (s *mp3Source) close() error {
	return s.file.Close()
}
