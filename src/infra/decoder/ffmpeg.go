package decoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/contre95/fpbridge/src/audio"
)

// FFmpeg decodes any container/codec ffmpeg understands by streaming its raw
// s16le output.
type FFmpeg struct {
	bin    string
	frames int
	target audio.Format
}

// NewFFmpeg creates an ffmpeg decoder using the given binary and buffer size in frames.
func NewFFmpeg(bin string, frames int) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin, frames: frames, target: audio.Target}
}

func (f *FFmpeg) Name() string { return "ffmpeg" }

// Available reports whether the ffmpeg binary can be found.
func (f *FFmpeg) Available() error {
	if _, err := exec.LookPath(f.bin); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}

func (f *FFmpeg) args(path string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-i", path,
		"-vn", "-map", "0:a:0",
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(f.target.Channels),
		"-ar", strconv.Itoa(f.target.SampleRate),
		"-",
	}
}

// Open starts ffmpeg on path. The process is killed when the stream is closed early.
func (f *FFmpeg) Open(ctx context.Context, path string) (audio.Stream, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}
	bin, err := exec.LookPath(f.bin)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, f.args(path)...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	return &ffmpegStream{
		cmd:    cmd,
		stderr: stderr,
		pcm:    newPCMReader(stdout, f.target, f.frames),
	}, nil
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	pcm    *pcmReader

	once    sync.Once
	waitErr error
}

func (s *ffmpegStream) Format() audio.Format { return s.pcm.format }

func (s *ffmpegStream) Next(ctx context.Context) (*audio.PCMBuffer, error) {
	buf, err := s.pcm.next()
	if err == nil {
		return buf, nil
	}
	if werr := s.wait(); werr != nil {
		return nil, werr
	}
	return nil, err
}

// wait reaps the process once and turns a failed exit into an error carrying
// ffmpeg's own message.
func (s *ffmpegStream) wait() error {
	s.once.Do(func() {
		if err := s.cmd.Wait(); err != nil {
			msg := strings.TrimSpace(s.stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			s.waitErr = fmt.Errorf("ffmpeg decode failed: %s", msg)
		}
	})
	return s.waitErr
}

func (s *ffmpegStream) Close() error {
	if s.cmd.ProcessState == nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	// drain so Wait does not block on a full pipe
	_, _ = io.Copy(io.Discard, s.pcm.r)
	// a killed process exits with an error the caller never asked about
	_ = s.wait()
	return nil
}
