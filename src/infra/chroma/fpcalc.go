package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/contre95/fpbridge/src/audio"
)

// Fpcalc is an engine that streams raw PCM into chromaprint's fpcalc tool.
type Fpcalc struct {
	bin string

	mu      sync.Mutex
	version string
}

// NewFpcalc creates an fpcalc backed engine. bin may be a name on PATH or a path.
func NewFpcalc(bin string) *Fpcalc {
	if bin == "" {
		bin = "fpcalc"
	}
	return &Fpcalc{bin: bin}
}

func (f *Fpcalc) Name() string { return "fpcalc" }

// Version returns the fpcalc version seen by the last successful liveness check.
func (f *Fpcalc) Version() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

// Available checks that fpcalc can be found and executed.
func (f *Fpcalc) Available(ctx context.Context) error {
	bin, err := exec.LookPath(f.bin)
	if err != nil {
		return fmt.Errorf("fpcalc not found. Please install chromaprint tools:\n"+
			"  Nix: nix-shell -p chromaprint\n"+
			"  Ubuntu/Debian: sudo apt-get install libchromaprint-tools\n"+
			"  macOS: brew install chromaprint\n"+
			"  Or download from: https://acoustid.org/chromaprint: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.version != "" {
		return nil
	}
	out, err := exec.CommandContext(ctx, bin, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to run fpcalc: %w", err)
	}
	f.version = parseVersion(string(out))
	return nil
}

// parseVersion extracts "1.5.1" from "fpcalc version 1.5.1".
func parseVersion(out string) string {
	out = strings.TrimSpace(out)
	if i := strings.LastIndex(out, " "); i >= 0 {
		return out[i+1:]
	}
	return out
}

func (f *Fpcalc) NewContext(algorithm audio.Algorithm) (audio.Context, error) {
	if !algorithm.Valid() {
		return nil, fmt.Errorf("unknown algorithm %d", algorithm)
	}
	bin, err := exec.LookPath(f.bin)
	if err != nil {
		return nil, fmt.Errorf("fpcalc not found: %w", err)
	}
	return &fpcalcContext{bin: bin, algorithm: algorithm}, nil
}

func fpcalcArgs(algorithm audio.Algorithm, format audio.Format) []string {
	return []string{
		"-json",
		"-algorithm", strconv.Itoa(int(algorithm)),
		"-format", "s16le",
		"-rate", strconv.Itoa(format.SampleRate),
		"-channels", strconv.Itoa(format.Channels),
		// the bridge applies its own duration limit before feeding
		"-length", "0",
		"-",
	}
}

// fpcalcContext owns one fpcalc process for the duration of a fingerprint.
type fpcalcContext struct {
	bin       string
	algorithm audio.Algorithm

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	scratch []byte

	waited   bool
	finished bool
	released bool
}

func (c *fpcalcContext) Start(format audio.Format) error {
	if c.cmd != nil {
		return errors.New("fpcalc context already started")
	}
	if err := format.Validate(); err != nil {
		return err
	}
	cmd := exec.Command(c.bin, fpcalcArgs(c.algorithm, format)...)
	cmd.Stdout = &c.stdout
	cmd.Stderr = &c.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create fpcalc pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start fpcalc: %w", err)
	}
	c.cmd = cmd
	c.stdin = stdin
	return nil
}

func (c *fpcalcContext) Feed(buf *audio.PCMBuffer) error {
	if c.cmd == nil || c.finished {
		return errors.New("fpcalc context is not accepting audio")
	}
	c.scratch = buf.Bytes(c.scratch)
	if _, err := c.stdin.Write(c.scratch); err != nil {
		return fmt.Errorf("failed to write to fpcalc: %w%s", err, c.stderrSuffix())
	}
	return nil
}

func (c *fpcalcContext) Finish() error {
	if c.cmd == nil {
		return errors.New("fpcalc context was never started")
	}
	if c.finished {
		return nil
	}
	c.finished = true
	c.stdin.Close()
	c.waited = true
	if err := c.cmd.Wait(); err != nil {
		return fmt.Errorf("fpcalc failed: %w%s", err, c.stderrSuffix())
	}
	return nil
}

func (c *fpcalcContext) Fingerprint() (string, error) {
	if !c.finished {
		return "", errors.New("fingerprint requested before finish")
	}
	var result struct {
		Fingerprint string  `json:"fingerprint"`
		Duration    float64 `json:"duration"`
	}
	if err := json.Unmarshal(c.stdout.Bytes(), &result); err != nil {
		return "", fmt.Errorf("failed to parse fpcalc output: %w", err)
	}
	return result.Fingerprint, nil
}

// Release stops fpcalc if it is still running. It is safe to call more than once.
func (c *fpcalcContext) Release() {
	if c.released {
		return
	}
	c.released = true
	if c.cmd == nil || c.waited {
		return
	}
	c.stdin.Close()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.cmd.Wait()
	c.waited = true
}

func (c *fpcalcContext) stderrSuffix() string {
	msg := strings.TrimSpace(c.stderr.String())
	if msg == "" {
		return ""
	}
	return ": " + msg
}
