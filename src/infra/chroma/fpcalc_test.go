package chroma

import (
	"context"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/contre95/fpbridge/src/audio"
	"github.com/contre95/fpbridge/src/features/config"
)

// fakeFpcalc stands in for fpcalc: it hashes stdin into the fingerprint and
// records its arguments next to itself.
const fakeFpcalc = `#!/bin/sh
dir=$(dirname "$0")
if [ "$1" = "-version" ]; then
  echo "fpcalc version 1.5.1"
  exit 0
fi
echo "$@" > "$dir/args"
cat > "$dir/input"
size=$(wc -c < "$dir/input" | tr -d ' ')
if [ "$size" = "0" ]; then
  echo "ERROR: Empty fingerprint" >&2
  exit 2
fi
sum=$(cksum < "$dir/input" | cut -d' ' -f1)
echo "{\"duration\": 1.00, \"fingerprint\": \"AQAA$sum\"}"
`

func installFakeFpcalc(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake fpcalc needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fpcalc")
	if err := os.WriteFile(path, []byte(fakeFpcalc), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func sine(frames int) *audio.PCMBuffer {
	samples := make([]int16, frames)
	for i := range samples {
		samples[i] = int16(10000 * math.Sin(2*math.Pi*440*float64(i)/44100))
	}
	return &audio.PCMBuffer{Samples: samples, Format: audio.Target}
}

func run(t *testing.T, engine audio.Engine, buffers ...*audio.PCMBuffer) (string, error) {
	t.Helper()
	ctx, err := engine.NewContext(audio.AlgorithmDefault)
	if err != nil {
		t.Fatalf("expected context, got %v", err)
	}
	defer ctx.Release()
	if err := ctx.Start(audio.Target); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	for _, buf := range buffers {
		if err := ctx.Feed(buf); err != nil {
			return "", err
		}
	}
	if err := ctx.Finish(); err != nil {
		return "", err
	}
	return ctx.Fingerprint()
}

func TestFpcalcArgs(t *testing.T) {
	got := strings.Join(fpcalcArgs(audio.AlgorithmTest4, audio.Format{SampleRate: 22050, Channels: 2}), " ")
	want := "-json -algorithm 4 -format s16le -rate 22050 -channels 2 -length 0 -"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestParseVersion(t *testing.T) {
	if v := parseVersion("fpcalc version 1.5.1\n"); v != "1.5.1" {
		t.Errorf("expected 1.5.1, got %q", v)
	}
}

func TestFpcalc_Available(t *testing.T) {
	bin := installFakeFpcalc(t)
	engine := NewFpcalc(bin)
	if err := engine.Available(context.Background()); err != nil {
		t.Fatalf("expected fpcalc to be available, got %v", err)
	}
	if engine.Version() != "1.5.1" {
		t.Errorf("expected version 1.5.1, got %q", engine.Version())
	}

	missing := NewFpcalc(filepath.Join(t.TempDir(), "nope"))
	if err := missing.Available(context.Background()); err == nil {
		t.Error("expected missing fpcalc to be reported")
	}
	if _, err := missing.NewContext(audio.AlgorithmDefault); err == nil {
		t.Error("expected NewContext to fail without fpcalc")
	}
}

func TestFpcalc_StreamsPCM(t *testing.T) {
	bin := installFakeFpcalc(t)
	engine := NewFpcalc(bin)

	first, err := run(t, engine, sine(4096), sine(1000))
	if err != nil {
		t.Fatalf("expected fingerprint, got %v", err)
	}
	if !strings.HasPrefix(first, "AQAA") {
		t.Errorf("unexpected fingerprint %q", first)
	}
	second, err := run(t, engine, sine(4096), sine(1000))
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("expected identical fingerprints, got %q and %q", first, second)
	}

	input, err := os.ReadFile(filepath.Join(filepath.Dir(bin), "input"))
	if err != nil {
		t.Fatal(err)
	}
	if len(input) != (4096+1000)*2 {
		t.Errorf("expected %d bytes of PCM, got %d", (4096+1000)*2, len(input))
	}
	args, err := os.ReadFile(filepath.Join(filepath.Dir(bin), "args"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(args), "-algorithm 2") || !strings.Contains(string(args), "-rate 44100 -channels 1") {
		t.Errorf("unexpected fpcalc arguments %q", args)
	}
}

func TestFpcalc_NoAudioFails(t *testing.T) {
	engine := NewFpcalc(installFakeFpcalc(t))
	_, err := run(t, engine)
	if err == nil {
		t.Fatal("expected fpcalc to fail without audio")
	}
	if !strings.Contains(err.Error(), "Empty fingerprint") {
		t.Errorf("expected stderr in error, got %v", err)
	}
}

func TestFpcalcContext_Lifecycle(t *testing.T) {
	engine := NewFpcalc(installFakeFpcalc(t))

	if _, err := engine.NewContext(audio.Algorithm(9)); err == nil {
		t.Error("expected unknown algorithm to be rejected")
	}

	ctx, err := engine.NewContext(audio.AlgorithmDefault)
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.Feed(sine(10)); err == nil {
		t.Error("expected feed before start to fail")
	}
	if err := ctx.Start(audio.Target); err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.Fingerprint(); err == nil {
		t.Error("expected fingerprint before finish to fail")
	}
	// releasing a running context stops fpcalc; repeated releases are no-ops
	ctx.Release()
	ctx.Release()
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(config.Fingerprint{Engine: "fpcalc", FpcalcPath: "/opt/fpcalc"})
	if err != nil || e.Name() != "fpcalc" {
		t.Errorf("expected fpcalc engine, got %v, %v", e, err)
	}
	e, err = NewEngine(config.Fingerprint{Engine: "libchromaprint"})
	if err != nil || e.Name() != "libchromaprint" {
		t.Errorf("expected libchromaprint engine, got %v, %v", e, err)
	}
	if _, err := NewEngine(config.Fingerprint{Engine: "echoprint"}); err == nil {
		t.Error("expected unknown engine to be rejected")
	}
}

func TestFpcalc_Real(t *testing.T) {
	if _, err := exec.LookPath("fpcalc"); err != nil {
		t.Skip("fpcalc not installed")
	}
	engine := NewFpcalc("fpcalc")
	if err := engine.Available(context.Background()); err != nil {
		t.Fatal(err)
	}
	fp, err := run(t, engine, sine(5*44100))
	if err != nil {
		t.Fatalf("expected fingerprint, got %v", err)
	}
	if fp == "" {
		t.Error("expected non-empty fingerprint")
	}
}
