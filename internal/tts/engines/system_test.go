package engines

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/dgnsrekt/speak/internal/ttypes"
)

// fakeVoice writes an executable script named name that mimics a speech
// binary: it writes its arguments to the file given after -w or -o.
func fakeVoice(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

const echoArgs = `out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-w" ] || [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
printf '%s\n' "$*" > "$out"
`

func TestSystem_EspeakArgs(t *testing.T) {
	bin := fakeVoice(t, "espeak-ng", echoArgs)
	e := NewSystem(SystemConfig{Binary: bin, Voice: "en-us", TempDir: t.TempDir()})

	if !e.IsConfigured() || !e.IsLocal() || e.Name() != ttypes.ProviderSystem {
		t.Fatalf("unexpected engine state: configured=%v local=%v", e.IsConfigured(), e.IsLocal())
	}

	audio, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "-hello", Rate: 180})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if audio.Format != "wav" || audio.Model != "espeak-ng" {
		t.Errorf("Format/Model = %s/%s", audio.Format, audio.Model)
	}

	args := strings.TrimSpace(string(audio.Data))
	if !strings.HasPrefix(args, "-w ") || !strings.HasSuffix(args, "-s 180 -v en-us -- -hello") {
		t.Errorf("args = %q", args)
	}
}

func TestSystem_SayArgs(t *testing.T) {
	bin := fakeVoice(t, "say", echoArgs)
	e := NewSystem(SystemConfig{Binary: bin, TempDir: t.TempDir()})

	audio, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hi", Voice: "Samantha", Rate: 200})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if audio.Format != "aiff" {
		t.Errorf("Format = %s, want aiff", audio.Format)
	}
	args := strings.TrimSpace(string(audio.Data))
	if !strings.HasPrefix(args, "-o ") || !strings.HasSuffix(args, "-r 200 -v Samantha -- hi") {
		t.Errorf("args = %q", args)
	}
}

func TestSystem_RemovesIntermediateFile(t *testing.T) {
	tmp := t.TempDir()
	bin := fakeVoice(t, "espeak", echoArgs)
	e := NewSystem(SystemConfig{Binary: bin, TempDir: tmp})

	if _, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hi"}); err != nil {
		t.Fatal(err)
	}

	left, _ := os.ReadDir(tmp)
	if len(left) != 0 {
		t.Errorf("intermediate files left behind: %v", left)
	}
}

func TestSystem_Failure(t *testing.T) {
	bin := fakeVoice(t, "espeak-ng", "echo 'no voices' >&2\nexit 1\n")
	e := NewSystem(SystemConfig{Binary: bin, TempDir: t.TempDir()})

	_, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hi"})
	var provErr *ttypes.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if provErr.Message != "no voices" {
		t.Errorf("Message = %q", provErr.Message)
	}
}

func TestSystem_EmptyOutput(t *testing.T) {
	bin := fakeVoice(t, "espeak-ng", "exit 0\n")
	e := NewSystem(SystemConfig{Binary: bin, TempDir: t.TempDir()})

	_, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hi"})
	if !errors.Is(err, ttypes.ErrEmptyResult) {
		t.Fatalf("error = %v, want ErrEmptyResult", err)
	}
}

func TestSystem_NotConfigured(t *testing.T) {
	e := NewSystem(SystemConfig{Binary: filepath.Join(t.TempDir(), "missing-voice")})

	if e.IsConfigured() {
		t.Fatal("IsConfigured() true for missing binary")
	}
	_, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hi"})
	var cfgErr *ttypes.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want ConfigurationError", err)
	}
}
