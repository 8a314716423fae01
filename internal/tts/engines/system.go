package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/dgnsrekt/speak/internal/ttypes"
)

// SystemConfig configures the local system voice.
type SystemConfig struct {
	// Binary overrides voice discovery. Its base name selects the argument
	// style: "say" for macOS, anything else is treated as espeak.
	Binary string

	// Voice is the default voice (empty = the binary's default)
	Voice string

	// TempDir holds the intermediate output file (defaults to os.TempDir)
	TempDir string
}

// System implements ttypes.Engine with the platform speech binary. Output
// is never cached.
type System struct {
	binary  string
	voice   string
	tempDir string
}

// NewSystem creates a system engine. If no binary is found the engine
// reports itself as not configured.
func NewSystem(cfg SystemConfig) *System {
	binary := cfg.Binary
	if binary == "" {
		binary = findSystemVoice()
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &System{
		binary:  binary,
		voice:   cfg.Voice,
		tempDir: cfg.TempDir,
	}
}

// findSystemVoice locates say on macOS, espeak-ng or espeak elsewhere.
func findSystemVoice() string {
	names := []string{"espeak-ng", "espeak"}
	if runtime.GOOS == "darwin" {
		names = []string{"say"}
	}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// Name returns ttypes.ProviderSystem.
func (e *System) Name() ttypes.Name { return ttypes.ProviderSystem }

// IsLocal is always true.
func (e *System) IsLocal() bool { return true }

// IsConfigured reports whether the speech binary exists.
func (e *System) IsConfigured() bool {
	if e.binary == "" {
		return false
	}
	_, err := exec.LookPath(e.binary)
	return err == nil
}

func (e *System) isSay() bool {
	return filepath.Base(e.binary) == "say"
}

// Synthesize renders req to an AIFF (say) or WAV (espeak) file and returns
// its contents. The intermediate file is removed before returning.
func (e *System) Synthesize(ctx context.Context, req ttypes.SynthesisRequest) (*ttypes.Audio, error) {
	if !e.IsConfigured() {
		return nil, &ttypes.ConfigurationError{Provider: ttypes.ProviderSystem, Reason: "no system speech binary (say, espeak-ng or espeak) found"}
	}

	format := "wav"
	if e.isSay() {
		format = "aiff"
	}

	out, err := os.CreateTemp(e.tempDir, "speak-system-*."+format)
	if err != nil {
		return nil, &ttypes.ProviderError{Provider: ttypes.ProviderSystem, Kind: ttypes.KindOther, Message: "failed to create output file", Cause: err}
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, e.binary, e.args(req, outPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, &ttypes.ProviderError{Provider: ttypes.ProviderSystem, Kind: ttypes.KindOther, Message: "synthesis cancelled", Cause: ctx.Err()}
		}
		return nil, &ttypes.ProviderError{
			Provider: ttypes.ProviderSystem,
			Kind:     ttypes.KindOther,
			Message:  strings.TrimSpace(stderr.String()),
			Cause:    err,
		}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &ttypes.ProviderError{Provider: ttypes.ProviderSystem, Kind: ttypes.KindOther, Message: "failed to read output", Cause: err}
	}
	if len(data) == 0 {
		return nil, &ttypes.EmptyResultError{Provider: ttypes.ProviderSystem}
	}

	return &ttypes.Audio{Data: data, Format: format, Model: filepath.Base(e.binary)}, nil
}

// args builds the command line. The text is passed after "--" so that
// leading dashes are not read as flags.
func (e *System) args(req ttypes.SynthesisRequest, outPath string) []string {
	voice := req.Voice
	if voice == "" {
		voice = e.voice
	}

	var args []string
	if e.isSay() {
		args = []string{"-o", outPath}
		if req.Rate > 0 {
			args = append(args, "-r", strconv.Itoa(req.Rate))
		}
	} else {
		args = []string{"-w", outPath}
		if req.Rate > 0 {
			args = append(args, "-s", strconv.Itoa(req.Rate))
		}
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	return append(args, "--", req.Text)
}

// DescribeError renders a system voice error for the user.
func (e *System) DescribeError(err error) string {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return fmt.Sprintf("system voice %q could not be run: %v", e.binary, execErr.Err)
	}
	return ttypes.DescribeError(err)
}
