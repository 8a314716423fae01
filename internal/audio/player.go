package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	// ErrInterrupted is returned by Play when Stop killed the playback.
	ErrInterrupted = errors.New("playback interrupted")

	// ErrNoPlayer is returned when no playback command could be found.
	ErrNoPlayer = errors.New("no audio player found")

	// ErrBusy is returned when Play is called while another file is playing.
	ErrBusy = errors.New("player is busy")
)

// Player plays audio files through an external process.
type Player interface {
	// Play blocks until the file has been played, Stop was called or ctx
	// is done. A Stop during playback returns ErrInterrupted.
	Play(ctx context.Context, path string) error

	// Stop kills the active playback, if any.
	Stop() error

	// IsPlaying reports whether a file is being played.
	IsPlaying() bool
}

// candidate is a playback command tried during detection. The file path is
// appended to args.
type candidate struct {
	name string
	args []string
}

// candidates lists the playback commands probed per platform, in order.
func candidates() []candidate {
	if runtime.GOOS == "darwin" {
		return []candidate{{name: "afplay"}}
	}
	return []candidate{
		{name: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
		{name: "mpv", args: []string{"--no-video", "--really-quiet"}},
		{name: "mpg123", args: []string{"-q"}},
		{name: "paplay"},
		{name: "aplay", args: []string{"-q"}},
	}
}

// DetectCommand returns the first playback command available on PATH.
func DetectCommand() ([]string, error) {
	for _, c := range candidates() {
		if path, err := exec.LookPath(c.name); err == nil {
			return append([]string{path}, c.args...), nil
		}
	}
	return nil, ErrNoPlayer
}

// ParseCommand splits a configured playback command on whitespace.
func ParseCommand(s string) []string {
	return strings.Fields(s)
}

// ExecOptions configures an ExecPlayer.
type ExecOptions struct {
	// Command is the program and leading arguments. The file path is
	// appended. Empty means DetectCommand.
	Command []string

	Logger *log.Logger
}

// ExecPlayer runs one playback process at a time and can kill it.
type ExecPlayer struct {
	command []string
	logger  *log.Logger

	mu          sync.Mutex
	cmd         *exec.Cmd
	interrupted bool
}

// NewExecPlayer creates a player for opts.Command, detecting one if empty.
func NewExecPlayer(opts ExecOptions) (*ExecPlayer, error) {
	command := opts.Command
	if len(command) == 0 {
		detected, err := DetectCommand()
		if err != nil {
			return nil, err
		}
		command = detected
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &ExecPlayer{
		command: command,
		logger:  logger.WithPrefix("audio"),
	}, nil
}

// Command returns the playback command without the file argument.
func (p *ExecPlayer) Command() []string {
	return append([]string(nil), p.command...)
}

// Play runs the playback command on path and waits for it to exit.
func (p *ExecPlayer) Play(ctx context.Context, path string) error {
	p.mu.Lock()
	if p.cmd != nil {
		p.mu.Unlock()
		return ErrBusy
	}

	args := append(append([]string(nil), p.command[1:]...), path)
	cmd := exec.Command(p.command[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("failed to start %s: %w", p.command[0], err)
	}
	p.cmd = cmd
	p.interrupted = false
	p.mu.Unlock()

	p.logger.Debug("playback started", "cmd", p.command[0], "file", path, "pid", cmd.Process.Pid)

	waitDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-waitDone:
		}
	}()

	err := cmd.Wait()
	close(waitDone)

	p.mu.Lock()
	interrupted := p.interrupted
	p.cmd = nil
	p.interrupted = false
	p.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case interrupted:
		p.logger.Debug("playback interrupted", "file", path)
		return ErrInterrupted
	case err != nil:
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %w: %s", p.command[0], err, msg)
		}
		return fmt.Errorf("%s failed: %w", p.command[0], err)
	}

	p.logger.Debug("playback finished", "file", path)
	return nil
}

// Stop kills the active playback process and its children.
func (p *ExecPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	p.interrupted = true
	return killProcess(p.cmd)
}

// IsPlaying reports whether a playback process is running.
func (p *ExecPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cmd != nil
}
