// Package mock provides a scripted ttypes.Engine for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/dgnsrekt/speak/internal/ttypes"
)

// Engine implements ttypes.Engine with canned results.
type Engine struct {
	name       ttypes.Name
	configured bool

	mu        sync.Mutex
	err       error
	audio     *ttypes.Audio
	delay     time.Duration
	requests  []ttypes.SynthesisRequest
	callCount int
}

// New creates a configured mock engine for name that returns a small MP3-like
// payload.
func New(name ttypes.Name) *Engine {
	return &Engine{
		name:       name,
		configured: true,
		audio: &ttypes.Audio{
			Data:   []byte("mock-audio-" + string(name)),
			Format: "mp3",
			Model:  "mock-" + string(name),
		},
	}
}

// Unconfigured marks the engine as missing its credentials.
func (e *Engine) Unconfigured() *Engine {
	e.configured = false
	return e
}

// Failing makes every Synthesize call return err.
func (e *Engine) Failing(err error) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
	return e
}

// Returning replaces the audio returned on success.
func (e *Engine) Returning(a *ttypes.Audio) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audio = a
	return e
}

// Delayed makes Synthesize wait d (or until ctx is done) before answering.
func (e *Engine) Delayed(d time.Duration) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = d
	return e
}

// Name returns the provider name.
func (e *Engine) Name() ttypes.Name { return e.name }

// IsLocal reports whether the mock stands in for the system voice.
func (e *Engine) IsLocal() bool { return e.name.IsLocal() }

// IsConfigured reports the configured flag.
func (e *Engine) IsConfigured() bool { return e.configured }

// Synthesize records req and returns the scripted result.
func (e *Engine) Synthesize(ctx context.Context, req ttypes.SynthesisRequest) (*ttypes.Audio, error) {
	e.mu.Lock()
	e.callCount++
	e.requests = append(e.requests, req)
	err, audio, delay := e.err, e.audio, e.delay
	e.mu.Unlock()

	if !e.configured {
		return nil, &ttypes.ConfigurationError{Provider: e.name, Reason: "mock not configured"}
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &ttypes.ProviderError{Provider: e.name, Kind: ttypes.KindOther, Message: "cancelled", Cause: ctx.Err()}
		}
	}

	if err != nil {
		return nil, err
	}
	if audio == nil || len(audio.Data) == 0 {
		return nil, &ttypes.EmptyResultError{Provider: e.name}
	}

	out := *audio
	out.Data = append([]byte(nil), audio.Data...)
	return &out, nil
}

// DescribeError uses the common renderer.
func (e *Engine) DescribeError(err error) string {
	return ttypes.DescribeError(err)
}

// CallCount returns the number of Synthesize calls.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}

// Requests returns the requests passed to Synthesize.
func (e *Engine) Requests() []ttypes.SynthesisRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ttypes.SynthesisRequest(nil), e.requests...)
}
