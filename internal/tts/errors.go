package tts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgnsrekt/speak/internal/ttypes"
)

// Common controller errors
var (
	// ErrEmptyText is returned when there is nothing to speak
	ErrEmptyText = errors.New("no text to speak")

	// ErrControllerClosed is returned by calls after Close
	ErrControllerClosed = errors.New("controller is closed")
)

// Attempt records one provider tried for a request.
type Attempt struct {
	Provider ttypes.Name
	Err      error
}

// AllProvidersExhaustedError is returned when the requested provider, every
// provider after it and the system voice all failed.
type AllProvidersExhaustedError struct {
	Requested ttypes.Name
	Attempts  []Attempt
}

// Error implements the error interface
func (e *AllProvidersExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all providers failed (requested %s)", e.Requested)
	if last := e.LastRemote(); last != nil {
		fmt.Fprintf(&b, ": last remote failure: %v", last.Err)
	} else if n := len(e.Attempts); n > 0 {
		fmt.Fprintf(&b, ": %v", e.Attempts[n-1].Err)
	}
	return b.String()
}

// LastRemote returns the last failed remote attempt, or nil if only the
// system voice was tried.
func (e *AllProvidersExhaustedError) LastRemote() *Attempt {
	for i := len(e.Attempts) - 1; i >= 0; i-- {
		if !e.Attempts[i].Provider.IsLocal() {
			return &e.Attempts[i]
		}
	}
	return nil
}

// Unwrap exposes every attempt error to errors.Is and errors.As
func (e *AllProvidersExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// PlaybackError means audio was produced but could not be played. It does
// not trigger provider fallback.
type PlaybackError struct {
	Provider ttypes.Name
	Path     string
	Err      error
}

// Error implements the error interface
func (e *PlaybackError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("playback of %s audio failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("playback of %s failed: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PlaybackError) Unwrap() error {
	return e.Err
}
