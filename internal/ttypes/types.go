// Package ttypes contains shared types and interfaces for the speech system.
// This package is used to break import cycles between tts, engines, cache, and queue packages.
package ttypes

import (
	"context"
	"fmt"
	"strings"
)

// Name identifies a synthesis provider. The set is closed: use ParseName to
// turn user input into a Name.
type Name string

const (
	// ProviderSystem is the local system voice (say, espeak-ng)
	ProviderSystem Name = "system"

	// ProviderOpenAI is the OpenAI speech endpoint
	ProviderOpenAI Name = "openai"

	// ProviderElevenLabs is the ElevenLabs text-to-speech API
	ProviderElevenLabs Name = "elevenlabs"

	// ProviderGoogle is the Google Cloud Text-to-Speech REST API
	ProviderGoogle Name = "google"
)

// CanonicalOrder is the fixed fallback order walked after the requested
// provider fails.
var CanonicalOrder = []Name{
	ProviderSystem,
	ProviderOpenAI,
	ProviderElevenLabs,
	ProviderGoogle,
}

// ParseName converts a provider name to a Name. Matching is case-insensitive.
func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range CanonicalOrder {
		if n == known {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q (want one of %s)", s, strings.Join(Names(), ", "))
}

// Names returns the provider names in canonical order.
func Names() []string {
	names := make([]string, len(CanonicalOrder))
	for i, n := range CanonicalOrder {
		names[i] = string(n)
	}
	return names
}

// String returns the provider name.
func (n Name) String() string {
	return string(n)
}

// IsLocal reports whether the provider runs on this machine.
func (n Name) IsLocal() bool {
	return n == ProviderSystem
}

// canonicalIndex returns the position of n in CanonicalOrder, or -1.
func (n Name) canonicalIndex() int {
	for i, known := range CanonicalOrder {
		if known == n {
			return i
		}
	}
	return -1
}

// After returns the providers that follow n in CanonicalOrder.
func (n Name) After() []Name {
	idx := n.canonicalIndex()
	if idx < 0 {
		return nil
	}
	out := make([]Name, 0, len(CanonicalOrder)-idx-1)
	out = append(out, CanonicalOrder[idx+1:]...)
	return out
}

// SynthesisRequest is what an engine receives.
type SynthesisRequest struct {
	// Text is the normalized text to speak
	Text string

	// Voice is the provider-specific voice identifier (empty = engine default)
	Voice string

	// Rate is the speech rate in words per minute (0 = engine default)
	Rate int
}

// Audio is the result of a synthesis call.
type Audio struct {
	// Data holds the encoded audio payload
	Data []byte

	// Format is the file extension of the payload (mp3, wav, aiff)
	Format string

	// Model is the provider model that produced the audio, if known
	Model string
}

// Engine defines the contract every synthesis provider implements.
type Engine interface {
	// Name returns the provider this engine implements.
	Name() Name

	// IsLocal reports whether the engine synthesizes on this machine.
	// Local output is never cached.
	IsLocal() bool

	// IsConfigured returns false when required credentials or binaries are
	// missing or malformed. It must not panic.
	IsConfigured() bool

	// Synthesize converts text to audio. It must not write shared state.
	Synthesize(ctx context.Context, req SynthesisRequest) (*Audio, error)

	// DescribeError renders an engine error for the user. No I/O.
	DescribeError(err error) string
}

// Priority defines where a speech request lands in the queue
type Priority int

// The zero value is PriorityNormal.
const (
	// PriorityNormal is appended to the back of the queue
	PriorityNormal Priority = iota

	// PriorityHigh is inserted at the front of the queue
	PriorityHigh

	// PriorityLow is appended like normal requests
	PriorityLow
)

// String returns the string representation of the priority
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParsePriority converts high, normal or low to a Priority.
// An empty string is normal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, nil
	case "", "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	default:
		return PriorityNormal, fmt.Errorf("invalid priority %q (want high, normal or low)", s)
	}
}

// Source records where a speech request came from.
type Source string

const (
	// SourceCLI marks requests issued by the speak command
	SourceCLI Source = "cli"

	// SourceLibrary marks requests issued by an embedding program
	SourceLibrary Source = "library"
)

// SpeechRequest is a single call to speak. It is consumed once played.
type SpeechRequest struct {
	Text      string
	Priority  Priority
	Interrupt bool

	// Provider overrides the configured default when set
	Provider Name

	// Voice and Rate override the provider's configured values when set
	Voice string
	Rate  int

	Source Source
}

// State is a step of the per-request fallback state machine.
type State int

const (
	// StateValidating checks that the current provider is configured
	StateValidating State = iota

	// StateCheckingCache looks the request up in the artifact store
	StateCheckingCache

	// StateSynthesizing calls the current provider
	StateSynthesizing

	// StateCaching writes a fresh artifact through the store
	StateCaching

	// StatePlaying hands the artifact to the playback process
	StatePlaying

	// StateDone is terminal
	StateDone

	// StateFailed records a provider failure before moving on
	StateFailed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateCheckingCache:
		return "checking-cache"
	case StateSynthesizing:
		return "synthesizing"
	case StateCaching:
		return "caching"
	case StatePlaying:
		return "playing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
