package engines

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dgnsrekt/speak/internal/ttypes"
)

const (
	elevenLabsDefaultBaseURL = "https://api.elevenlabs.io"
	elevenLabsDefaultVoice   = "21m00Tcm4TlvDq8Ikwo2"
	elevenLabsDefaultModel   = "eleven_multilingual_v2"

	// ElevenLabsKeyEnv is the environment variable holding the ElevenLabs key
	ElevenLabsKeyEnv = "ELEVENLABS_API_KEY"
)

// ElevenLabs implements ttypes.Engine with the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	remote
}

type elevenLabsRequest struct {
	Text          string                `json:"text"`
	ModelID       string                `json:"model_id"`
	VoiceSettings elevenLabsVoiceConfig `json:"voice_settings"`
}

type elevenLabsVoiceConfig struct {
	Speed float64 `json:"speed"`
}

// NewElevenLabs creates an ElevenLabs engine.
func NewElevenLabs(cfg RemoteConfig) *ElevenLabs {
	return &ElevenLabs{
		remote: newRemote(ttypes.ProviderElevenLabs, cfg, elevenLabsDefaultBaseURL, elevenLabsDefaultVoice, elevenLabsDefaultModel),
	}
}

// Synthesize returns MP3 audio for req. The voice is an ElevenLabs voice id.
func (e *ElevenLabs) Synthesize(ctx context.Context, req ttypes.SynthesisRequest) (*ttypes.Audio, error) {
	if !e.IsConfigured() {
		return nil, e.notConfigured()
	}

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)
	header.Set("Accept", "audio/mpeg")

	endpoint := e.baseURL + "/v1/text-to-speech/" + url.PathEscape(e.voiceFor(req))
	data, err := e.post(ctx, endpoint, header, elevenLabsRequest{
		Text:    req.Text,
		ModelID: e.model,
		VoiceSettings: elevenLabsVoiceConfig{
			Speed: speedFor(req.Rate, 0.7, 1.2),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &ttypes.EmptyResultError{Provider: e.name}
	}

	return &ttypes.Audio{Data: data, Format: "mp3", Model: e.model}, nil
}

// DescribeError renders an ElevenLabs error for the user.
func (e *ElevenLabs) DescribeError(err error) string {
	return describe(err, ElevenLabsKeyEnv)
}
