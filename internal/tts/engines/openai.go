package engines

import (
	"context"
	"net/http"

	"github.com/dgnsrekt/speak/internal/ttypes"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com"
	openAIDefaultVoice   = "alloy"
	openAIDefaultModel   = "tts-1"

	// OpenAIKeyEnv is the environment variable holding the OpenAI key
	OpenAIKeyEnv = "OPENAI_API_KEY"
)

// OpenAI implements ttypes.Engine with the OpenAI speech endpoint.
type OpenAI struct {
	remote
}

// openAIRequest is the body of POST /v1/audio/speech
type openAIRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed"`
	ResponseFormat string  `json:"response_format"`
}

// NewOpenAI creates an OpenAI engine.
func NewOpenAI(cfg RemoteConfig) *OpenAI {
	return &OpenAI{
		remote: newRemote(ttypes.ProviderOpenAI, cfg, openAIDefaultBaseURL, openAIDefaultVoice, openAIDefaultModel),
	}
}

// Synthesize returns MP3 audio for req.
func (e *OpenAI) Synthesize(ctx context.Context, req ttypes.SynthesisRequest) (*ttypes.Audio, error) {
	if !e.IsConfigured() {
		return nil, e.notConfigured()
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+e.apiKey)

	data, err := e.post(ctx, e.baseURL+"/v1/audio/speech", header, openAIRequest{
		Model:          e.model,
		Input:          req.Text,
		Voice:          e.voiceFor(req),
		Speed:          speedFor(req.Rate, 0.25, 4.0),
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &ttypes.EmptyResultError{Provider: e.name}
	}

	return &ttypes.Audio{Data: data, Format: "mp3", Model: e.model}, nil
}

// DescribeError renders an OpenAI error for the user.
func (e *OpenAI) DescribeError(err error) string {
	return describe(err, OpenAIKeyEnv)
}
