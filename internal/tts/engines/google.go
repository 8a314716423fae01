package engines

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/dgnsrekt/speak/internal/ttypes"
)

const (
	googleDefaultBaseURL = "https://texttospeech.googleapis.com"
	googleDefaultVoice   = "en-US-Standard-C"
	googleDefaultModel   = "texttospeech-v1"

	// GoogleKeyEnv is the environment variable holding the Google API key
	GoogleKeyEnv = "GOOGLE_API_KEY"
)

// Google implements ttypes.Engine with the Cloud Text-to-Speech REST API.
type Google struct {
	remote
}

// googleRequest represents the request structure for text:synthesize.
type googleRequest struct {
	Input       googleInput       `json:"input"`
	Voice       googleVoice       `json:"voice"`
	AudioConfig googleAudioConfig `json:"audioConfig"`
}

type googleInput struct {
	Text string `json:"text"`
}

type googleVoice struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
}

type googleAudioConfig struct {
	AudioEncoding string  `json:"audioEncoding"`
	SpeakingRate  float64 `json:"speakingRate"`
}

type googleResponse struct {
	AudioContent string `json:"audioContent"`
}

// NewGoogle creates a Google engine. The model is only recorded in metadata.
func NewGoogle(cfg RemoteConfig) *Google {
	return &Google{
		remote: newRemote(ttypes.ProviderGoogle, cfg, googleDefaultBaseURL, googleDefaultVoice, googleDefaultModel),
	}
}

// Synthesize returns MP3 audio for req. The voice is a Google voice name such
// as en-GB-Neural2-A; its language code is derived from the name.
func (e *Google) Synthesize(ctx context.Context, req ttypes.SynthesisRequest) (*ttypes.Audio, error) {
	if !e.IsConfigured() {
		return nil, e.notConfigured()
	}

	voice := e.voiceFor(req)
	endpoint := e.baseURL + "/v1/text:synthesize?key=" + url.QueryEscape(e.apiKey)

	body, err := e.post(ctx, endpoint, nil, googleRequest{
		Input: googleInput{Text: req.Text},
		Voice: googleVoice{LanguageCode: languageCode(voice), Name: voice},
		AudioConfig: googleAudioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  speedFor(req.Rate, 0.25, 4.0),
		},
	})
	if err != nil {
		return nil, err
	}

	var resp googleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ttypes.ProviderError{Provider: e.name, Kind: ttypes.KindOther, Message: "malformed response", Cause: err}
	}
	if resp.AudioContent == "" {
		return nil, &ttypes.EmptyResultError{Provider: e.name}
	}

	data, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, &ttypes.ProviderError{Provider: e.name, Kind: ttypes.KindOther, Message: "malformed audioContent", Cause: err}
	}
	if len(data) == 0 {
		return nil, &ttypes.EmptyResultError{Provider: e.name}
	}

	return &ttypes.Audio{Data: data, Format: "mp3", Model: e.model}, nil
}

// DescribeError renders a Google error for the user.
func (e *Google) DescribeError(err error) string {
	return describe(err, GoogleKeyEnv)
}

// languageCode extracts the BCP-47 prefix from a voice name
// ("en-US-Standard-C" → "en-US"). Unparseable names fall back to en-US.
func languageCode(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 2 || len(parts[0]) < 2 || len(parts[1]) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}
