package engines

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgnsrekt/speak/internal/ttypes"
)

// capture records the last request a test server received.
type capture struct {
	method string
	path   string
	query  string
	header http.Header
	body   map[string]any
}

func newServer(t *testing.T, status int, respBody []byte, c *capture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c != nil {
			c.method = r.Method
			c.path = r.URL.Path
			c.query = r.URL.RawQuery
			c.header = r.Header.Clone()
			data, _ := io.ReadAll(r.Body)
			c.body = map[string]any{}
			json.Unmarshal(data, &c.body)
		}
		w.WriteHeader(status)
		w.Write(respBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) RemoteConfig {
	return RemoteConfig{
		APIKey:            "test-key",
		BaseURL:           baseURL,
		RequestsPerMinute: 60000,
	}
}

func TestOpenAI_Synthesize(t *testing.T) {
	var c capture
	srv := newServer(t, http.StatusOK, []byte("ID3mp3"), &c)
	e := NewOpenAI(testConfig(srv.URL))

	audio, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hello", Voice: "nova", Rate: 350})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio.Data) != "ID3mp3" || audio.Format != "mp3" || audio.Model != "tts-1" {
		t.Errorf("unexpected audio: %+v", audio)
	}

	if c.method != http.MethodPost || c.path != "/v1/audio/speech" {
		t.Errorf("request = %s %s", c.method, c.path)
	}
	if got := c.header.Get("Authorization"); got != "Bearer test-key" {
		t.Errorf("Authorization = %q", got)
	}
	if c.body["input"] != "hello" || c.body["voice"] != "nova" || c.body["model"] != "tts-1" || c.body["response_format"] != "mp3" {
		t.Errorf("body = %v", c.body)
	}
	if c.body["speed"] != 2.0 {
		t.Errorf("speed = %v, want 2", c.body["speed"])
	}
}

func TestOpenAI_DefaultVoice(t *testing.T) {
	var c capture
	srv := newServer(t, http.StatusOK, []byte("x"), &c)
	e := NewOpenAI(testConfig(srv.URL))

	if _, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hi"}); err != nil {
		t.Fatal(err)
	}
	if c.body["voice"] != "alloy" || c.body["speed"] != 1.0 {
		t.Errorf("body = %v", c.body)
	}
}

func TestRemote_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   ttypes.ErrorKind
	}{
		{http.StatusUnauthorized, ttypes.KindUnauthorized},
		{http.StatusForbidden, ttypes.KindUnauthorized},
		{http.StatusTooManyRequests, ttypes.KindRateLimited},
		{http.StatusInternalServerError, ttypes.KindOther},
		{http.StatusBadRequest, ttypes.KindOther},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newServer(t, tt.status, []byte(`{"error": "nope"}`), nil)
			e := NewOpenAI(testConfig(srv.URL))

			_, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hi"})
			var provErr *ttypes.ProviderError
			if !errors.As(err, &provErr) {
				t.Fatalf("error = %v, want ProviderError", err)
			}
			if provErr.Kind != tt.want || provErr.StatusCode != tt.status {
				t.Errorf("Kind/Status = %s/%d, want %s/%d", provErr.Kind, provErr.StatusCode, tt.want, tt.status)
			}
			if provErr.Provider != ttypes.ProviderOpenAI {
				t.Errorf("Provider = %s", provErr.Provider)
			}
		})
	}
}

func TestRemote_EmptyBody(t *testing.T) {
	srv := newServer(t, http.StatusOK, nil, nil)

	for _, e := range []ttypes.Engine{NewOpenAI(testConfig(srv.URL)), NewElevenLabs(testConfig(srv.URL))} {
		_, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hi"})
		if !errors.Is(err, ttypes.ErrEmptyResult) {
			t.Errorf("%s: error = %v, want ErrEmptyResult", e.Name(), err)
		}
	}
}

func TestRemote_NotConfigured(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"missing", ""},
		{"malformed", "sk bad key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("http://127.0.0.1:1")
			cfg.APIKey = tt.key
			engines := []ttypes.Engine{NewOpenAI(cfg), NewElevenLabs(cfg), NewGoogle(cfg)}
			for _, e := range engines {
				if e.IsConfigured() {
					t.Errorf("%s: IsConfigured() true with key %q", e.Name(), tt.key)
				}
				_, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hi"})
				var cfgErr *ttypes.ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Errorf("%s: error = %v, want ConfigurationError", e.Name(), err)
				}
			}
		})
	}
}

func TestRemote_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	e := NewOpenAI(testConfig(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Synthesize(ctx, ttypes.SynthesisRequest{Text: "hi"})
	var provErr *ttypes.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want to wrap DeadlineExceeded", err)
	}
}

func TestElevenLabs_Synthesize(t *testing.T) {
	var c capture
	srv := newServer(t, http.StatusOK, []byte("mp3data"), &c)
	e := NewElevenLabs(testConfig(srv.URL))

	audio, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hello", Voice: "voice/1", Rate: 50})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio.Data) != "mp3data" || audio.Model != "eleven_multilingual_v2" {
		t.Errorf("unexpected audio: %+v", audio)
	}

	if c.path != "/v1/text-to-speech/voice/1" {
		t.Errorf("path = %s", c.path)
	}
	if got := c.header.Get("xi-api-key"); got != "test-key" {
		t.Errorf("xi-api-key = %q", got)
	}
	if c.body["text"] != "hello" || c.body["model_id"] != "eleven_multilingual_v2" {
		t.Errorf("body = %v", c.body)
	}
	settings, _ := c.body["voice_settings"].(map[string]any)
	if settings["speed"] != 0.7 {
		t.Errorf("speed = %v, want clamped 0.7", settings["speed"])
	}
}

func TestGoogle_Synthesize(t *testing.T) {
	var c capture
	payload, _ := json.Marshal(map[string]string{
		"audioContent": base64.StdEncoding.EncodeToString([]byte("googlemp3")),
	})
	srv := newServer(t, http.StatusOK, payload, &c)
	e := NewGoogle(testConfig(srv.URL))

	audio, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hallo", Voice: "de-DE-Wavenet-B", Rate: 175})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio.Data) != "googlemp3" || audio.Format != "mp3" {
		t.Errorf("unexpected audio: %+v", audio)
	}

	if c.path != "/v1/text:synthesize" || c.query != "key=test-key" {
		t.Errorf("request = %s?%s", c.path, c.query)
	}
	voice, _ := c.body["voice"].(map[string]any)
	if voice["languageCode"] != "de-DE" || voice["name"] != "de-DE-Wavenet-B" {
		t.Errorf("voice = %v", voice)
	}
	cfg, _ := c.body["audioConfig"].(map[string]any)
	if cfg["audioEncoding"] != "MP3" || cfg["speakingRate"] != 1.0 {
		t.Errorf("audioConfig = %v", cfg)
	}
}

func TestGoogle_EmptyAudioContent(t *testing.T) {
	srv := newServer(t, http.StatusOK, []byte(`{"audioContent": ""}`), nil)
	e := NewGoogle(testConfig(srv.URL))

	_, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hi"})
	if !errors.Is(err, ttypes.ErrEmptyResult) {
		t.Fatalf("error = %v, want ErrEmptyResult", err)
	}
}

func TestGoogle_MalformedResponse(t *testing.T) {
	srv := newServer(t, http.StatusOK, []byte(`not json`), nil)
	e := NewGoogle(testConfig(srv.URL))

	_, err := e.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hi"})
	var provErr *ttypes.ProviderError
	if !errors.As(err, &provErr) || provErr.Kind != ttypes.KindOther {
		t.Fatalf("error = %v, want ProviderError other", err)
	}
}

func TestLanguageCode(t *testing.T) {
	tests := map[string]string{
		"en-US-Standard-C": "en-US",
		"de-DE-Wavenet-B":  "de-DE",
		"cmn-CN-Wavenet-A": "cmn-CN",
		"weird":            "en-US",
		"":                 "en-US",
	}
	for voice, want := range tests {
		if got := languageCode(voice); got != want {
			t.Errorf("languageCode(%q) = %q, want %q", voice, got, want)
		}
	}
}

func TestSpeedFor(t *testing.T) {
	tests := []struct {
		wpm    int
		lo, hi float64
		want   float64
	}{
		{0, 0.25, 4, 1},
		{175, 0.25, 4, 1},
		{350, 0.25, 4, 2},
		{10, 0.25, 4, 0.25},
		{1000, 0.7, 1.2, 1.2},
	}
	for _, tt := range tests {
		if got := speedFor(tt.wpm, tt.lo, tt.hi); got != tt.want {
			t.Errorf("speedFor(%d, %v, %v) = %v, want %v", tt.wpm, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestDescribeError(t *testing.T) {
	e := NewOpenAI(RemoteConfig{})

	msg := e.DescribeError(ttypes.NewProviderError(ttypes.ProviderOpenAI, 401, "bad key"))
	if msg != "openai rejected the API key; check OPENAI_API_KEY" {
		t.Errorf("unauthorized message = %q", msg)
	}

	msg = e.DescribeError(ttypes.NewProviderError(ttypes.ProviderOpenAI, 429, ""))
	if msg != "openai is rate limiting requests; try again later" {
		t.Errorf("rate limit message = %q", msg)
	}
}
