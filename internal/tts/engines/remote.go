package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgnsrekt/speak/internal/ttypes"
)

const (
	// defaultRequestsPerMinute applies when RemoteConfig leaves it unset
	defaultRequestsPerMinute = 50

	// baseRate is the words-per-minute value that maps to speed 1.0
	baseRate = 175

	// maxErrorBody bounds how much of an error response is kept
	maxErrorBody = 512
)

// RemoteConfig holds the settings shared by the HTTP engines.
type RemoteConfig struct {
	// APIKey is the provider credential. Empty means not configured.
	APIKey string

	// BaseURL overrides the provider endpoint (scheme and host)
	BaseURL string

	// Voice and Model are the defaults used when a request sets none
	Voice string
	Model string

	// HTTPClient defaults to a client without timeout; the caller's
	// context bounds each call.
	HTTPClient *http.Client

	// RequestsPerMinute limits outgoing calls (defaults to 50)
	RequestsPerMinute int
}

// remote is the HTTP plumbing embedded by every remote engine.
type remote struct {
	name    ttypes.Name
	apiKey  string
	baseURL string
	voice   string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

func newRemote(name ttypes.Name, cfg RemoteConfig, defaultBaseURL, defaultVoice, defaultModel string) remote {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultVoice
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRequestsPerMinute
	}

	return remote{
		name:    name,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		voice:   cfg.Voice,
		model:   cfg.Model,
		client:  cfg.HTTPClient,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}
}

// Name returns the provider this engine implements.
func (r *remote) Name() ttypes.Name { return r.name }

// IsLocal is false for every remote engine.
func (r *remote) IsLocal() bool { return false }

// IsConfigured reports whether a well-formed API key is present.
func (r *remote) IsConfigured() bool {
	return r.apiKey != "" && !strings.ContainsAny(r.apiKey, " \t\r\n")
}

func (r *remote) notConfigured() error {
	reason := "API key is missing"
	if r.apiKey != "" {
		reason = "API key is malformed"
	}
	return &ttypes.ConfigurationError{Provider: r.name, Reason: reason}
}

func (r *remote) voiceFor(req ttypes.SynthesisRequest) string {
	if req.Voice != "" {
		return req.Voice
	}
	return r.voice
}

// post sends payload as JSON to url and returns the response body. Non-2xx
// responses become a *ttypes.ProviderError classified by status code.
func (r *remote) post(ctx context.Context, url string, header http.Header, payload any) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &ttypes.ProviderError{Provider: r.name, Kind: ttypes.KindOther, Message: "rate limit wait cancelled", Cause: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ttypes.ProviderError{Provider: r.name, Kind: ttypes.KindOther, Message: "failed to create request", Cause: err}
	}
	for k, v := range header {
		httpReq.Header[k] = v
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, &ttypes.ProviderError{Provider: r.name, Kind: ttypes.KindOther, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ttypes.ProviderError{Provider: r.name, Kind: ttypes.KindOther, StatusCode: resp.StatusCode, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ttypes.NewProviderError(r.name, resp.StatusCode, errorMessage(respBody))
	}

	return respBody, nil
}

// errorMessage trims an error response body to a single bounded line.
func errorMessage(body []byte) string {
	msg := strings.Join(strings.Fields(string(body)), " ")
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return msg
}

// speedFor maps words per minute onto a provider speed multiplier.
func speedFor(wpm int, lo, hi float64) float64 {
	if wpm <= 0 {
		return 1
	}
	speed := float64(wpm) / baseRate
	if speed < lo {
		return lo
	}
	if speed > hi {
		return hi
	}
	return speed
}

// describe renders errors for a remote engine. Credential problems name
// the environment variable that holds the key.
func describe(err error, envVar string) string {
	var provErr *ttypes.ProviderError
	var cfgErr *ttypes.ConfigurationError
	switch {
	case errors.As(err, &provErr) && provErr.Kind == ttypes.KindUnauthorized:
		return fmt.Sprintf("%s rejected the API key; check %s", provErr.Provider, envVar)
	case errors.As(err, &cfgErr):
		return fmt.Sprintf("%s is not configured: %s (set %s)", cfgErr.Provider, cfgErr.Reason, envVar)
	}
	return ttypes.DescribeError(err)
}
