package ttypes

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyResult is matched by every EmptyResultError.
var ErrEmptyResult = errors.New("provider returned no audio")

// ConfigurationError means a provider was selected but is not usable, for
// example because a credential is missing. It triggers fallback.
type ConfigurationError struct {
	Provider Name
	Reason   string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: not configured: %s", e.Provider, e.Reason)
}

// ErrorKind classifies a remote provider failure.
type ErrorKind string

const (
	// KindUnauthorized is a rejected or missing credential (401, 403)
	KindUnauthorized ErrorKind = "unauthorized"

	// KindRateLimited is a quota or rate limit response (429)
	KindRateLimited ErrorKind = "rate_limited"

	// KindOther is any other failure
	KindOther ErrorKind = "other"
)

// KindFromStatus maps an HTTP status code to an ErrorKind.
func KindFromStatus(code int) ErrorKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindOther
	}
}

// ProviderError is a failed synthesis call. It triggers fallback.
type ProviderError struct {
	Provider   Name
	Kind       ErrorKind
	StatusCode int // 0 when the failure was not an HTTP response
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a ProviderError from an HTTP status and response body.
func NewProviderError(provider Name, status int, message string) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Kind:       KindFromStatus(status),
		StatusCode: status,
		Message:    message,
	}
}

// EmptyResultError means the provider reported success without a usable
// payload. It is treated like a ProviderError.
type EmptyResultError struct {
	Provider Name
}

// Error implements the error interface
func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, ErrEmptyResult)
}

// Is lets errors.Is match ErrEmptyResult
func (e *EmptyResultError) Is(target error) bool {
	return target == ErrEmptyResult
}

// DescribeError renders the common error taxonomy. Engines fall back to it
// after handling their own cases.
func DescribeError(err error) string {
	var cfgErr *ConfigurationError
	var provErr *ProviderError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return fmt.Sprintf("%s is not configured: %s", cfgErr.Provider, cfgErr.Reason)
	case errors.As(err, &provErr):
		switch provErr.Kind {
		case KindUnauthorized:
			return fmt.Sprintf("%s rejected the credentials; check the API key", provErr.Provider)
		case KindRateLimited:
			return fmt.Sprintf("%s is rate limiting requests; try again later", provErr.Provider)
		}
		return provErr.Error()
	case errors.Is(err, ErrEmptyResult):
		return err.Error()
	default:
		return err.Error()
	}
}
