package model

import (
	"fmt"
	"time"
)

// Error taxonomy for the research and report pipeline. Every failure surfaces
// verbatim to the caller as an HTTP error with a human-readable detail string;
// none are retried automatically.

// ValidationError means the request body or bundle was malformed.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, a ...interface{}) *ValidationError {
	return &ValidationError{Detail: fmt.Sprintf(format, a...)}
}

// MissingCredentialError means the API key required for the selected tier is
// absent. It is returned before any external call is attempted.
type MissingCredentialError struct {
	Provider string
	Tier     Tier
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s API key required for %s tier. Add your key in Settings or set the server environment variable.", e.Provider, e.Tier)
}

// ProviderTimeoutError means an external API did not answer within the tier's
// timeout budget.
type ProviderTimeoutError struct {
	Provider string
	Timeout  time.Duration
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("%s request timed out after %s. Please try again.", e.Provider, e.Timeout)
}

// ProviderError means an external API returned a non-2xx status.
type ProviderError struct {
	Provider string
	Status   int
	Detail   string
}

func (e *ProviderError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s API error %d: %s", e.Provider, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s API error %d", e.Provider, e.Status)
}

// RateLimitedError means a local quota or an upstream rate limit was exhausted.
type RateLimitedError struct {
	Detail string
}

func (e *RateLimitedError) Error() string {
	return e.Detail
}
