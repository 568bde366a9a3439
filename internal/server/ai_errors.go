package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ValidationError rejects user input before any provider call. Always maps
// to HTTP 400 with its message as the detail.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// MalformedResponseError means the provider answered but the payload could
// not be normalized into JSON.
type MalformedResponseError struct {
	Detail string
}

func (e *MalformedResponseError) Error() string {
	return "AI returned an unreadable response. Please try again."
}

// ProviderErrorKind classifies a provider failure at the adapter boundary,
// where the SDK error is still structured. Everything downstream switches
// on the kind instead of matching error strings.
type ProviderErrorKind string

const (
	ProviderRateLimited ProviderErrorKind = "rate_limited"
	ProviderUnavailable ProviderErrorKind = "unavailable"
	ProviderTimedOut    ProviderErrorKind = "timed_out"
	ProviderOther       ProviderErrorKind = "other"
)

type ProviderError struct {
	Kind   ProviderErrorKind
	Detail string
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai provider: %s: %v", e.Detail, e.Err)
	}
	return "ai provider: " + e.Detail
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// AIError is the user-safe form of a provider failure. Raw provider error
// text never reaches the client.
type AIError struct {
	Message string
	Status  int
}

func (e *AIError) Error() string {
	return e.Message
}

var (
	errAIRateLimited = &AIError{Message: "AI rate limit exceeded. Try again later.", Status: 429}
	errAIUnavailable = &AIError{Message: "AI service temporarily unavailable.", Status: 503}
	errAITimedOut    = &AIError{Message: "AI request timed out. Please try again.", Status: 504}
)

// classifyProviderError maps an adapter failure to its user-facing form.
// Tagged ProviderError kinds decide first; substring matching is only the
// fallback for untagged errors.
func classifyProviderError(err error, fallback string) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case ProviderRateLimited:
			return errAIRateLimited
		case ProviderUnavailable:
			return errAIUnavailable
		case ProviderTimedOut:
			return errAITimedOut
		}
		return &AIError{Message: fallback, Status: 500}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errAITimedOut
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return errAIRateLimited
	case strings.Contains(msg, "unavailable") || strings.Contains(msg, "503"):
		return errAIUnavailable
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline"):
		return errAITimedOut
	}
	return &AIError{Message: fallback, Status: 500}
}
