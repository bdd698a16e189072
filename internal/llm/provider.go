package llm

import (
	"context"
	"errors"
)

// Provider is the interface all LLM backends must implement.
type Provider interface {
	// Chat sends a single-turn completion request and returns the full response.
	Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error)

	// Name returns the provider name (e.g. "openai", "anthropic").
	Name() string

	// DefaultModel returns the default model for this provider.
	DefaultModel() string
}

// LLMError wraps an error with a classification for fallback logic.
type LLMError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *LLMError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// errorTypeForStatus maps an HTTP status reported by a provider SDK.
func errorTypeForStatus(status int) ErrorType {
	switch {
	case status == 401 || status == 403:
		return ErrorAuth
	case status == 408:
		return ErrorTimeout
	case status == 429:
		return ErrorRateLimit
	case status >= 500:
		return ErrorServerError
	case status >= 400:
		return ErrorInvalidInput
	default:
		return ErrorUnknown
	}
}

// errorTypeOf returns the classification carried by err. A bare context
// deadline counts as a timeout.
func errorTypeOf(err error) ErrorType {
	var llmErr *LLMError
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	return ErrorUnknown
}
