package llm

import (
	"context"

	stoiclog "stoic/internal/log"
)

// FallbackProvider tries providers in order, falling back on retryable errors.
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a provider chain. The first provider is primary.
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	return &FallbackProvider{providers: providers}
}

func (f *FallbackProvider) Name() string {
	if len(f.providers) > 0 {
		return f.providers[0].Name() + "+fallback"
	}
	return "fallback"
}

func (f *FallbackProvider) DefaultModel() string {
	if len(f.providers) > 0 {
		return f.providers[0].DefaultModel()
	}
	return ""
}

func (f *FallbackProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	logger := stoiclog.WithComponent("llm")
	lastErr := ErrDisabled
	for _, p := range f.providers {
		resp, err := p.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
		logger.Warn().Err(err).Str("provider", p.Name()).Msg("provider failed, trying next")
	}
	return nil, lastErr
}

// isRetryable reports whether another provider might succeed where this one
// failed. Unclassified errors are retried.
func isRetryable(err error) bool {
	switch errorTypeOf(err) {
	case ErrorAuth, ErrorInvalidInput:
		return false
	default:
		return true
	}
}
