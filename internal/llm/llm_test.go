package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoic/internal/config"
	"stoic/internal/model"
)

type fakeProvider struct {
	name  string
	reply string
	err   error
	last  *ChatRequest
	calls int
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) DefaultModel() string { return "fake-1" }

func (f *fakeProvider) Chat(_ context.Context, req *ChatRequest) (*LLMResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &LLMResponse{Content: f.reply}, nil
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(config.LLMConfig{})
	require.ErrorIs(t, err, ErrDisabled)

	p, err := NewProvider(config.LLMConfig{Provider: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	p, err = NewProvider(config.LLMConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
	assert.Equal(t, "llama3.2", p.DefaultModel())

	p, err = NewProvider(config.LLMConfig{Provider: "OpenAI", APIKey: "k", Model: "gpt-x"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-x", p.DefaultModel())

	_, err = NewProvider(config.LLMConfig{Provider: "gemini"})
	require.Error(t, err)
}

func TestFallbackSkipsRetryableErrors(t *testing.T) {
	primary := &fakeProvider{name: "a", err: &LLMError{Type: ErrorRateLimit, Message: "429"}}
	secondary := &fakeProvider{name: "b", reply: "ok"}
	f := NewFallbackProvider(primary, secondary)

	resp, err := f.Chat(context.Background(), &ChatRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, "a+fallback", f.Name())
}

func TestFallbackStopsOnAuthError(t *testing.T) {
	authErr := &LLMError{Type: ErrorAuth, Message: "401"}
	secondary := &fakeProvider{name: "b", reply: "ok"}
	f := NewFallbackProvider(&fakeProvider{name: "a", err: authErr}, secondary)

	_, err := f.Chat(context.Background(), &ChatRequest{Prompt: "hi"})
	require.ErrorIs(t, err, authErr)
	assert.Equal(t, 0, secondary.calls)
}

func TestClassifyErrors(t *testing.T) {
	assert.Equal(t, ErrorAuth, classifyOpenAIError(errors.New("401 Unauthorized")).Type)
	assert.Equal(t, ErrorNetwork, classifyOpenAIError(errors.New("connection refused")).Type)
	assert.Equal(t, ErrorRateLimit, classifyAnthropicError(errors.New("429 rate_limit_error")).Type)
	assert.Equal(t, ErrorServerError, classifyAnthropicError(errors.New("overloaded")).Type)
}

func TestPhraserTrimsReply(t *testing.T) {
	fp := &fakeProvider{name: "fake", reply: "  \"Breathe. This too shall pass.\"\n"}
	p := NewPhraser(fp, 0)
	iv := model.NewIntervention(model.InterventionQuote, "simple-rules-planner", "memory pressure", 0.4, nil)

	text, err := p.Phrase(context.Background(), iv, "draft text")
	require.NoError(t, err)
	assert.Equal(t, "Breathe. This too shall pass.", text)
	assert.Contains(t, fp.last.Prompt, "draft text")
	assert.Contains(t, fp.last.Prompt, "show_motivational_quote")
	assert.NotEmpty(t, fp.last.SystemPrompt)
}

func TestPhraserEmptyReply(t *testing.T) {
	p := NewPhraser(&fakeProvider{name: "fake", reply: "   "}, 0)
	_, err := p.Phrase(context.Background(), model.Intervention{}, "draft")
	require.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestClassifyContextDeadline(t *testing.T) {
	err := fmt.Errorf("post: %w", context.DeadlineExceeded)
	assert.Equal(t, ErrorTimeout, classifyOpenAIError(err).Type)
	assert.Equal(t, ErrorTimeout, classifyAnthropicError(err).Type)
	assert.True(t, isRetryable(err))
	assert.Equal(t, ErrorUnknown, errorTypeOf(errors.New("boom")))
}

func TestErrorTypeForStatus(t *testing.T) {
	tests := map[int]ErrorType{
		401: ErrorAuth,
		403: ErrorAuth,
		404: ErrorInvalidInput,
		408: ErrorTimeout,
		429: ErrorRateLimit,
		503: ErrorServerError,
		200: ErrorUnknown,
	}
	for status, want := range tests {
		assert.Equal(t, want, errorTypeForStatus(status), "status %d", status)
	}
}

func TestPhraserDisablesOnAuthError(t *testing.T) {
	fp := &fakeProvider{name: "fake", err: &LLMError{Type: ErrorAuth, Message: "401 invalid x-api-key"}}
	p := NewPhraser(fp, time.Second)
	iv := model.NewIntervention(model.InterventionQuote, "p", "memory", 0.4, nil)

	_, err := p.Phrase(context.Background(), iv, "draft")
	require.Error(t, err)
	assert.Equal(t, 1, fp.calls)

	fp.err = nil
	fp.reply = "fine now"
	_, err = p.Phrase(context.Background(), iv, "draft")
	require.ErrorIs(t, err, ErrPhrasingDisabled)
	assert.Equal(t, 1, fp.calls, "a rejected key is not tried again")
}

func TestPhraserPausesOnRateLimit(t *testing.T) {
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	fp := &fakeProvider{name: "fake", err: &LLMError{Type: ErrorRateLimit, Message: "429"}}
	p := NewPhraser(fp, time.Second)
	p.now = func() time.Time { return clock }
	iv := model.NewIntervention(model.InterventionQuestion, "p", "build failed", 0.5, nil)

	_, err := p.Phrase(context.Background(), iv, "draft")
	require.Error(t, err)

	fp.err = nil
	fp.reply = "What is within your control?"
	clock = clock.Add(rateLimitPause / 2)
	_, err = p.Phrase(context.Background(), iv, "draft")
	require.ErrorIs(t, err, ErrPhrasingPaused)
	assert.Equal(t, 1, fp.calls)

	clock = clock.Add(rateLimitPause)
	text, err := p.Phrase(context.Background(), iv, "draft")
	require.NoError(t, err)
	assert.Equal(t, "What is within your control?", text)
	assert.Equal(t, 2, fp.calls)
}

func TestPhraserKeepsTryingAfterTimeout(t *testing.T) {
	fp := &fakeProvider{name: "fake", err: &LLMError{Type: ErrorTimeout, Message: "deadline"}}
	p := NewPhraser(fp, time.Second)

	for i := 0; i < 3; i++ {
		_, err := p.Phrase(context.Background(), model.Intervention{}, "draft")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrPhrasingPaused)
	}
	assert.Equal(t, 3, fp.calls)
}
