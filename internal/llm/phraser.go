package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	stoiclog "stoic/internal/log"
	"stoic/internal/model"
)

const phraserSystemPrompt = "You are a calm Stoic coach inside a desktop wellness agent. " +
	"Rewrite the draft you are given for the user in at most two short sentences. " +
	"Keep its intent. Reply with the rewritten text only, no quotes or preamble."

const (
	rateLimitPause   = time.Minute
	serverErrorPause = 15 * time.Second
)

var (
	// ErrEmptyCompletion is returned when the model produced no usable text.
	ErrEmptyCompletion = errors.New("llm: empty completion")
	// ErrPhrasingDisabled is returned once the provider has rejected the
	// credentials or the request itself. Retrying cannot help.
	ErrPhrasingDisabled = errors.New("llm: phrasing disabled")
	// ErrPhrasingPaused is returned while backing off after a rate limit or
	// server error.
	ErrPhrasingPaused = errors.New("llm: phrasing paused")
)

// Phraser rewrites intervention text with an LLM. It never decides what to do.
// Provider failures steer later calls: auth and invalid-request errors turn
// phrasing off for the life of the Phraser, while rate limits and server
// errors pause it for a while. Callers fall back to static text on any error.
type Phraser struct {
	provider Provider
	timeout  time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	disabled error
	resumeAt time.Time
}

// NewPhraser bounds every call by timeout (default 20s).
func NewPhraser(p Provider, timeout time.Duration) *Phraser {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Phraser{
		provider: p,
		timeout:  timeout,
		logger:   stoiclog.WithComponent("llm").With().Str("provider", p.Name()).Logger(),
		now:      time.Now,
	}
}

// Phrase returns a rewritten version of draft for iv.
func (p *Phraser) Phrase(ctx context.Context, iv model.Intervention, draft string) (string, error) {
	if err := p.ready(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Intervention: %s\nWhy: %s\nDraft: %s", iv.Type, iv.Reason, draft)
	resp, err := p.provider.Chat(ctx, &ChatRequest{
		SystemPrompt: phraserSystemPrompt,
		Prompt:       prompt,
		MaxTokens:    120,
		Temperature:  0.7,
	})
	if err != nil {
		p.backOff(err)
		return "", err
	}
	text := strings.Trim(strings.TrimSpace(resp.Content), "\"'")
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func (p *Phraser) ready() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disabled != nil {
		return fmt.Errorf("%w: %v", ErrPhrasingDisabled, p.disabled)
	}
	if p.now().Before(p.resumeAt) {
		return ErrPhrasingPaused
	}
	return nil
}

func (p *Phraser) backOff(err error) {
	kind := errorTypeOf(err)

	p.mu.Lock()
	defer p.mu.Unlock()
	switch kind {
	case ErrorAuth, ErrorInvalidInput:
		p.disabled = err
		p.logger.Error().Err(err).Stringer("kind", kind).Str("event", "llm.phrasing_disabled").
			Msg("provider rejected phrasing, using static text from now on")
	case ErrorRateLimit:
		p.resumeAt = p.now().Add(rateLimitPause)
		p.logger.Warn().Err(err).Stringer("kind", kind).Dur("pause", rateLimitPause).Str("event", "llm.phrasing_paused").
			Msg("rate limited, pausing phrasing")
	case ErrorServerError:
		p.resumeAt = p.now().Add(serverErrorPause)
		p.logger.Warn().Err(err).Stringer("kind", kind).Dur("pause", serverErrorPause).Str("event", "llm.phrasing_paused").
			Msg("provider unavailable, pausing phrasing")
	default:
		p.logger.Debug().Err(err).Stringer("kind", kind).Msg("phrasing failed")
	}
}
