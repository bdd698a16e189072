package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidThresholds marks a warning/critical pair that cannot classify.
var ErrInvalidThresholds = errors.New("invalid thresholds")

var validProviders = map[string]bool{"": true, "openai": true, "anthropic": true, "ollama": true}

// Validate checks that the configuration can drive the agent. Every problem is
// reported, joined.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Agent.ProcessInterval <= 0 {
		errs = append(errs, fmt.Errorf("agent.process_interval must be positive, got %d", cfg.Agent.ProcessInterval))
	}
	if cfg.Agent.CooldownPeriod <= 0 {
		errs = append(errs, fmt.Errorf("agent.cooldown_period must be positive, got %d", cfg.Agent.CooldownPeriod))
	}
	if err := ValidateThreshold("thresholds.cpu", cfg.Thresholds.CPU); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateThreshold("thresholds.memory", cfg.Thresholds.Memory); err != nil {
		errs = append(errs, err)
	}
	if tg := cfg.Notifications.Telegram; tg != nil {
		if tg.Token == "" {
			errs = append(errs, errors.New("notifications.telegram.token is required"))
		}
		if tg.ChatID == 0 {
			errs = append(errs, errors.New("notifications.telegram.chat_id is required"))
		}
		if tg.RatePerMinute < 0 {
			errs = append(errs, fmt.Errorf("notifications.telegram.rate_per_minute must be non-negative, got %d", tg.RatePerMinute))
		}
	}
	if !validProviders[strings.ToLower(cfg.LLM.Provider)] {
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported (openai, anthropic, ollama)", cfg.LLM.Provider))
	}
	if fb := cfg.LLM.Fallback; fb != nil && (fb.Provider == "" || !validProviders[strings.ToLower(fb.Provider)]) {
		errs = append(errs, fmt.Errorf("llm.fallback.provider %q is not supported (openai, anthropic, ollama)", fb.Provider))
	}
	if cfg.LLM.TimeoutSecs < 0 {
		errs = append(errs, fmt.Errorf("llm.timeout_secs must be non-negative, got %d", cfg.LLM.TimeoutSecs))
	}
	if cfg.Logging.Level != "" {
		switch strings.ToLower(cfg.Logging.Level) {
		case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
		default:
			errs = append(errs, fmt.Errorf("logging.level %q is not a valid level", cfg.Logging.Level))
		}
	}

	return errors.Join(errs...)
}

// ValidateThreshold requires 0 <= warning < critical <= 100.
func ValidateThreshold(name string, t Threshold) error {
	if t.Warning < 0 || t.Critical > 100 {
		return fmt.Errorf("%w: %s must lie within [0,100], got %v/%v", ErrInvalidThresholds, name, t.Warning, t.Critical)
	}
	if t.Warning >= t.Critical {
		return fmt.Errorf("%w: %s warning (%v) must be below critical (%v)", ErrInvalidThresholds, name, t.Warning, t.Critical)
	}
	return nil
}
