package config

import "time"

// Config is the top-level application configuration.
type Config struct {
	Agent         AgentConfig         `yaml:"agent" json:"agent"`
	Thresholds    ThresholdsConfig    `yaml:"thresholds" json:"thresholds"`
	Notifications NotificationsConfig `yaml:"notifications" json:"notifications"`
	LLM           LLMConfig           `yaml:"llm" json:"llm"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
}

type AgentConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Milliseconds between samples.
	ProcessInterval int `yaml:"process_interval" json:"process_interval"`
	// Milliseconds of history covered by the moving average.
	CooldownPeriod int  `yaml:"cooldown_period" json:"cooldown_period"`
	WatchMemory    bool `yaml:"watch_memory" json:"watch_memory"`
}

// ThresholdsConfig holds per-signal percentages in [0,100].
type ThresholdsConfig struct {
	CPU    Threshold `yaml:"cpu" json:"cpu"`
	Memory Threshold `yaml:"memory" json:"memory"`
}

type Threshold struct {
	Warning  float64 `yaml:"warning" json:"warning"`
	Critical float64 `yaml:"critical" json:"critical"`
}

type NotificationsConfig struct {
	Enabled  bool            `yaml:"enabled" json:"enabled"`
	Console  bool            `yaml:"console" json:"console"`
	Telegram *TelegramConfig `yaml:"telegram,omitempty" json:"telegram,omitempty"`
}

type TelegramConfig struct {
	// Token may be the literal "[keyring]" to read it from the OS keyring.
	Token         string  `yaml:"token" json:"token"`
	ChatID        int64   `yaml:"chat_id" json:"chat_id"`
	AllowedIDs    []int64 `yaml:"allowed_ids,omitempty" json:"allowed_ids,omitempty"`
	RatePerMinute int     `yaml:"rate_per_minute" json:"rate_per_minute"`
}

// LLMConfig configures the optional phrasing backend. An empty Provider disables it.
type LLMConfig struct {
	Provider    string `yaml:"provider" json:"provider"`
	Model       string `yaml:"model" json:"model"`
	APIKey      string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs" json:"timeout_secs"`
	// Fallback is tried when the primary provider is rate limited or down.
	Fallback *LLMConfig `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

type StorageConfig struct {
	// Path of the SQLite journal. Empty disables persistence.
	Path string `yaml:"path" json:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

type MetricsConfig struct {
	// Listen address for /metrics and /healthz. Empty disables the endpoint.
	Addr string `yaml:"addr" json:"addr"`
}

// ProcessIntervalDuration returns Agent.ProcessInterval as a duration.
func (c *Config) ProcessIntervalDuration() time.Duration {
	return time.Duration(c.Agent.ProcessInterval) * time.Millisecond
}

// CooldownDuration returns Agent.CooldownPeriod as a duration.
func (c *Config) CooldownDuration() time.Duration {
	return time.Duration(c.Agent.CooldownPeriod) * time.Millisecond
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	if c.Notifications.Telegram != nil {
		tg := *c.Notifications.Telegram
		tg.AllowedIDs = append([]int64(nil), tg.AllowedIDs...)
		out.Notifications.Telegram = &tg
	}
	if c.LLM.Fallback != nil {
		fb := *c.LLM.Fallback
		fb.Fallback = nil
		out.LLM.Fallback = &fb
	}
	return &out
}
