package config

import (
	"os"
	"path/filepath"
)

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Enabled:         true,
			ProcessInterval: 5000,
			CooldownPeriod:  30000,
			WatchMemory:     true,
		},
		Thresholds: ThresholdsConfig{
			CPU:    Threshold{Warning: 70, Critical: 90},
			Memory: Threshold{Warning: 80, Critical: 95},
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Console: true,
		},
		LLM: LLMConfig{
			TimeoutSecs: 20,
		},
		Storage: StorageConfig{
			Path: defaultDBPath(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, configDir, "stoic.db")
}
