package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	configDir  = ".stoic"
	configFile = "config.yaml"
	envPrefix  = "STOIC_"
)

// Loader manages reading and writing the config file.
type Loader struct {
	mu       sync.RWMutex
	config   *Config
	filePath string
}

// NewLoader creates a loader that stores config in ~/.stoic/config.yaml.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(home, configDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Loader{
		filePath: filepath.Join(dir, configFile),
	}, nil
}

// NewLoaderAt creates a loader for an explicit file path.
func NewLoaderAt(path string) *Loader {
	return &Loader{filePath: path}
}

// Load reads the config from disk and applies STOIC_* environment overrides.
// If the file doesn't exist, defaults are used. The result is not validated.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := Defaults()

	data, err := os.ReadFile(l.filePath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", l.filePath, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	l.config = cfg
	return cfg, nil
}

// Save writes the config to disk.
func (l *Loader) Save(cfg *Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.filePath), 0700); err != nil {
		return err
	}

	l.config = cfg
	return os.WriteFile(l.filePath, data, 0600)
}

// Get returns the currently loaded config (or defaults if not loaded yet).
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.config == nil {
		return Defaults()
	}
	return l.config
}

// FilePath returns the config file path.
func (l *Loader) FilePath() string {
	return l.filePath
}

func applyEnv(cfg *Config) error {
	boolVars := map[string]*bool{
		"ENABLED":               &cfg.Agent.Enabled,
		"WATCH_MEMORY":          &cfg.Agent.WatchMemory,
		"NOTIFICATIONS_ENABLED": &cfg.Notifications.Enabled,
		"LOG_PRETTY":            &cfg.Logging.Pretty,
	}
	intVars := map[string]*int{
		"PROCESS_INTERVAL": &cfg.Agent.ProcessInterval,
		"COOLDOWN_PERIOD":  &cfg.Agent.CooldownPeriod,
	}
	floatVars := map[string]*float64{
		"CPU_WARNING":     &cfg.Thresholds.CPU.Warning,
		"CPU_CRITICAL":    &cfg.Thresholds.CPU.Critical,
		"MEMORY_WARNING":  &cfg.Thresholds.Memory.Warning,
		"MEMORY_CRITICAL": &cfg.Thresholds.Memory.Critical,
	}
	stringVars := map[string]*string{
		"LOG_LEVEL":    &cfg.Logging.Level,
		"DB_PATH":      &cfg.Storage.Path,
		"METRICS_ADDR": &cfg.Metrics.Addr,
		"LLM_PROVIDER": &cfg.LLM.Provider,
		"LLM_MODEL":    &cfg.LLM.Model,
		"LLM_API_KEY":  &cfg.LLM.APIKey,
		"LLM_BASE_URL": &cfg.LLM.BaseURL,
	}

	for name, dst := range boolVars {
		if val, ok := os.LookupEnv(envPrefix + name); ok && val != "" {
			*dst = parseBool(val)
		}
	}
	for name, dst := range intVars {
		if val, ok := os.LookupEnv(envPrefix + name); ok && val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = n
		}
	}
	for name, dst := range floatVars {
		if val, ok := os.LookupEnv(envPrefix + name); ok && val != "" {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = f
		}
	}
	for name, dst := range stringVars {
		if val, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = val
		}
	}
	return nil
}

// parseBool parses a boolean string with a default value of true
func parseBool(val string) bool {
	switch val {
	case "false", "0", "no", "off":
		return false
	default:
		return true
	}
}
