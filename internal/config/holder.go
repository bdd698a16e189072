package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	stoiclog "stoic/internal/log"
	"stoic/internal/metrics"
)

// Holder holds the active configuration and reloads it when the file changes.
// A reload that fails to load or validate keeps the previous configuration.
type Holder struct {
	mu      sync.RWMutex
	current *Config
	loader  *Loader
	logger  zerolog.Logger

	debounce time.Duration

	listenersMu sync.RWMutex
	listeners   []func(*Config)

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewHolder creates a holder seeded with an already-validated config.
func NewHolder(initial *Config, loader *Loader) *Holder {
	return &Holder{
		current:  initial,
		loader:   loader,
		logger:   stoiclog.WithComponent("config"),
		debounce: 500 * time.Millisecond,
	}
}

// Get returns a copy of the current configuration.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Clone()
}

// OnReload registers fn to be called with every successfully reloaded config.
func (h *Holder) OnReload(fn func(*Config)) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload reads the file, validates it and swaps it in.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		metrics.ConfigReloadsTotal.WithLabelValues("load_failed").Inc()
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}
	if err := Validate(newCfg); err != nil {
		metrics.ConfigReloadsTotal.WithLabelValues("invalid").Inc()
		h.logger.Error().Err(err).Str("event", "config.validation_failed").Msg("new configuration failed validation")
		return fmt.Errorf("validate config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = newCfg
	h.mu.Unlock()

	h.logChanges(old, newCfg)
	metrics.ConfigReloadsTotal.WithLabelValues("success").Inc()
	h.logger.Info().Str("event", "config.reload_success").Msg("configuration reloaded successfully")

	h.listenersMu.RLock()
	listeners := make([]func(*Config), len(h.listeners))
	copy(listeners, h.listeners)
	h.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(newCfg.Clone())
	}
	return nil
}

// StartWatcher watches the config file's directory until ctx is cancelled.
// Editors that replace the file atomically are handled by watching the
// directory and filtering on the file name.
func (h *Holder) StartWatcher(ctx context.Context) error {
	path := h.loader.FilePath()
	if path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.watcher = watcher

	h.logger.Info().Str("event", "config.watcher_started").Str("path", path).Msg("watching config file for changes")

	h.wg.Add(1)
	go h.watchLoop(ctx, watcher, filepath.Clean(path))
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	defer h.wg.Done()
	defer watcher.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				h.logger.Debug().Str("event", "config.file_changed").Str("op", event.Op.String()).Msg("config file changed")
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(h.debounce, func() {
					if err := h.Reload(ctx); err != nil {
						h.logger.Error().Err(err).Str("event", "config.auto_reload_failed").Msg("automatic config reload failed")
					}
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Wait blocks until the watcher goroutine has exited.
func (h *Holder) Wait() {
	h.wg.Wait()
}

func (h *Holder) logChanges(old, newCfg *Config) {
	if old.Agent.ProcessInterval != newCfg.Agent.ProcessInterval {
		h.logger.Info().Int("old", old.Agent.ProcessInterval).Int("new", newCfg.Agent.ProcessInterval).Msg("config changed: agent.process_interval")
	}
	if old.Agent.CooldownPeriod != newCfg.Agent.CooldownPeriod {
		h.logger.Info().Int("old", old.Agent.CooldownPeriod).Int("new", newCfg.Agent.CooldownPeriod).Msg("config changed: agent.cooldown_period")
	}
	if old.Thresholds.CPU != newCfg.Thresholds.CPU {
		h.logger.Info().
			Float64("old_warning", old.Thresholds.CPU.Warning).Float64("old_critical", old.Thresholds.CPU.Critical).
			Float64("new_warning", newCfg.Thresholds.CPU.Warning).Float64("new_critical", newCfg.Thresholds.CPU.Critical).
			Msg("config changed: thresholds.cpu")
	}
	if old.Thresholds.Memory != newCfg.Thresholds.Memory {
		h.logger.Info().
			Float64("old_warning", old.Thresholds.Memory.Warning).Float64("old_critical", old.Thresholds.Memory.Critical).
			Float64("new_warning", newCfg.Thresholds.Memory.Warning).Float64("new_critical", newCfg.Thresholds.Memory.Critical).
			Msg("config changed: thresholds.memory")
	}
	if old.Notifications.Enabled != newCfg.Notifications.Enabled {
		h.logger.Info().Bool("old", old.Notifications.Enabled).Bool("new", newCfg.Notifications.Enabled).Msg("config changed: notifications.enabled")
	}
	if old.Agent.Enabled != newCfg.Agent.Enabled {
		h.logger.Info().Bool("old", old.Agent.Enabled).Bool("new", newCfg.Agent.Enabled).Msg("config changed: agent.enabled")
	}
}
