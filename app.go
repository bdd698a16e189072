package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stoic/internal/agent"
	"stoic/internal/config"
	"stoic/internal/executor"
	"stoic/internal/journal"
	"stoic/internal/llm"
	stoiclog "stoic/internal/log"
	"stoic/internal/metrics"
	"stoic/internal/notify"
	"stoic/internal/security"
)

// App owns the runtime: configuration, secrets, storage, notification sinks
// and the agent pipeline.
type App struct {
	cfgLoader *config.Loader
	holder    *config.Holder
	keyStore  *security.KeyStore
	journal   *journal.SQLite
	sinks     *notify.Fanout
	agent     *agent.Agent
	out       io.Writer
	logger    zerolog.Logger
}

// NewApp creates an App that reads its configuration through loader.
func NewApp(loader *config.Loader, out io.Writer) *App {
	if out == nil {
		out = os.Stdout
	}
	return &App{cfgLoader: loader, out: out, logger: stoiclog.WithComponent("app")}
}

// Run starts everything and blocks until ctx is cancelled or a service fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		a.shutdown(context.Background())
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if it cannot be started.
	if err := a.holder.StartWatcher(ctx); err != nil {
		a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
	}

	if addr := a.holder.Get().Metrics.Addr; addr != "" {
		g.Go(func() error {
			return metrics.Serve(ctx, addr, a.health, stoiclog.WithComponent("metrics"))
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		a.holder.Wait()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.shutdown(shutdownCtx)
		return nil
	})

	return g.Wait()
}

func (a *App) startup(ctx context.Context) error {
	cfg, err := a.cfgLoader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config %s: %w", a.cfgLoader.FilePath(), err)
	}
	stoiclog.Configure(stoiclog.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	a.logger = stoiclog.WithComponent("app")

	ks, err := security.OpenDefault()
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to open key store, secrets stay in config file")
	}
	a.keyStore = ks
	a.resolveSecrets(cfg)

	a.holder = config.NewHolder(cfg, a.cfgLoader)

	var j journal.Journal
	if path := expandHome(cfg.Storage.Path); path != "" {
		sq, err := journal.OpenSQLite(path)
		if err != nil {
			a.logger.Error().Err(err).Str("path", path).Msg("failed to open journal, continuing without persistence")
		} else {
			a.journal = sq
			j = sq
		}
	}

	a.sinks = a.buildSinks(cfg)
	if err := a.sinks.StartAll(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("some notification sinks failed to start")
	}

	gate := notify.Gate{Inner: a.sinks, Enabled: func() bool { return a.holder.Get().Notifications.Enabled }}
	ag, err := agent.New(cfg, agent.Deps{
		Notifier: gate,
		Phraser:  a.buildPhraser(cfg.LLM),
		Journal:  j,
	})
	if err != nil {
		return err
	}
	a.agent = ag

	a.holder.OnReload(func(next *config.Config) {
		stoiclog.Configure(stoiclog.Config{Level: next.Logging.Level, Pretty: next.Logging.Pretty})
		if err := ag.Bus().PublishConfig(next); err != nil {
			a.logger.Warn().Err(err).Msg("failed to publish reloaded config")
		}
	})

	if err := ag.Start(ctx); err != nil {
		return err
	}
	a.logger.Info().Strs("sinks", a.sinks.List()).Bool("journal", a.journal != nil).Msg("stoic agent running")
	return nil
}

func (a *App) shutdown(ctx context.Context) {
	if a.agent != nil {
		a.agent.Stop(ctx)
	}
	if a.sinks != nil {
		a.sinks.StopAll(ctx)
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close journal")
		}
	}
}

func (a *App) health() error {
	if a.agent == nil {
		return errors.New("agent not initialized")
	}
	if !a.agent.Status().Running {
		return errors.New("agent not running")
	}
	return nil
}

func (a *App) buildSinks(cfg *config.Config) *notify.Fanout {
	f := notify.NewFanout()
	if cfg.Notifications.Console {
		f.Register(notify.NewConsole(a.out))
	}
	if tg := cfg.Notifications.Telegram; tg != nil && tg.Token != "" && tg.Token != security.KeyringPlaceholder {
		f.Register(notify.NewTelegram(notify.TelegramConfig{
			Token:         tg.Token,
			ChatID:        tg.ChatID,
			AllowedIDs:    tg.AllowedIDs,
			RatePerMinute: tg.RatePerMinute,
		}))
	}
	return f
}

// buildPhraser returns nil when no LLM is configured; notifications then use
// their static text.
func (a *App) buildPhraser(cfg config.LLMConfig) executor.Phraser {
	provider, err := llm.NewProvider(cfg)
	if errors.Is(err, llm.ErrDisabled) {
		return nil
	}
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to create LLM provider, phrasing disabled")
		return nil
	}

	if cfg.Fallback != nil {
		fallback, err := llm.NewProvider(*cfg.Fallback)
		if err == nil {
			provider = llm.NewFallbackProvider(provider, fallback)
		} else {
			a.logger.Warn().Err(err).Msg("failed to create fallback LLM provider")
		}
	}
	a.logger.Info().Str("provider", provider.Name()).Msg("LLM phrasing enabled")
	return llm.NewPhraser(provider, time.Duration(cfg.TimeoutSecs)*time.Second)
}

// resolveSecrets loads secrets from the key store into cfg. On first run,
// plaintext secrets are migrated to the key store and the file is rewritten
// with placeholders.
func (a *App) resolveSecrets(cfg *config.Config) {
	if a.keyStore == nil {
		return
	}
	if err := a.keyStore.ResolveSecrets(cfg); err != nil {
		a.logger.Warn().Err(err).Msg("failed to read secrets from key store")
	}

	migrated := false
	if cfg.LLM.APIKey != "" && cfg.LLM.APIKey != security.KeyringPlaceholder {
		if err := a.keyStore.Set(security.SecretLLMAPIKey, cfg.LLM.APIKey); err == nil {
			migrated = true
			a.logger.Info().Str("key", security.MaskKey(cfg.LLM.APIKey)).Msg("migrated LLM API key to secure storage")
		}
	}
	if tg := cfg.Notifications.Telegram; tg != nil && tg.Token != "" && tg.Token != security.KeyringPlaceholder {
		if err := a.keyStore.Set(security.SecretTelegramToken, tg.Token); err == nil {
			migrated = true
			a.logger.Info().Msg("migrated Telegram token to secure storage")
		}
	}
	if !migrated {
		return
	}

	// In-memory cfg keeps real secrets; only the file gets placeholders.
	onDisk, err := a.cfgLoader.Load()
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to reload config for secret migration")
		return
	}
	if onDisk.LLM.APIKey != "" {
		onDisk.LLM.APIKey = security.KeyringPlaceholder
	}
	if onDisk.Notifications.Telegram != nil && onDisk.Notifications.Telegram.Token != "" {
		onDisk.Notifications.Telegram.Token = security.KeyringPlaceholder
	}
	if err := a.cfgLoader.Save(onDisk); err != nil {
		a.logger.Warn().Err(err).Msg("failed to save config after secret migration")
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
