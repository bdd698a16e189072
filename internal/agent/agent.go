// Package agent assembles the listener → planner → executor pipeline around
// one event bus and owns its lifecycle.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"stoic/internal/config"
	"stoic/internal/eventbus"
	"stoic/internal/executor"
	"stoic/internal/journal"
	"stoic/internal/listener"
	stoiclog "stoic/internal/log"
	"stoic/internal/notify"
	"stoic/internal/planner"
)

// Deps are the collaborators an Agent is built from. Only Notifier is required.
type Deps struct {
	Notifier notify.Notifier
	Phraser  executor.Phraser
	Journal  journal.Journal
	Rules    *planner.RuleSet

	// Probes and ticker default to the host probes and a real ticker.
	CPUProbe    listener.Probe
	MemoryProbe listener.Probe
	NewTicker   listener.TickerFactory
}

// Status is a snapshot for the CLI and health checks.
type Status struct {
	Enabled   bool             `json:"enabled"`
	Running   bool             `json:"running"`
	Listeners []listener.Stats `json:"listeners"`
}

// Agent owns the bus and every component subscribed to it.
type Agent struct {
	bus      *eventbus.Bus
	planner  *planner.Planner
	executor *executor.Executor
	recorder *journal.Recorder
	deps     Deps
	logger   zerolog.Logger

	mu        sync.RWMutex
	cfg       *config.Config
	listeners []*listener.Listener
	running   bool
	runCtx    context.Context
	cancel    context.CancelFunc
	cfgSub    eventbus.SubscriptionID
}

// New validates cfg and builds a stopped agent.
func New(cfg *config.Config, deps Deps) (*Agent, error) {
	if cfg == nil {
		return nil, errors.New("agent: config is required")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if deps.Notifier == nil {
		return nil, errors.New("agent: notifier is required")
	}
	if deps.CPUProbe == nil {
		deps.CPUProbe = listener.CPUProbe{}
	}
	if deps.MemoryProbe == nil {
		deps.MemoryProbe = listener.MemoryProbe{}
	}

	bus := eventbus.New()
	a := &Agent{
		bus:     bus,
		planner: planner.New(bus, deps.Rules),
		executor: executor.New(bus, executor.Options{
			Notifier: deps.Notifier,
			Phraser:  deps.Phraser,
			Feedback: feedbackOf(deps.Journal),
		}),
		deps:   deps,
		cfg:    cfg.Clone(),
		logger: stoiclog.WithComponent("agent"),
	}
	if deps.Journal != nil {
		a.recorder = journal.NewRecorder(bus, deps.Journal)
	}

	listeners, err := a.buildListeners(a.cfg)
	if err != nil {
		return nil, err
	}
	a.listeners = listeners
	return a, nil
}

func feedbackOf(j journal.Journal) executor.FeedbackRecorder {
	if j == nil {
		return nil
	}
	return j
}

// Bus exposes the agent's bus so external sources can publish events.
func (a *Agent) Bus() *eventbus.Bus { return a.bus }

func (a *Agent) buildListeners(cfg *config.Config) ([]*listener.Listener, error) {
	interval, cooldown := cfg.ProcessIntervalDuration(), cfg.CooldownDuration()

	cpu, err := listener.New(listener.Config{
		Signal:     listener.SignalCPU,
		Thresholds: listener.Thresholds{Warning: cfg.Thresholds.CPU.Warning, Critical: cfg.Thresholds.CPU.Critical},
		Interval:   interval,
		Cooldown:   cooldown,
		NewTicker:  a.deps.NewTicker,
	}, a.deps.CPUProbe, a.bus)
	if err != nil {
		return nil, fmt.Errorf("cpu listener: %w", err)
	}
	out := []*listener.Listener{cpu}

	if cfg.Agent.WatchMemory {
		mem, err := listener.New(listener.Config{
			Signal:     listener.SignalMemory,
			Thresholds: listener.Thresholds{Warning: cfg.Thresholds.Memory.Warning, Critical: cfg.Thresholds.Memory.Critical},
			Interval:   interval,
			Cooldown:   cooldown,
			NewTicker:  a.deps.NewTicker,
		}, a.deps.MemoryProbe, a.bus)
		if err != nil {
			return nil, fmt.Errorf("memory listener: %w", err)
		}
		out = append(out, mem)
	}
	return out, nil
}

// Start wires every component and starts the listeners. It is a no-op when
// already running. A disabled agent only watches for config reloads.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}

	// Downstream first so no event is published without a consumer.
	if a.recorder != nil {
		if err := a.recorder.Start(); err != nil {
			return err
		}
	}
	if err := a.executor.Start(); err != nil {
		return err
	}
	if err := a.planner.Start(); err != nil {
		return err
	}
	sub, err := a.bus.OnConfig(a.applyConfig)
	if err != nil {
		return err
	}
	a.cfgSub = sub

	a.runCtx, a.cancel = context.WithCancel(ctx)
	a.running = true

	if !a.cfg.Agent.Enabled {
		a.logger.Info().Str("event", "agent.disabled").Msg("agent disabled in config, listeners not started")
		return nil
	}
	for _, l := range a.listeners {
		l.Start(a.runCtx)
	}
	a.logger.Info().Str("event", "agent.started").Int("listeners", len(a.listeners)).Msg("agent started")
	return nil
}

// Stop stops listeners first and then lets in-flight notifications finish
// until ctx is done.
func (a *Agent) Stop(ctx context.Context) {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.bus.Unsubscribe(eventbus.TopicConfigReload, a.cfgSub)
	a.cfgSub = 0
	for _, l := range a.listeners {
		l.Stop()
	}
	a.cancel()
	a.mu.Unlock()

	a.planner.Stop()
	a.executor.Stop(ctx)
	if a.recorder != nil {
		a.recorder.Stop()
	}
	a.logger.Info().Str("event", "agent.stopped").Msg("agent stopped")
}

// applyConfig reacts to a reloaded configuration. Listeners survive a reload
// that leaves their inputs untouched; otherwise they are rebuilt and resume
// from the state and window of the listener they replace. An invalid config
// is rejected and the current listeners keep running.
func (a *Agent) applyConfig(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		a.logger.Warn().Err(err).Str("event", "agent.reload_rejected").Msg("ignoring invalid configuration")
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return nil
	}
	wasEnabled := a.cfg.Agent.Enabled
	rebuild := !sameListenerConfig(a.cfg, cfg)

	if rebuild {
		next, err := a.buildListeners(cfg)
		if err != nil {
			a.logger.Warn().Err(err).Str("event", "agent.reload_rejected").Msg("ignoring invalid configuration")
			return nil
		}
		prev := make(map[string]*listener.Listener, len(a.listeners))
		for _, l := range a.listeners {
			l.Stop()
			prev[l.Name()] = l
		}
		for _, l := range next {
			l.Resume(prev[l.Name()])
		}
		a.listeners = next
	}
	a.cfg = cfg.Clone()

	switch {
	case !a.cfg.Agent.Enabled:
		for _, l := range a.listeners {
			l.Stop()
		}
	case rebuild || !wasEnabled:
		for _, l := range a.listeners {
			l.Start(a.runCtx)
		}
	}
	a.logger.Info().
		Str("event", "agent.reloaded").
		Bool("enabled", a.cfg.Agent.Enabled).
		Bool("rebuilt", rebuild).
		Int("listeners", len(a.listeners)).
		Msg("configuration applied")
	return nil
}

// sameListenerConfig reports whether a and b produce identical listeners.
func sameListenerConfig(a, b *config.Config) bool {
	return a.Agent.ProcessInterval == b.Agent.ProcessInterval &&
		a.Agent.CooldownPeriod == b.Agent.CooldownPeriod &&
		a.Agent.WatchMemory == b.Agent.WatchMemory &&
		a.Thresholds.CPU == b.Thresholds.CPU &&
		a.Thresholds.Memory == b.Thresholds.Memory
}

// Stats returns one snapshot per listener.
func (a *Agent) Stats() []listener.Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]listener.Stats, 0, len(a.listeners))
	for _, l := range a.listeners {
		out = append(out, l.Stats())
	}
	return out
}

func (a *Agent) Status() Status {
	a.mu.RLock()
	enabled, running := a.cfg.Agent.Enabled, a.running
	a.mu.RUnlock()
	return Status{Enabled: enabled, Running: running, Listeners: a.Stats()}
}

// Wait blocks until dispatched notifications have finished.
func (a *Agent) Wait() { a.executor.Wait() }
