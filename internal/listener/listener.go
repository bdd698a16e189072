// Package listener samples a signal on a fixed interval, smooths it with a
// moving average and publishes an Event whenever its threshold classification
// changes.
package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	stoiclog "stoic/internal/log"
	"stoic/internal/metrics"
	"stoic/internal/model"
	"stoic/internal/movingavg"
)

// ErrInvalidInterval is returned by New for non-positive durations.
var ErrInvalidInterval = errors.New("listener: interval must be positive")

// Publisher receives emitted events. *eventbus.Bus satisfies it.
type Publisher interface {
	PublishEvent(model.Event) error
}

// Config configures one listener.
type Config struct {
	Signal     Signal
	Thresholds Thresholds
	Interval   time.Duration
	Cooldown   time.Duration // window covered by the moving average
	// SampleTimeout bounds one Probe call. Defaults to Interval.
	SampleTimeout time.Duration
	NewTicker     TickerFactory // defaults to NewTicker
}

// Stats is a point-in-time snapshot of listener counters.
type Stats struct {
	Name           string    `json:"name"`
	State          string    `json:"state"`
	Running        bool      `json:"running"`
	Samples        int64     `json:"samples_collected"`
	Events         int64     `json:"events_generated"`
	Errors         int64     `json:"errors_encountered"`
	LastSample     float64   `json:"last_sample"`
	LastSampleTime time.Time `json:"last_sample_time"`
	Average        float64   `json:"average_usage"`
	Peak           float64   `json:"peak_usage"`
	Window         []float64 `json:"window"`
}

// Listener is a threshold state machine over one Probe.
type Listener struct {
	cfg    Config
	probe  Probe
	pub    Publisher
	logger zerolog.Logger

	// lifecycle
	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// tickMu serializes ticks; mu guards the fields below for Stats readers.
	tickMu     sync.Mutex
	mu         sync.RWMutex
	state      State
	avg        *movingavg.Average
	samples    int64
	events     int64
	errors     int64
	lastSample float64
	lastTime   time.Time
	peak       float64
}

// New validates cfg and builds a stopped listener in StateNormal.
func New(cfg Config, probe Probe, pub Publisher) (*Listener, error) {
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval %v", ErrInvalidInterval, cfg.Interval)
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("%w: cooldown %v", ErrInvalidInterval, cfg.Cooldown)
	}
	if probe == nil || pub == nil {
		return nil, errors.New("listener: probe and publisher are required")
	}
	if cfg.Signal.Name == "" {
		return nil, errors.New("listener: signal name is required")
	}
	if cfg.SampleTimeout <= 0 {
		cfg.SampleTimeout = cfg.Interval
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTicker
	}

	avg, err := movingavg.New(movingavg.WindowSize(cfg.Cooldown, cfg.Interval))
	if err != nil {
		return nil, err
	}

	return &Listener{
		cfg:    cfg,
		probe:  probe,
		pub:    pub,
		avg:    avg,
		state:  StateNormal,
		logger: stoiclog.WithComponent("listener").With().Str("listener", cfg.Signal.Name).Logger(),
	}, nil
}

// NewCPU builds a listener over CPUProbe.
func NewCPU(t Thresholds, interval, cooldown time.Duration, pub Publisher) (*Listener, error) {
	return New(Config{Signal: SignalCPU, Thresholds: t, Interval: interval, Cooldown: cooldown}, CPUProbe{}, pub)
}

// NewMemory builds a listener over MemoryProbe.
func NewMemory(t Thresholds, interval, cooldown time.Duration, pub Publisher) (*Listener, error) {
	return New(Config{Signal: SignalMemory, Thresholds: t, Interval: interval, Cooldown: cooldown}, MemoryProbe{}, pub)
}

// Name returns the signal name.
func (l *Listener) Name() string { return l.cfg.Signal.Name }

// Start runs one tick immediately and then one per Interval until Stop or
// ctx cancellation. Starting a running listener is a no-op.
func (l *Listener) Start(ctx context.Context) {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true

	l.wg.Add(1)
	go l.loop(runCtx)

	l.logger.Info().
		Str("event", "listener.started").
		Dur("interval", l.cfg.Interval).
		Int("window", l.avg.Size()).
		Float64("warning", l.cfg.Thresholds.Warning).
		Float64("critical", l.cfg.Thresholds.Critical).
		Msg("listener started")
}

// Stop cancels the timer and waits for an in-flight tick. Stopping a stopped
// listener is a no-op.
func (l *Listener) Stop() {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if !l.running {
		return
	}
	l.cancel()
	l.wg.Wait()
	l.running = false
	l.logger.Info().Str("event", "listener.stopped").Msg("listener stopped")
}

func (l *Listener) loop(ctx context.Context) {
	defer l.wg.Done()

	l.Tick(ctx)

	ticker := l.cfg.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			l.Tick(ctx)
		}
	}
}

// Tick performs one sampling cycle and returns the emitted event, if any.
func (l *Listener) Tick(ctx context.Context) (model.Event, bool) {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	if ctx.Err() != nil {
		return model.Event{}, false
	}

	sampleCtx, cancel := context.WithTimeout(ctx, l.cfg.SampleTimeout)
	reading, err := l.probe.Sample(sampleCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			// stopping; not a sampling fault
			return model.Event{}, false
		}
		l.mu.Lock()
		l.errors++
		l.mu.Unlock()
		metrics.IncSample(l.cfg.Signal.Name, err)
		l.logger.Warn().Err(err).Str("event", "listener.sample_failed").Msg("sampling failed, skipping tick")
		return model.Event{}, false
	}
	metrics.IncSample(l.cfg.Signal.Name, nil)

	usage := reading.Overall

	l.mu.Lock()
	avg := l.avg.Push(usage)
	prev := l.state
	next := l.cfg.Thresholds.Classify(usage)
	l.state = next
	l.samples++
	l.lastSample = usage
	l.lastTime = time.Now()
	if usage > l.peak {
		l.peak = usage
	}
	l.mu.Unlock()

	metrics.ListenerAverage.WithLabelValues(l.cfg.Signal.Name).Set(avg)
	metrics.ListenerState.WithLabelValues(l.cfg.Signal.Name).Set(float64(next))

	l.logger.Debug().
		Float64("usage", usage).
		Float64("average", avg).
		Str("state", next.String()).
		Msg("sample")

	if next == prev {
		return model.Event{}, false
	}

	evType, severity, threshold := l.cfg.Signal.transition(next, l.cfg.Thresholds)
	meta := model.Metadata{
		model.MetaAverage:   avg,
		model.MetaFrom:      prev.String(),
		model.MetaTo:        next.String(),
		model.MetaThreshold: threshold,
	}
	if len(reading.PerCore) > 0 {
		meta[model.MetaCores] = reading.PerCore
	}
	event := model.NewEvent(evType, l.cfg.Signal.Source, severity, usage/100, meta)

	if err := event.Validate(); err != nil {
		l.logger.Error().Err(err).Interface("payload", event).Str("event", "listener.invalid_event").Msg("dropping invalid event")
		return model.Event{}, false
	}

	l.mu.Lock()
	l.events++
	l.mu.Unlock()
	metrics.ListenerEventsTotal.WithLabelValues(l.cfg.Signal.Name, next.String()).Inc()

	l.logger.Info().
		Str("event", "listener.transition").
		Str("type", string(event.Type)).
		Str("id", event.ID).
		Str("from", prev.String()).
		Str("to", next.String()).
		Float64("usage", usage).
		Msg("state changed")

	if err := l.pub.PublishEvent(event); err != nil {
		l.logger.Error().Err(err).Str("event", "listener.publish_failed").Msg("publish failed")
	}
	return event, true
}

// Resume carries prev's classification, window and counters into l so a
// rebuilt listener does not re-announce the state prev already reported.
// It must be called before l is started.
func (l *Listener) Resume(prev *Listener) {
	if prev == nil || prev == l {
		return
	}
	prev.mu.RLock()
	state := prev.state
	window := prev.avg.Values()
	samples, events, errs := prev.samples, prev.events, prev.errors
	lastSample, lastTime, peak := prev.lastSample, prev.lastTime, prev.peak
	prev.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
	l.avg.Reset()
	for _, v := range window {
		l.avg.Push(v)
	}
	l.samples, l.events, l.errors = samples, events, errs
	l.lastSample, l.lastTime, l.peak = lastSample, lastTime, peak
}

// State returns the current classification.
func (l *Listener) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Stats returns a snapshot of the listener counters.
func (l *Listener) Stats() Stats {
	l.runMu.Lock()
	running := l.running
	l.runMu.Unlock()

	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		Name:           l.cfg.Signal.Name,
		State:          l.state.String(),
		Running:        running,
		Samples:        l.samples,
		Events:         l.events,
		Errors:         l.errors,
		LastSample:     l.lastSample,
		LastSampleTime: l.lastTime,
		Average:        l.avg.Current(),
		Peak:           l.peak,
		Window:         l.avg.Values(),
	}
}
