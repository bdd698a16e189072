package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	stoiclog "stoic/internal/log"
)

// Fanout delivers each request to every registered sink concurrently and
// manages the lifecycle of sinks that hold connections.
type Fanout struct {
	mu     sync.RWMutex
	sinks  []Notifier
	logger zerolog.Logger
}

// NewFanout creates an empty fanout.
func NewFanout(sinks ...Notifier) *Fanout {
	f := &Fanout{logger: stoiclog.WithComponent("notify")}
	for _, s := range sinks {
		f.Register(s)
	}
	return f
}

func (f *Fanout) Name() string { return "fanout" }

// Register adds a sink.
func (f *Fanout) Register(n Notifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, n)
}

// List returns sink names in registration order.
func (f *Fanout) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return names
}

// StartAll starts every sink implementing Lifecycle.
func (f *Fanout) StartAll(ctx context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, s := range f.sinks {
		lc, ok := s.(Lifecycle)
		if !ok {
			continue
		}
		if err := lc.Start(ctx); err != nil {
			f.logger.Error().Err(err).Str("sink", s.Name()).Msg("failed to start sink")
			return fmt.Errorf("start %s: %w", s.Name(), err)
		}
		f.logger.Info().Str("sink", s.Name()).Msg("started sink")
	}
	return nil
}

// StopAll stops every sink implementing Lifecycle.
func (f *Fanout) StopAll(ctx context.Context) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, s := range f.sinks {
		lc, ok := s.(Lifecycle)
		if !ok {
			continue
		}
		if err := lc.Stop(ctx); err != nil {
			f.logger.Error().Err(err).Str("sink", s.Name()).Msg("failed to stop sink")
		} else {
			f.logger.Info().Str("sink", s.Name()).Msg("stopped sink")
		}
	}
}

// Notify sends req to all sinks. It succeeds if any sink succeeds; the
// returned outcome is the first one carrying an action, otherwise the first
// success in registration order. When every sink fails the errors are joined.
func (f *Fanout) Notify(ctx context.Context, req Request) (Outcome, error) {
	f.mu.RLock()
	sinks := make([]Notifier, len(f.sinks))
	copy(sinks, f.sinks)
	f.mu.RUnlock()

	if len(sinks) == 0 {
		return Outcome{}, ErrNoSinks
	}

	type result struct {
		out Outcome
		err error
	}
	results := make([]result, len(sinks))
	var wg sync.WaitGroup
	for i, s := range sinks {
		wg.Add(1)
		go func(i int, s Notifier) {
			defer wg.Done()
			out, err := s.Notify(ctx, req)
			if out.Sink == "" {
				out.Sink = s.Name()
			}
			results[i] = result{out: out, err: err}
		}(i, s)
	}
	wg.Wait()

	var (
		errs    []error
		first   *Outcome
		allSkip = true
	)
	for i, r := range results {
		if r.err != nil {
			if !errors.Is(r.err, ErrDisabled) {
				allSkip = false
			}
			errs = append(errs, fmt.Errorf("%s: %w", sinks[i].Name(), r.err))
			continue
		}
		allSkip = false
		if r.out.Action != "" {
			return r.out, nil
		}
		if first == nil {
			out := r.out
			first = &out
		}
	}
	if first != nil {
		return *first, nil
	}
	if allSkip {
		return Outcome{}, ErrDisabled
	}
	return Outcome{}, errors.Join(errs...)
}
