// Package executor turns interventions into user notifications.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stoic/internal/eventbus"
	stoiclog "stoic/internal/log"
	"stoic/internal/metrics"
	"stoic/internal/model"
	"stoic/internal/notify"
)

// Bus is the subset of *eventbus.Bus the executor needs.
type Bus interface {
	OnIntervention(func(model.Intervention) error) (eventbus.SubscriptionID, error)
	Unsubscribe(eventbus.Topic, eventbus.SubscriptionID)
}

// Phraser optionally rewrites notification text.
type Phraser interface {
	Phrase(ctx context.Context, iv model.Intervention, draft string) (string, error)
}

// FeedbackRecorder stores the outcome of each attempt.
type FeedbackRecorder interface {
	RecordFeedback(ctx context.Context, f model.Feedback) error
}

// Options configures an Executor. Only Notifier is required.
type Options struct {
	Notifier notify.Notifier
	Phraser  Phraser
	Feedback FeedbackRecorder
}

type Executor struct {
	bus      Bus
	opts     Options
	builders map[model.InterventionType]builder
	logger   zerolog.Logger

	// base is cancelled by Stop once the grace period is over.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// subMu guards sub and stopped, and orders wg.Add against Stop.
	subMu   sync.Mutex
	sub     eventbus.SubscriptionID
	stopped bool
}

func New(bus Bus, opts Options) *Executor {
	base, cancel := context.WithCancel(context.Background())
	return &Executor{
		bus:      bus,
		opts:     opts,
		builders: defaultBuilders(),
		logger:   stoiclog.WithComponent("executor"),
		base:     base,
		cancel:   cancel,
	}
}

// Start subscribes to interventions. Calling it twice is a no-op.
func (e *Executor) Start() error {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if e.sub != 0 {
		return nil
	}
	if e.stopped {
		return errors.New("executor: already stopped")
	}
	if e.opts.Notifier == nil {
		return errors.New("executor: notifier is required")
	}
	id, err := e.bus.OnIntervention(e.HandleIntervention)
	if err != nil {
		return err
	}
	e.sub = id
	return nil
}

// Stop unsubscribes and waits for in-flight notifications until ctx is done,
// then cancels the rest and waits for them to return. Interventions that
// arrive after Stop are dropped.
func (e *Executor) Stop(ctx context.Context) {
	e.subMu.Lock()
	if e.sub != 0 {
		e.bus.Unsubscribe(eventbus.TopicIntervention, e.sub)
		e.sub = 0
	}
	e.stopped = true
	e.subMu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn().Msg("cancelling in-flight notifications")
		e.cancel()
		<-done
	}
}

// Wait blocks until every dispatched notification has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// HandleIntervention builds the notification synchronously and dispatches it
// on a detached goroutine. Unknown types are logged and ignored.
func (e *Executor) HandleIntervention(iv model.Intervention) error {
	logger := e.logger.With().Str("type", string(iv.Type)).Str("id", iv.ID).Logger()
	logger.Debug().Msg("received intervention")

	build, ok := e.builders[iv.Type]
	if !ok {
		logger.Warn().Str("event", "executor.unknown_type").Msg("no action defined for intervention type")
		return nil
	}
	req, phrase := build(iv)

	e.subMu.Lock()
	if e.stopped {
		e.subMu.Unlock()
		logger.Debug().Str("event", "executor.dropped_after_stop").Msg("executor stopped, dropping intervention")
		return nil
	}
	e.wg.Add(1)
	e.subMu.Unlock()
	go func() {
		defer e.wg.Done()
		e.dispatch(iv, req, phrase, logger)
	}()
	return nil
}

func (e *Executor) dispatch(iv model.Intervention, req notify.Request, phrase bool, logger zerolog.Logger) {
	// Each attempt gets the action timeout plus slack for delivery.
	ctx, cancel := context.WithTimeout(e.base, req.Timeout+15*time.Second)
	defer cancel()

	if phrase && e.opts.Phraser != nil {
		if text, err := e.opts.Phraser.Phrase(ctx, iv, req.Message); err != nil {
			logger.Debug().Err(err).Msg("phrasing failed, using static text")
		} else {
			req.Message = text
		}
	}

	logger.Info().Str("event", "executor.notify").Str("title", req.Title).Str("message", req.Message).Msg("sending notification")

	out, err := e.opts.Notifier.Notify(ctx, req)
	fb := model.Feedback{
		InterventionID:   iv.ID,
		InterventionType: iv.Type,
		Sink:             out.Sink,
		Delivered:        err == nil,
		Action:           out.Action,
		Timestamp:        time.Now(),
	}

	switch {
	case errors.Is(err, notify.ErrDisabled):
		logger.Info().Msg("notifications disabled, skipped")
		fb.Error = err.Error()
	case err != nil:
		metrics.IncNotification(string(iv.Type), err)
		logger.Error().Err(err).Str("event", "executor.notify_failed").Msg("notification failed")
		fb.Error = err.Error()
	default:
		metrics.IncNotification(string(iv.Type), nil)
		if out.Action != "" {
			logger.Info().Str("sink", out.Sink).Str("action", out.Action).Bool("accepted", fb.Accepted()).Msg("user responded")
		} else {
			logger.Debug().Str("sink", out.Sink).Msg("notification delivered without response")
		}
	}

	if e.opts.Feedback != nil {
		// Recording uses the base context so a timed-out notify is still stored.
		if err := e.opts.Feedback.RecordFeedback(e.base, fb); err != nil {
			logger.Warn().Err(err).Msg("failed to record feedback")
		}
	}
}
