// Package notify delivers user-facing notifications to one or more sinks.
package notify

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDisabled is returned when notifications are switched off.
	ErrDisabled = errors.New("notify: notifications disabled")
	// ErrNoSinks is returned by an empty Fanout.
	ErrNoSinks = errors.New("notify: no sinks registered")
)

// Request describes one notification.
type Request struct {
	Title    string
	Message  string
	Subtitle string
	Sound    bool
	Actions  []string      // buttons offered to the user, e.g. Start/Dismiss
	Timeout  time.Duration // how long to wait for an action; zero means do not wait
}

// Outcome reports what happened to a delivered notification.
type Outcome struct {
	Sink   string
	Action string // chosen action; empty when none was picked in time
}

// Notifier is a notification sink. Notify may block until the user answers
// or the request times out.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, req Request) (Outcome, error)
}

// Lifecycle is implemented by sinks that hold connections.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Gate drops requests while enabled reports false.
type Gate struct {
	Inner   Notifier
	Enabled func() bool
}

func (g Gate) Name() string { return g.Inner.Name() }

func (g Gate) Notify(ctx context.Context, req Request) (Outcome, error) {
	if g.Enabled != nil && !g.Enabled() {
		return Outcome{Sink: g.Inner.Name()}, ErrDisabled
	}
	return g.Inner.Notify(ctx, req)
}
