// Package planner turns events into interventions with a deterministic,
// priority-ordered rule table. It keeps no history between events.
package planner

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"stoic/internal/eventbus"
	stoiclog "stoic/internal/log"
	"stoic/internal/metrics"
	"stoic/internal/model"
)

// Bus is the subset of *eventbus.Bus the planner needs.
type Bus interface {
	OnEvent(func(model.Event) error) (eventbus.SubscriptionID, error)
	PublishIntervention(model.Intervention) error
	Unsubscribe(eventbus.Topic, eventbus.SubscriptionID)
}

type Planner struct {
	bus    Bus
	logger zerolog.Logger

	mu    sync.RWMutex
	rules *RuleSet

	subMu sync.Mutex
	sub   eventbus.SubscriptionID
}

// New creates a planner. A nil rule set means DefaultRules.
func New(bus Bus, rules *RuleSet) *Planner {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Planner{
		bus:    bus,
		rules:  rules,
		logger: stoiclog.WithComponent("planner"),
	}
}

// Start subscribes to events. Calling it twice is a no-op.
func (p *Planner) Start() error {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	if p.sub != 0 {
		return nil
	}
	id, err := p.bus.OnEvent(p.HandleEvent)
	if err != nil {
		return err
	}
	p.sub = id
	return nil
}

// Stop unsubscribes.
func (p *Planner) Stop() {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	if p.sub == 0 {
		return
	}
	p.bus.Unsubscribe(eventbus.TopicEvent, p.sub)
	p.sub = 0
}

// SetRules swaps the rule table.
func (p *Planner) SetRules(rs *RuleSet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = rs
}

// Plan evaluates e against the rules. ok is false when no rule matched.
// A built intervention that fails validation is returned with an error.
func (p *Planner) Plan(e model.Event) (iv model.Intervention, rule string, ok bool, err error) {
	p.mu.RLock()
	r, matched := p.rules.MatchFirst(e)
	p.mu.RUnlock()
	if !matched {
		return model.Intervention{}, "", false, nil
	}
	iv = r.Build(e)
	if err := iv.Validate(); err != nil {
		return iv, r.Name, true, err
	}
	return iv, r.Name, true, nil
}

// HandleEvent plans and publishes. It never returns an error for unmatched
// events or dropped interventions; both are expected outcomes.
func (p *Planner) HandleEvent(e model.Event) error {
	p.logger.Debug().Str("type", string(e.Type)).Str("id", e.ID).Msg("received event")

	iv, rule, ok, err := p.Plan(e)
	if !ok {
		metrics.PlannerDecisionsTotal.WithLabelValues("unmatched").Inc()
		p.logger.Debug().Str("type", string(e.Type)).Msg("no rule for event")
		return nil
	}
	if err != nil {
		var verr *model.ValidationError
		field := ""
		if errors.As(err, &verr) {
			field = verr.Field
		}
		metrics.PlannerDecisionsTotal.WithLabelValues("dropped").Inc()
		p.logger.Error().
			Err(err).
			Str("event", "planner.invalid_intervention").
			Str("rule", rule).
			Str("field", field).
			Interface("payload", iv).
			Msg("dropping invalid intervention")
		return nil
	}

	metrics.PlannerDecisionsTotal.WithLabelValues("planned").Inc()
	p.logger.Info().
		Str("event", "planner.planned").
		Str("rule", rule).
		Str("type", string(iv.Type)).
		Str("id", iv.ID).
		Str("cause", e.ID).
		Float64("urgency", iv.Urgency).
		Msg("firing intervention")

	return p.bus.PublishIntervention(iv)
}
