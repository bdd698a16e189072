package eventbus

import (
	"stoic/internal/config"
	"stoic/internal/model"
)

// PublishEvent publishes a copy of e on TopicEvent.
func (b *Bus) PublishEvent(e model.Event) error {
	return b.Publish(TopicEvent, e.Clone())
}

// PublishIntervention publishes a copy of iv on TopicIntervention.
func (b *Bus) PublishIntervention(iv model.Intervention) error {
	return b.Publish(TopicIntervention, iv.Clone())
}

// PublishConfig publishes a copy of cfg on TopicConfigReload.
func (b *Bus) PublishConfig(cfg *config.Config) error {
	if cfg == nil {
		return b.Publish(TopicConfigReload, cfg)
	}
	return b.Publish(TopicConfigReload, cfg.Clone())
}

// OnEvent subscribes fn to TopicEvent. Each handler receives its own copy.
func (b *Bus) OnEvent(fn func(model.Event) error) (SubscriptionID, error) {
	if fn == nil {
		return 0, ErrNilHandler
	}
	return b.Subscribe(TopicEvent, func(m Message) error {
		return fn(m.Payload.(model.Event).Clone())
	})
}

// OnIntervention subscribes fn to TopicIntervention.
func (b *Bus) OnIntervention(fn func(model.Intervention) error) (SubscriptionID, error) {
	if fn == nil {
		return 0, ErrNilHandler
	}
	return b.Subscribe(TopicIntervention, func(m Message) error {
		return fn(m.Payload.(model.Intervention).Clone())
	})
}

// OnConfig subscribes fn to TopicConfigReload.
func (b *Bus) OnConfig(fn func(*config.Config) error) (SubscriptionID, error) {
	if fn == nil {
		return 0, ErrNilHandler
	}
	return b.Subscribe(TopicConfigReload, func(m Message) error {
		return fn(m.Payload.(*config.Config).Clone())
	})
}
