package eventbus

import (
	"errors"
	"time"
)

// Topic represents an event topic. The set is closed.
type Topic string

const (
	TopicEvent        Topic = "agent:event"        // payload model.Event
	TopicIntervention Topic = "agent:intervention" // payload model.Intervention
	TopicConfigReload Topic = "config:reloaded"    // payload *config.Config
)

// Topics lists every known topic.
var Topics = []Topic{TopicEvent, TopicIntervention, TopicConfigReload}

// Valid reports whether t is one of the known topics.
func (t Topic) Valid() bool {
	switch t {
	case TopicEvent, TopicIntervention, TopicConfigReload:
		return true
	}
	return false
}

var (
	ErrUnknownTopic = errors.New("eventbus: unknown topic")
	ErrPayloadType  = errors.New("eventbus: payload type does not match topic")
	ErrNilHandler   = errors.New("eventbus: nil handler")
)

// Message is what a handler receives for one publish.
type Message struct {
	Topic     Topic
	Payload   any
	Timestamp time.Time
}

// Handler processes a message. A returned error is logged and counted by the
// bus; it never reaches the publisher.
type Handler func(Message) error

// SubscriptionID identifies one registration for Unsubscribe.
type SubscriptionID uint64
