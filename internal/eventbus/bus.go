package eventbus

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stoic/internal/config"
	stoiclog "stoic/internal/log"
	"stoic/internal/metrics"
	"stoic/internal/model"
)

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus is a simple in-process pub/sub event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]subscription
	nextID   SubscriptionID
	logger   zerolog.Logger
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[Topic][]subscription),
		logger:   stoiclog.WithComponent("eventbus"),
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic Topic, handler Handler) (SubscriptionID, error) {
	if !topic.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	if handler == nil {
		return 0, ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], subscription{id: b.nextID, handler: handler})
	return b.nextID, nil
}

// Unsubscribe removes a registration. Unknown ids are ignored.
func (b *Bus) Unsubscribe(topic Topic, id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[topic]
	for i, s := range subs {
		if s.id == id {
			// Copy so that in-flight snapshots keep their view.
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			b.handlers[topic] = next
			return
		}
	}
}

// Publish sends payload to all subscribers of the topic.
// Handlers are called synchronously in the order they were registered, over a
// snapshot taken before the first call. A faulting handler does not stop the
// rest; the fault is logged and counted.
func (b *Bus) Publish(topic Topic, payload any) error {
	if err := checkPayload(topic, payload); err != nil {
		return err
	}

	b.mu.RLock()
	handlers := make([]subscription, len(b.handlers[topic]))
	copy(handlers, b.handlers[topic])
	b.mu.RUnlock()

	metrics.BusPublishedTotal.WithLabelValues(string(topic)).Inc()

	msg := Message{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	for _, s := range handlers {
		b.deliver(s, msg)
	}
	return nil
}

func (b *Bus) deliver(s subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncBusFault(string(msg.Topic), "panic")
			b.logger.Error().
				Str("event", "bus.handler_panic").
				Str("topic", string(msg.Topic)).
				Uint64("subscription", uint64(s.id)).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
		}
	}()
	if err := s.handler(msg); err != nil {
		metrics.IncBusFault(string(msg.Topic), "error")
		b.logger.Error().
			Err(err).
			Str("event", "bus.handler_error").
			Str("topic", string(msg.Topic)).
			Uint64("subscription", uint64(s.id)).
			Msg("handler failed")
	}
}

// Subscribers returns the number of handlers on topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}

func checkPayload(topic Topic, payload any) error {
	var ok bool
	switch topic {
	case TopicEvent:
		_, ok = payload.(model.Event)
	case TopicIntervention:
		_, ok = payload.(model.Intervention)
	case TopicConfigReload:
		var cfg *config.Config
		cfg, ok = payload.(*config.Config)
		ok = ok && cfg != nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	if !ok {
		return fmt.Errorf("%w: %s got %T", ErrPayloadType, topic, payload)
	}
	return nil
}
