package journal

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stoic/internal/eventbus"
	stoiclog "stoic/internal/log"
	"stoic/internal/metrics"
	"stoic/internal/model"
)

const (
	writeTimeout = 2 * time.Second
	// queueSize bounds writes waiting on a slow disk; overflow is dropped.
	queueSize = 256
)

// Bus is the subset of *eventbus.Bus the recorder subscribes through.
type Bus interface {
	OnEvent(func(model.Event) error) (eventbus.SubscriptionID, error)
	OnIntervention(func(model.Intervention) error) (eventbus.SubscriptionID, error)
	Unsubscribe(eventbus.Topic, eventbus.SubscriptionID)
}

type write struct {
	table string
	id    string
	kind  string
	do    func(context.Context) error
}

// Recorder appends every published event and intervention to a Journal.
// Writes are queued and performed by a single worker, so a slow journal
// never delays the publisher. Write failures are logged and never reach the
// publisher.
type Recorder struct {
	bus     Bus
	journal Journal
	logger  zerolog.Logger

	mu      sync.Mutex
	evSub   eventbus.SubscriptionID
	ivSub   eventbus.SubscriptionID
	started bool
	queue   chan write
	done    chan struct{}
}

func NewRecorder(bus Bus, j Journal) *Recorder {
	return &Recorder{bus: bus, journal: j, logger: stoiclog.WithComponent("journal")}
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	ev, err := r.bus.OnEvent(r.onEvent)
	if err != nil {
		return err
	}
	iv, err := r.bus.OnIntervention(r.onIntervention)
	if err != nil {
		r.bus.Unsubscribe(eventbus.TopicEvent, ev)
		return err
	}
	r.evSub, r.ivSub, r.started = ev, iv, true
	r.queue = make(chan write, queueSize)
	r.done = make(chan struct{})
	go r.run(r.queue, r.done)
	return nil
}

// Stop unsubscribes and blocks until queued writes have been flushed.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.bus.Unsubscribe(eventbus.TopicEvent, r.evSub)
	r.bus.Unsubscribe(eventbus.TopicIntervention, r.ivSub)
	r.started = false
	close(r.queue)
	done := r.done
	r.mu.Unlock()

	<-done
}

func (r *Recorder) run(queue <-chan write, done chan<- struct{}) {
	defer close(done)
	for w := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := w.do(ctx)
		cancel()
		if err != nil {
			r.logger.Warn().Err(err).Str("id", w.id).Str("type", w.kind).Msgf("failed to journal %s", w.table)
		}
	}
}

// enqueue never blocks. Writes arriving after Stop are ignored.
func (r *Recorder) enqueue(w write) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	select {
	case r.queue <- w:
	default:
		metrics.IncJournalDropped(w.table)
		r.logger.Warn().Str("id", w.id).Str("type", w.kind).Str("event", "journal.dropped").Msg("journal queue full, dropping write")
	}
}

func (r *Recorder) onEvent(e model.Event) error {
	r.enqueue(write{table: tableEvents, id: e.ID, kind: string(e.Type), do: func(ctx context.Context) error {
		return r.journal.AppendEvent(ctx, e)
	}})
	return nil
}

func (r *Recorder) onIntervention(iv model.Intervention) error {
	r.enqueue(write{table: tableInterventions, id: iv.ID, kind: string(iv.Type), do: func(ctx context.Context) error {
		return r.journal.AppendIntervention(ctx, iv)
	}})
	return nil
}
