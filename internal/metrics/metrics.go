package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoic_bus_published_total",
		Help: "Total number of payloads published on the bus by topic",
	}, []string{"topic"})

	BusHandlerFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoic_bus_handler_faults_total",
		Help: "Total number of bus handler faults by topic and kind",
	}, []string{"topic", "kind"}) // kind=error|panic

	ListenerSamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoic_listener_samples_total",
		Help: "Samples taken per listener by outcome",
	}, []string{"listener", "outcome"}) // outcome=ok|error

	ListenerEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoic_listener_events_total",
		Help: "State-transition events emitted per listener",
	}, []string{"listener", "to"})

	ListenerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stoic_listener_state",
		Help: "Current listener state (0=normal, 1=warning, 2=critical)",
	}, []string{"listener"})

	ListenerAverage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stoic_listener_moving_average",
		Help: "Current moving average of the sampled signal (0-100)",
	}, []string{"listener"})

	PlannerDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoic_planner_decisions_total",
		Help: "Planner decisions by outcome",
	}, []string{"outcome"}) // outcome=planned|unmatched|dropped

	ExecutorNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoic_executor_notifications_total",
		Help: "Notification attempts by intervention type and outcome",
	}, []string{"type", "outcome"}) // outcome=success|failure

	JournalWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoic_journal_writes_total",
		Help: "Journal writes by table and outcome",
	}, []string{"table", "outcome"})

	ConfigReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoic_config_reloads_total",
		Help: "Config reload attempts by outcome",
	}, []string{"outcome"})
)

// IncBusFault records a handler fault for the given topic.
func IncBusFault(topic, kind string) {
	if topic == "" {
		topic = "unknown"
	}
	if kind == "" {
		kind = "unknown"
	}
	BusHandlerFaultsTotal.WithLabelValues(topic, kind).Inc()
}

// IncSample records one sampling attempt.
func IncSample(listener string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ListenerSamplesTotal.WithLabelValues(listener, outcome).Inc()
}

// IncNotification records one notification attempt.
func IncNotification(interventionType string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	ExecutorNotificationsTotal.WithLabelValues(interventionType, outcome).Inc()
}

// IncJournalWrite records one journal insert.
func IncJournalWrite(table string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	JournalWritesTotal.WithLabelValues(table, outcome).Inc()
}

// IncJournalDropped records a journal write discarded because the write
// queue was full.
func IncJournalDropped(table string) {
	JournalWritesTotal.WithLabelValues(table, "dropped").Inc()
}
