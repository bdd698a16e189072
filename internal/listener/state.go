package listener

import (
	"stoic/internal/config"
	"stoic/internal/model"
)

// State is the discrete classification of a sampled signal.
type State int

const (
	StateNormal State = iota
	StateWarning
	StateCritical
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateWarning:
		return "warning"
	case StateCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Thresholds are percentages in [0,100] with Warning < Critical.
type Thresholds struct {
	Warning  float64
	Critical float64
}

// Validate rejects pairs that cannot classify.
func (t Thresholds) Validate() error {
	return config.ValidateThreshold("thresholds", config.Threshold{Warning: t.Warning, Critical: t.Critical})
}

// Classify maps a 0-100 usage to a state. Boundaries are exclusive: a usage
// equal to a threshold stays in the lower state. There is no separate falling
// threshold.
func (t Thresholds) Classify(usage float64) State {
	switch {
	case usage > t.Critical:
		return StateCritical
	case usage > t.Warning:
		return StateWarning
	default:
		return StateNormal
	}
}

// Signal names one sampled quantity and the event types it emits.
type Signal struct {
	Name     string // metrics label, e.g. "cpu"
	Source   string // Event.Source
	Warning  model.EventType
	Critical model.EventType
	Normal   model.EventType
}

var (
	SignalCPU = Signal{
		Name:     "cpu",
		Source:   "cpu-listener",
		Warning:  model.EventCPUWarning,
		Critical: model.EventCPUCritical,
		Normal:   model.EventCPUNormal,
	}
	SignalMemory = Signal{
		Name:     "memory",
		Source:   "memory-listener",
		Warning:  model.EventMemoryWarning,
		Critical: model.EventMemoryCritical,
		Normal:   model.EventMemoryNormal,
	}
)

// transition describes the event emitted when entering state s.
func (sig Signal) transition(s State, t Thresholds) (model.EventType, model.Severity, float64) {
	switch s {
	case StateCritical:
		return sig.Critical, model.SeverityCritical, t.Critical
	case StateWarning:
		return sig.Warning, model.SeverityHigh, t.Warning
	default:
		return sig.Normal, model.SeverityLow, t.Warning
	}
}
